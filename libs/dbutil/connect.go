package dbutil

import (
	"database/sql"
	"fmt"

	"github.com/quickscribe/backend/libs/errors"
)

// DBConfig represents the data needed to connect to a database.
type DBConfig struct {
	Host               string
	Port               int
	Name               string
	User               string
	Password           string
	EnableTLS          bool
	MaxOpenConnections int
	MaxIdleConnections int
}

// ConnectMySQL opens and pings a mysql connection using the provided configuration.
func ConnectMySQL(cfg *DBConfig) (*sql.DB, error) {
	if cfg.User == "" || cfg.Host == "" || cfg.Name == "" {
		return nil, errors.New("dbutil: missing one or more of user, host, or name for db config")
	}
	if cfg.Port == 0 {
		cfg.Port = 3306
	}
	opts := "?parseTime=true&charset=utf8mb4&collation=utf8mb4_unicode_ci&loc=Local"
	if cfg.EnableTLS {
		opts += "&tls=true"
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, opts)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Trace(err)
	}
	if cfg.MaxOpenConnections != 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConnections)
	}
	if cfg.MaxIdleConnections != 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConnections)
	}
	return db, nil
}
