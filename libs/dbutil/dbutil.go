// Package dbutil provides helpers for building SQL statements and connecting to MySQL.
package dbutil

import (
	"strings"

	"github.com/go-sql-driver/mysql"
)

// MySQLArgs returns n mysql placeholder arguments for a database query.
func MySQLArgs(n int) string {
	if n <= 0 {
		return ""
	}
	result := make([]byte, 2*n-1)
	for i := 0; i < len(result)-1; i += 2 {
		result[i] = '?'
		result[i+1] = ','
	}
	result[len(result)-1] = '?'
	return string(result)
}

// EscapeMySQLName escapes column, table, and index names (among others).
// DO NOT use for external (user) provided values.
func EscapeMySQLName(name string) string {
	return "`" + strings.Replace(name, "`", "``", -1) + "`"
}

// MySQL error codes
const (
	MySQLDuplicateEntry = 1062 // Duplicate entry for key
	MySQLDeadlock       = 1213 // Deadlock found when trying to get lock; try restarting transaction
)

// IsMySQLError returns true if the err represents a MySQL error of the provided code.
func IsMySQLError(err error, code uint16) bool {
	e, ok := err.(*mysql.MySQLError)
	if !ok {
		return false
	}
	return e.Number == code
}
