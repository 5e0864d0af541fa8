package dbutil

import "strings"

// VarArgs collects column/value pairs for building partial UPDATE statements.
type VarArgs interface {
	Append(column string, value interface{})
	IsEmpty() bool
	// ColumnsForUpdate returns the SET clause fragment, e.g. "name=?,age=?".
	ColumnsForUpdate() string
	Values() []interface{}
}

type mysqlVarArgs struct {
	columns []string
	values  []interface{}
}

// MySQLVarArgs returns a VarArgs that generates MySQL style placeholders.
func MySQLVarArgs() VarArgs {
	return &mysqlVarArgs{}
}

func (m *mysqlVarArgs) Append(column string, value interface{}) {
	m.columns = append(m.columns, column)
	m.values = append(m.values, value)
}

func (m *mysqlVarArgs) IsEmpty() bool {
	return len(m.columns) == 0
}

func (m *mysqlVarArgs) ColumnsForUpdate() string {
	if len(m.columns) == 0 {
		return ""
	}
	return strings.Join(m.columns, "=?,") + "=?"
}

func (m *mysqlVarArgs) Values() []interface{} {
	return m.values
}
