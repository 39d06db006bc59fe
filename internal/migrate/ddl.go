package migrate

import (
	"fmt"
	"strings"
)

// Column is a named, typed destination column.
type Column struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// QuoteIdent quotes an SQL identifier, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// CreateTableSQL renders a CREATE TABLE statement declaring every column.
func CreateTableSQL(table string, cols []Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = fmt.Sprintf("%s %s", QuoteIdent(c.Name), c.Type.SQLType())
	}
	return fmt.Sprintf("CREATE TABLE %s (%s);", QuoteIdent(table), strings.Join(defs, ", "))
}

// AddColumnSQL renders an ALTER TABLE ... ADD COLUMN statement.
func AddColumnSQL(table string, col Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s;", QuoteIdent(table), QuoteIdent(col.Name), col.Type.SQLType())
}
