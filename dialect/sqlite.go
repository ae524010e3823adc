package dialect

const SQLiteName = "sqlite"

// SQLite 双引号标识符，:name 参数，通过 RETURNING 返回生成的主键（3.35+）
type SQLite struct{}

func NewSQLite() *SQLite {
	return &SQLite{}
}

func (d *SQLite) Name() string {
	return SQLiteName
}

func (d *SQLite) BuildInsert(table string, columns, params []string, keyColumn string) string {
	return insertParts(table, columns, params, "", returning(keyColumn), "DEFAULT VALUES")
}

func (d *SQLite) BuildUpdate(table string, set, where []string) string {
	return updateParts(table, set, where)
}

func (d *SQLite) PrefixParameter(name string) string {
	return ":" + name
}

func (d *SQLite) QuoteIdentifier(name string) string {
	return quoteSegments(name, `"`, `"`)
}

func (d *SQLite) CastParameter(param, typeName string) string {
	return "CAST(" + param + " AS " + typeName + ")"
}

func (d *SQLite) SupportsReturning() bool {
	return true
}

func returning(keyColumn string) string {
	if keyColumn == "" {
		return ""
	}
	return " RETURNING " + keyColumn
}
