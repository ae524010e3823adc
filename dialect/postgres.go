package dialect

const PostgresName = "postgres"

// Postgres 双引号标识符，@name 参数，:: 类型转换，RETURNING 返回主键
type Postgres struct{}

func NewPostgres() *Postgres {
	return &Postgres{}
}

func (d *Postgres) Name() string {
	return PostgresName
}

func (d *Postgres) BuildInsert(table string, columns, params []string, keyColumn string) string {
	return insertParts(table, columns, params, "", returning(keyColumn), "DEFAULT VALUES")
}

func (d *Postgres) BuildUpdate(table string, set, where []string) string {
	return updateParts(table, set, where)
}

func (d *Postgres) PrefixParameter(name string) string {
	return "@" + name
}

func (d *Postgres) QuoteIdentifier(name string) string {
	return quoteSegments(name, `"`, `"`)
}

func (d *Postgres) CastParameter(param, typeName string) string {
	return param + "::" + typeName
}

func (d *Postgres) SupportsReturning() bool {
	return true
}
