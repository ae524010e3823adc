package dialect

const SQLServerName = "sqlserver"

// SQLServer 方括号标识符，@name 参数，通过 OUTPUT INSERTED 返回生成的主键
type SQLServer struct{}

func NewSQLServer() *SQLServer {
	return &SQLServer{}
}

func (d *SQLServer) Name() string {
	return SQLServerName
}

func (d *SQLServer) BuildInsert(table string, columns, params []string, keyColumn string) string {
	output := ""
	if keyColumn != "" {
		output = " OUTPUT INSERTED." + keyColumn
	}
	return insertParts(table, columns, params, output, "", "DEFAULT VALUES")
}

func (d *SQLServer) BuildUpdate(table string, set, where []string) string {
	return updateParts(table, set, where)
}

func (d *SQLServer) PrefixParameter(name string) string {
	return "@" + name
}

func (d *SQLServer) QuoteIdentifier(name string) string {
	return quoteSegments(name, "[", "]")
}

func (d *SQLServer) CastParameter(param, typeName string) string {
	return "CAST(" + param + " AS " + typeName + ")"
}

func (d *SQLServer) SupportsReturning() bool {
	return true
}
