package dialect

const MySQLName = "mysql"

// MySQL 反引号标识符，? 位置参数；不支持 RETURNING，生成的主键通过 LastInsertId 获取
type MySQL struct{}

func NewMySQL() *MySQL {
	return &MySQL{}
}

func (d *MySQL) Name() string {
	return MySQLName
}

func (d *MySQL) BuildInsert(table string, columns, params []string, keyColumn string) string {
	return insertParts(table, columns, params, "", "", "() VALUES ()")
}

func (d *MySQL) BuildUpdate(table string, set, where []string) string {
	return updateParts(table, set, where)
}

// PrefixParameter 参数只有位置没有名字，绑定顺序即语句中出现的顺序
func (d *MySQL) PrefixParameter(name string) string {
	return "?"
}

func (d *MySQL) QuoteIdentifier(name string) string {
	return quoteSegments(name, "`", "`")
}

func (d *MySQL) CastParameter(param, typeName string) string {
	return "CAST(" + param + " AS " + typeName + ")"
}

func (d *MySQL) SupportsReturning() bool {
	return false
}
