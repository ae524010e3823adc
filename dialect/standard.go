package dialect

const StandardName = "standard"

// Standard 标准 SQL：标识符不加引号，参数形如 :name，不支持返回主键
type Standard struct{}

func NewStandard() *Standard {
	return &Standard{}
}

func (d *Standard) Name() string {
	return StandardName
}

func (d *Standard) BuildInsert(table string, columns, params []string, keyColumn string) string {
	return insertParts(table, columns, params, "", "", "DEFAULT VALUES")
}

func (d *Standard) BuildUpdate(table string, set, where []string) string {
	return updateParts(table, set, where)
}

func (d *Standard) PrefixParameter(name string) string {
	return ":" + name
}

func (d *Standard) QuoteIdentifier(name string) string {
	return name
}

func (d *Standard) CastParameter(param, typeName string) string {
	return param + "::" + typeName
}

func (d *Standard) SupportsReturning() bool {
	return false
}
