// Package shape 描述持久化结构体的行结构（表名、字段、主键标记），
// 并提供从 Go 类型提取行结构的 Introspector 实现。
//
// 结构体字段通过 rdb tag 声明元数据：
//
//	type Product struct {
//	    ID    int64   `rdb:"id,key,identity"`
//	    Name  string  `rdb:"product_name"`
//	    Price float64 `rdb:",cast=numeric"`
//	    Total float64 `rdb:",readonly"`
//	    Temp  string  `rdb:"-"`
//	}
//
// tag 第一段为列名（可省略），其余选项：
//   - key, primary, pk: 主键
//   - identity, auto: 数据库生成的主键；manual: 明确声明为非自增
//   - readonly: 不可写，不出现在 INSERT/UPDATE 中
//   - cast=<type>: 参数类型转换提示
//   - name=<logical>: 覆盖逻辑名（参数名）
//
// 没有 rdb tag 的嵌入结构体按值展开为外层字段，嵌入结构体指针需要声明 rdb:"-" 忽略，否则解析报错。
//
// 表名可以通过 TableName() string 方法或任意字段上的 table tag 指定。
package shape

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

// RowShape 行结构
type RowShape struct {
	// Type 对应的 Go 类型，仅由声明式 schema 构造时为 nil
	Type reflect.Type
	// Name 类型名，用于推导表名
	Name string
	// Table 显式指定的表名，未指定时为空
	Table string
	// Fields 持久化字段，按声明顺序
	Fields []Field
}

// Field 字段描述
type Field struct {
	// Name 逻辑名，也是参数名
	Name string
	// GoName 结构体字段名，声明式字段未绑定结构体时为空
	GoName string
	// Index 结构体字段索引，用于 reflect.Value.FieldByIndex
	Index []int
	// Column 显式指定的列名，未指定时为空
	Column string
	// Kind 字段的基础类型（指针已解引用）
	Kind reflect.Kind
	// Settable 是否可写
	Settable bool
	// Key 是否显式标记为主键
	Key bool
	// Identity 显式的数据库生成标记，nil 表示未声明
	Identity *bool
	// Cast 参数类型转换提示
	Cast string
}

// IsInteger 字段是否为整数类型
func (f Field) IsInteger() bool {
	switch f.Kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// Introspector 行结构提取接口
type Introspector interface {
	Introspect(t reflect.Type) (*RowShape, error)
}

// TableNamer 结构体可以实现此接口来指定表名
type TableNamer interface {
	TableName() string
}

// InvalidShapeError 行结构无法解析，例如列名重复或无法确定表名
type InvalidShapeError struct {
	Type   string
	Reason string
}

func (e *InvalidShapeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("invalid shape: %s", e.Reason)
	}
	return fmt.Sprintf("invalid shape %s: %s", e.Type, e.Reason)
}

// NewInvalidShapeError 构造 InvalidShapeError
func NewInvalidShapeError(typeName string, format string, args ...any) *InvalidShapeError {
	return &InvalidShapeError{Type: typeName, Reason: fmt.Sprintf(format, args...)}
}

// LogicalName 从 Go 字段名推导逻辑名：开头的连续大写字母转小写，
// 若大写串后紧跟小写字母，保留最后一个大写字母作为下一个单词的开头。
//
//	ID -> id, Name -> name, UnitPrice -> unitPrice, TenantID -> tenantID, URLPath -> urlPath
func LogicalName(goName string) string {
	runes := []rune(goName)
	n := 0
	for n < len(runes) && unicode.IsUpper(runes[n]) {
		n++
	}
	switch {
	case n == 0:
		return goName
	case n == 1 || n == len(runes):
	default:
		if unicode.IsLower(runes[n]) {
			n--
		}
	}
	return strings.ToLower(string(runes[:n])) + string(runes[n:])
}

// Indirect 解引用指针类型
func Indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
