// Package dialect 把解析好的表、列、参数渲染为具体数据库的 SQL 文本
package dialect

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Dialect 一种 SQL 方言的能力集合，各方言只在引号、参数前缀和返回主键的子句上有差异
type Dialect interface {
	// Name 方言名称，同时作为缓存键的一部分
	Name() string
	// BuildInsert 生成 INSERT 语句，columns 为空时生成插入默认值的语句；
	// keyColumn 非空且方言支持时附加返回生成主键的子句
	BuildInsert(table string, columns, params []string, keyColumn string) string
	// BuildUpdate 生成 UPDATE 语句，set 和 where 是已渲染的 "列 = 参数" 片段
	BuildUpdate(table string, set, where []string) string
	PrefixParameter(name string) string
	QuoteIdentifier(name string) string
	// CastParameter 为参数附加类型转换
	CastParameter(param, typeName string) string
	// SupportsReturning BuildInsert 能否在同一语句中返回生成的主键
	SupportsReturning() bool
}

// Options 方言配置，Name 优先，其次根据 Driver 推断
type Options struct {
	Name   string `cfg:"name"`
	Driver string `cfg:"driver"`
}

// NewDialectWithOptions 根据配置创建方言，都未指定时使用 standard
func NewDialectWithOptions(options *Options) (Dialect, error) {
	if options == nil {
		return New(StandardName)
	}
	if options.Name != "" {
		return New(options.Name)
	}
	if options.Driver != "" {
		return ForDriver(options.Driver)
	}
	return New(StandardName)
}

// NewFunc 方言构造函数
type NewFunc func() Dialect

type registration struct {
	newFunc NewFunc
}

var registry sync.Map

var drivers = map[string]string{
	"sqlite3":   SQLiteName,
	"sqlite":    SQLiteName,
	"mysql":     MySQLName,
	"postgres":  PostgresName,
	"pgx":       PostgresName,
	"sqlserver": SQLServerName,
	"mssql":     SQLServerName,
}

func init() {
	MustRegister(StandardName, func() Dialect { return NewStandard() })
	MustRegister(SQLiteName, func() Dialect { return NewSQLite() })
	MustRegister(PostgresName, func() Dialect { return NewPostgres() })
	MustRegister(MySQLName, func() Dialect { return NewMySQL() })
	MustRegister(SQLServerName, func() Dialect { return NewSQLServer() })
}

// Register 注册方言，同名方言重复注册同一个函数时忽略，注册不同函数时返回错误
func Register(name string, newFunc NewFunc) error {
	if name == "" {
		return fmt.Errorf("dialect name cannot be empty")
	}
	if newFunc == nil {
		return fmt.Errorf("newFunc for dialect %s cannot be nil", name)
	}

	if existing, ok := registry.Load(name); ok {
		if isSameFunc(existing.(*registration).newFunc, newFunc) {
			return nil
		}
		return fmt.Errorf("dialect %s already registered with different function", name)
	}

	registry.Store(name, &registration{newFunc: newFunc})
	return nil
}

func MustRegister(name string, newFunc NewFunc) {
	if err := Register(name, newFunc); err != nil {
		panic(err)
	}
}

// New 按名称创建方言
func New(name string) (Dialect, error) {
	value, ok := registry.Load(name)
	if !ok {
		return nil, fmt.Errorf("dialect not found for %s", name)
	}
	return value.(*registration).newFunc(), nil
}

// Names 返回已注册的方言名称，按字母序
func Names() []string {
	var names []string
	registry.Range(func(key, _ any) bool {
		names = append(names, key.(string))
		return true
	})
	sort.Strings(names)
	return names
}

// ForDriver 根据 database/sql 驱动名选择方言
func ForDriver(driver string) (Dialect, error) {
	name, ok := drivers[strings.ToLower(driver)]
	if !ok {
		return nil, fmt.Errorf("no dialect for driver %s", driver)
	}
	return New(name)
}

func isSameFunc(f1, f2 NewFunc) bool {
	return reflect.ValueOf(f1).Pointer() == reflect.ValueOf(f2).Pointer()
}

// insertParts 渲染 INSERT 语句，各方言只提供差异部分：
// output 位于列清单和 VALUES 之间，returning 位于语句末尾，empty 为没有列时的值子句
func insertParts(table string, columns, params []string, output, returning, empty string) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(table)
	if len(columns) == 0 {
		sb.WriteString(output)
		sb.WriteString(" ")
		sb.WriteString(empty)
	} else {
		sb.WriteString(" (")
		sb.WriteString(strings.Join(columns, ", "))
		sb.WriteString(")")
		sb.WriteString(output)
		sb.WriteString(" VALUES (")
		sb.WriteString(strings.Join(params, ", "))
		sb.WriteString(")")
	}
	sb.WriteString(returning)
	return sb.String()
}

func updateParts(table string, set, where []string) string {
	sql := "UPDATE " + table + " SET " + strings.Join(set, ", ")
	if len(where) != 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	return sql
}

// quoteSegments 按 . 分段加引号，已加引号的段保持不变，close 在段内出现时双写转义
func quoteSegments(name, open, close string) string {
	if name == "" {
		return name
	}
	segments := strings.Split(name, ".")
	for i, segment := range segments {
		if strings.HasPrefix(segment, open) && strings.HasSuffix(segment, close) && len(segment) >= len(open)+len(close) {
			continue
		}
		segments[i] = open + strings.ReplaceAll(segment, close, close+close) + close
	}
	return strings.Join(segments, ".")
}
