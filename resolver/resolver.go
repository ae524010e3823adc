// Package resolver 从行结构中解析表名、主键、可写字段以及列名和参数名
package resolver

import (
	"strings"

	"github.com/go-openapi/inflect"
	"github.com/pkg/errors"

	"github.com/hatlonely/sqlmap/cfg"
	"github.com/hatlonely/sqlmap/dialect"
	"github.com/hatlonely/sqlmap/shape"
)

// 表名命名策略
const (
	TableIdentity    = "identity"
	TablePlural      = "plural"
	TableSnake       = "snake"
	TableSnakePlural = "snake_plural"
)

// 列名命名策略
const (
	ColumnIdentity = "identity"
	ColumnSnake    = "snake"
)

type Options struct {
	// TableNaming 未显式指定表名时由类型名推导表名的策略
	TableNaming string `cfg:"tableNaming" def:"identity" validate:"oneof=identity plural snake snake_plural"`
	// ColumnNaming 未显式指定列名时由逻辑名推导列名的策略
	ColumnNaming string `cfg:"columnNaming" def:"identity" validate:"oneof=identity snake"`
}

// KeyField 主键字段
type KeyField struct {
	shape.Field
	Identity bool
}

// Metadata 一个行结构的解析结果
type Metadata struct {
	Shape    *shape.RowShape
	Table    string
	Keys     []KeyField
	Identity bool
	Settable []shape.Field
}

// IdentityKey 唯一的数据库生成主键，多个主键或没有生成主键时返回 false
func (m *Metadata) IdentityKey() (KeyField, bool) {
	var identity KeyField
	n := 0
	for _, k := range m.Keys {
		if k.Identity {
			identity = k
			n++
		}
	}
	return identity, n == 1
}

// IsKey 字段是否为主键
func (m *Metadata) IsKey(f shape.Field) bool {
	for _, k := range m.Keys {
		if k.Name == f.Name {
			return true
		}
	}
	return false
}

type Resolver struct {
	options Options
}

// NewResolver 使用默认配置创建 Resolver
func NewResolver() *Resolver {
	return &Resolver{options: Options{TableNaming: TableIdentity, ColumnNaming: ColumnIdentity}}
}

func NewResolverWithOptions(options *Options) (*Resolver, error) {
	if options == nil {
		return NewResolver(), nil
	}

	o := *options
	if err := cfg.SetDefaults(&o); err != nil {
		return nil, errors.WithMessage(err, "failed to set resolver defaults")
	}
	if err := cfg.Validate(&o); err != nil {
		return nil, errors.WithMessage(err, "invalid resolver options")
	}
	return &Resolver{options: o}, nil
}

func (r *Resolver) Options() Options {
	return r.options
}

// Table 解析表名，显式指定的表名优先，否则按命名策略由类型名推导
func (r *Resolver) Table(s *shape.RowShape) (string, error) {
	if s.Table != "" {
		return s.Table, nil
	}

	var table string
	switch r.options.TableNaming {
	case TablePlural:
		table = inflect.Pluralize(s.Name)
	case TableSnake:
		table = inflect.Underscore(s.Name)
	case TableSnakePlural:
		table = inflect.Pluralize(inflect.Underscore(s.Name))
	default:
		table = s.Name
	}

	if table == "" {
		return "", shape.NewInvalidShapeError(s.Name, "cannot resolve table name")
	}
	return table, nil
}

// KeyFields 解析主键，按声明顺序返回；第二个返回值表示是否存在数据库生成的主键
//
// 显式标记的主键优先，否则逻辑名为 id（忽略大小写）的字段作为唯一主键，都没有时没有主键。
// 未显式声明 identity 的主键，仅当主键唯一且为整数类型时视为数据库生成，
// 多个未声明的主键都不视为数据库生成。
func (r *Resolver) KeyFields(s *shape.RowShape) ([]KeyField, bool) {
	var fields []shape.Field
	for _, f := range s.Fields {
		if f.Key {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		for _, f := range s.Fields {
			if strings.EqualFold(f.Name, "id") {
				fields = append(fields, f)
				break
			}
		}
	}

	keys := make([]KeyField, 0, len(fields))
	hasIdentity := false
	for _, f := range fields {
		identity := len(fields) == 1 && f.IsInteger()
		if f.Identity != nil {
			identity = *f.Identity
		}
		hasIdentity = hasIdentity || identity
		keys = append(keys, KeyField{Field: f, Identity: identity})
	}
	return keys, hasIdentity
}

// SettableFields 可写字段，按声明顺序
func (r *Resolver) SettableFields(s *shape.RowShape) []shape.Field {
	var fields []shape.Field
	for _, f := range s.Fields {
		if f.Settable {
			fields = append(fields, f)
		}
	}
	return fields
}

// RawColumnName 加引号之前的列名
func (r *Resolver) RawColumnName(f shape.Field) string {
	if f.Column != "" {
		return f.Column
	}
	if r.options.ColumnNaming == ColumnSnake {
		return inflect.Underscore(f.Name)
	}
	return f.Name
}

// ColumnName 方言引号包裹后的列名
func (r *Resolver) ColumnName(f shape.Field, d dialect.Dialect) string {
	return d.QuoteIdentifier(r.RawColumnName(f))
}

// ParameterName 方言前缀后的参数名
func (r *Resolver) ParameterName(f shape.Field, d dialect.Dialect) string {
	return d.PrefixParameter(f.Name)
}

// Resolve 解析行结构的全部元数据，列名或参数名重复时返回 InvalidShapeError
func (r *Resolver) Resolve(s *shape.RowShape) (*Metadata, error) {
	if s == nil {
		return nil, shape.NewInvalidShapeError("", "nil shape")
	}

	table, err := r.Table(s)
	if err != nil {
		return nil, err
	}

	columns := map[string]string{}
	params := map[string]string{}
	for _, f := range s.Fields {
		column := strings.ToLower(r.RawColumnName(f))
		if other, ok := columns[column]; ok {
			return nil, shape.NewInvalidShapeError(s.Name, "fields %s and %s map to the same column %s", other, f.Name, r.RawColumnName(f))
		}
		columns[column] = f.Name

		if _, ok := params[f.Name]; ok {
			return nil, shape.NewInvalidShapeError(s.Name, "duplicate logical name %s", f.Name)
		}
		params[f.Name] = f.Name
	}

	keys, identity := r.KeyFields(s)
	return &Metadata{
		Shape:    s,
		Table:    table,
		Keys:     keys,
		Identity: identity,
		Settable: r.SettableFields(s),
	}, nil
}
