package shape

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/hatlonely/sqlmap/cfg"
)

// SchemaField 声明式的字段描述
type SchemaField struct {
	// Name 逻辑名
	Name string `cfg:"name" validate:"required"`
	// Field 绑定的结构体字段名，为空时按逻辑名忽略大小写匹配
	Field    string `cfg:"field"`
	Column   string `cfg:"column"`
	Kind     string `cfg:"kind"`
	Key      bool   `cfg:"key"`
	Identity *bool  `cfg:"identity"`
	Readonly bool   `cfg:"readonly"`
	Cast     string `cfg:"cast"`
}

// SchemaTable 一个类型的声明式描述
type SchemaTable struct {
	// Type Go 类型名，不含包路径
	Type   string        `cfg:"type" validate:"required"`
	Table  string        `cfg:"table"`
	Fields []SchemaField `cfg:"fields" validate:"dive"`
}

// SchemaDocument schema 文件的顶层结构
type SchemaDocument struct {
	Tables []SchemaTable `cfg:"tables" validate:"dive"`
}

// LoadSchema 从 yaml/toml/json/ini 文件加载 schema
func LoadSchema(filename string) (*SchemaDocument, error) {
	var doc SchemaDocument
	if err := cfg.Load(filename, &doc); err != nil {
		return nil, errors.WithMessagef(err, "failed to load schema %s", filename)
	}
	return &doc, nil
}

// Schema 基于声明式 schema 的 Introspector，按 Go 类型名查找描述，
// 找不到时交给 fallback
type Schema struct {
	tables   map[string]SchemaTable
	fallback Introspector
	shapes   *xsync.MapOf[reflect.Type, *RowShape]
}

// NewSchema 创建 Schema，fallback 可以为 nil
func NewSchema(doc *SchemaDocument, fallback Introspector) (*Schema, error) {
	if doc == nil {
		return nil, errors.New("schema document cannot be nil")
	}

	tables := make(map[string]SchemaTable, len(doc.Tables))
	for _, table := range doc.Tables {
		if _, ok := tables[table.Type]; ok {
			return nil, errors.Errorf("duplicate schema for type %s", table.Type)
		}
		tables[table.Type] = table
	}

	return &Schema{
		tables:   tables,
		fallback: fallback,
		shapes:   xsync.NewMapOf[reflect.Type, *RowShape](),
	}, nil
}

// Shapes 返回 schema 中声明的所有表的行结构，顺序与文件一致
func (d *SchemaDocument) Shapes() ([]*RowShape, error) {
	shapes := make([]*RowShape, 0, len(d.Tables))
	for _, table := range d.Tables {
		s, err := FromSchema(table)
		if err != nil {
			return nil, err
		}
		shapes = append(shapes, s)
	}
	return shapes, nil
}

// Introspect 实现 Introspector 接口
func (s *Schema) Introspect(t reflect.Type) (*RowShape, error) {
	t = Indirect(t)
	if t == nil {
		return nil, NewInvalidShapeError("", "nil type")
	}
	if rs, ok := s.shapes.Load(t); ok {
		return rs, nil
	}

	table, ok := s.tables[t.Name()]
	if !ok {
		if s.fallback != nil {
			return s.fallback.Introspect(t)
		}
		return nil, NewInvalidShapeError(t.String(), "no schema declared")
	}
	if t.Kind() != reflect.Struct {
		return nil, NewInvalidShapeError(t.String(), "expected struct, got %v", t.Kind())
	}

	rs, err := FromSchema(table)
	if err != nil {
		return nil, err
	}
	rs.Type = t
	if err := bindFields(t, rs); err != nil {
		return nil, err
	}

	actual, _ := s.shapes.LoadOrStore(t, rs)
	return actual, nil
}

// FromSchema 把声明式描述转换为 RowShape，结果不绑定 Go 类型
func FromSchema(table SchemaTable) (*RowShape, error) {
	if table.Type == "" {
		return nil, NewInvalidShapeError("", "schema type cannot be empty")
	}

	rs := &RowShape{Name: table.Type, Table: table.Table}
	for _, sf := range table.Fields {
		if sf.Name == "" {
			return nil, NewInvalidShapeError(table.Type, "field name cannot be empty")
		}
		kind, err := parseKind(sf.Kind)
		if err != nil {
			return nil, NewInvalidShapeError(table.Type, "field %s: %v", sf.Name, err)
		}
		rs.Fields = append(rs.Fields, Field{
			Name:     sf.Name,
			GoName:   sf.Field,
			Column:   sf.Column,
			Kind:     kind,
			Settable: !sf.Readonly,
			Key:      sf.Key,
			Identity: sf.Identity,
			Cast:     sf.Cast,
		})
	}
	return rs, nil
}

// bindFields 把声明的字段绑定到结构体字段，类型以结构体为准
func bindFields(t reflect.Type, rs *RowShape) error {
	for i := range rs.Fields {
		f := &rs.Fields[i]

		var sf reflect.StructField
		var ok bool
		if f.GoName != "" {
			sf, ok = t.FieldByName(f.GoName)
		} else {
			name := f.Name
			sf, ok = t.FieldByNameFunc(func(s string) bool {
				return strings.EqualFold(s, name)
			})
		}
		if !ok || !sf.IsExported() {
			return NewInvalidShapeError(t.String(), "field %s not found in struct", f.Name)
		}

		f.GoName = sf.Name
		f.Index = sf.Index
		f.Kind = Indirect(sf.Type).Kind()
	}
	return nil
}

var kinds = func() map[string]reflect.Kind {
	m := map[string]reflect.Kind{
		"":        reflect.Invalid,
		"integer": reflect.Int64,
		"bigint":  reflect.Int64,
		"text":    reflect.String,
		"float":   reflect.Float64,
		"double":  reflect.Float64,
		"boolean": reflect.Bool,
	}
	for k := reflect.Bool; k <= reflect.UnsafePointer; k++ {
		m[k.String()] = k
	}
	return m
}()

func parseKind(s string) (reflect.Kind, error) {
	kind, ok := kinds[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return reflect.Invalid, errors.Errorf("unknown kind %q", s)
	}
	return kind, nil
}
