package shape

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

const (
	tagName   = "rdb"
	tableTag  = "table"
	ignoreTag = "-"
)

var tableNamerType = reflect.TypeOf((*TableNamer)(nil)).Elem()

// Reflect 基于结构体 tag 的 Introspector，每个类型只解析一次
type Reflect struct {
	shapes *xsync.MapOf[reflect.Type, *RowShape]
}

// NewReflect 创建基于反射的 Introspector
func NewReflect() *Reflect {
	return &Reflect{shapes: xsync.NewMapOf[reflect.Type, *RowShape]()}
}

// Introspect 实现 Introspector 接口，解析失败的结果不会被缓存
func (r *Reflect) Introspect(t reflect.Type) (*RowShape, error) {
	t = Indirect(t)
	if t == nil {
		return nil, NewInvalidShapeError("", "nil type")
	}
	if s, ok := r.shapes.Load(t); ok {
		return s, nil
	}

	s, err := FromStruct(t)
	if err != nil {
		return nil, err
	}
	actual, _ := r.shapes.LoadOrStore(t, s)
	return actual, nil
}

// FromStruct 从结构体类型构建 RowShape
func FromStruct(t reflect.Type) (*RowShape, error) {
	t = Indirect(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, NewInvalidShapeError(typeName(t), "expected struct, got %v", kindOf(t))
	}

	s := &RowShape{
		Type:  t,
		Name:  t.Name(),
		Table: tableName(t),
	}
	if err := collectFields(t, nil, s); err != nil {
		return nil, err
	}
	return s, nil
}

func collectFields(t reflect.Type, index []int, s *RowShape) error {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, hasTag := sf.Tag.Lookup(tagName)
		if tag == ignoreTag {
			continue
		}

		fieldIndex := append(append([]int{}, index...), i)

		// 没有 rdb tag 的嵌入结构体展开为外层字段
		if sf.Anonymous && !hasTag && Indirect(sf.Type).Kind() == reflect.Struct {
			// 嵌入指针可能为 nil，其字段无法稳定地读写
			if sf.Type.Kind() == reflect.Ptr {
				return NewInvalidShapeError(s.Name, "embedded pointer %s is not supported, embed it by value or tag it rdb:\"-\"", sf.Name)
			}
			if err := collectFields(sf.Type, fieldIndex, s); err != nil {
				return err
			}
			continue
		}

		if !sf.IsExported() {
			continue
		}

		field, err := parseField(sf, tag)
		if err != nil {
			return NewInvalidShapeError(s.Name, "field %s: %v", sf.Name, err)
		}
		field.Index = fieldIndex
		s.Fields = append(s.Fields, field)
	}
	return nil
}

// parseField 解析字段的 rdb tag
func parseField(sf reflect.StructField, tag string) (Field, error) {
	field := Field{
		Name:     LogicalName(sf.Name),
		GoName:   sf.Name,
		Kind:     Indirect(sf.Type).Kind(),
		Settable: true,
	}

	if tag == "" {
		return field, nil
	}

	parts := strings.Split(tag, ",")
	if column := strings.TrimSpace(parts[0]); column != "" && !strings.Contains(column, "=") {
		field.Column = column
		parts = parts[1:]
	} else if column == "" {
		parts = parts[1:]
	}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if key, value, ok := strings.Cut(part, "="); ok {
			key, value = strings.TrimSpace(key), strings.TrimSpace(value)
			switch key {
			case "cast", "type":
				field.Cast = value
			case "name":
				if value == "" {
					return field, errors.Errorf("empty logical name")
				}
				field.Name = value
			case "column":
				field.Column = value
			default:
				return field, errors.Errorf("unknown option %q", key)
			}
			continue
		}

		switch part {
		case "key", "primary", "pk":
			field.Key = true
		case "identity", "auto":
			field.Identity = boolPtr(true)
		case "manual":
			field.Identity = boolPtr(false)
		case "readonly":
			field.Settable = false
		default:
			return field, errors.Errorf("unknown option %q", part)
		}
	}

	return field, nil
}

// tableName 表名优先取 TableName() 方法，其次是任意字段上的 table tag
func tableName(t reflect.Type) string {
	if t.Implements(tableNamerType) {
		return reflect.Zero(t).Interface().(TableNamer).TableName()
	}
	if reflect.PointerTo(t).Implements(tableNamerType) {
		return reflect.New(t).Interface().(TableNamer).TableName()
	}
	for i := 0; i < t.NumField(); i++ {
		if name := t.Field(i).Tag.Get(tableTag); name != "" {
			return name
		}
	}
	return ""
}

func typeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	return t.String()
}

func kindOf(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	return t.Kind().String()
}

func boolPtr(b bool) *bool {
	return &b
}
