package shape

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/pkg/errors"
)

// FieldByName 按逻辑名查找字段
func (s *RowShape) FieldByName(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Values 按参数顺序从实体中取值，entity 可以是结构体或结构体指针
func (s *RowShape) Values(entity any, params []string) ([]any, error) {
	rv, err := s.structValue(entity)
	if err != nil {
		return nil, err
	}

	values := make([]any, 0, len(params))
	for _, param := range params {
		f, ok := s.FieldByName(param)
		if !ok {
			return nil, errors.Errorf("parameter %s not found in %s", param, s.Name)
		}
		if len(f.Index) == 0 {
			return nil, errors.Errorf("field %s of %s is not bound to a struct field", f.Name, s.Name)
		}
		values = append(values, rv.FieldByIndex(f.Index).Interface())
	}
	return values, nil
}

// IsZero 判断实体某个字段是否为零值，nil 实体视为零值
func (s *RowShape) IsZero(entity any, f Field) bool {
	if entity == nil || len(f.Index) == 0 {
		return true
	}
	rv, err := s.structValue(entity)
	if err != nil {
		return true
	}
	return rv.FieldByIndex(f.Index).IsZero()
}

// SetValue 把数据库返回的值写回实体字段，entity 必须是结构体指针
func (s *RowShape) SetValue(entity any, f Field, value any) error {
	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.Errorf("entity of %s must be a non-nil pointer", s.Name)
	}
	if len(f.Index) == 0 {
		return errors.Errorf("field %s of %s is not bound to a struct field", f.Name, s.Name)
	}

	rv, err := s.structValue(entity)
	if err != nil {
		return err
	}
	fv := rv.FieldByIndex(f.Index)
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}
		fv = fv.Elem()
	}
	return errors.WithMessagef(assign(fv, value), "failed to set %s.%s", s.Name, f.GoName)
}

func (s *RowShape) structValue(entity any) (reflect.Value, error) {
	rv := reflect.ValueOf(entity)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}, errors.Errorf("nil %s", s.Name)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, errors.Errorf("expected struct %s, got %v", s.Name, rv.Kind())
	}
	if s.Type != nil && rv.Type() != s.Type {
		return reflect.Value{}, errors.Errorf("expected %v, got %v", s.Type, rv.Type())
	}
	return rv, nil
}

// assign 驱动返回的 id 可能是 int64、[]byte 或 string，统一转换为字段类型
func assign(fv reflect.Value, value any) error {
	if value == nil {
		return nil
	}
	if b, ok := value.([]byte); ok {
		value = string(b)
	}

	src := reflect.ValueOf(value)
	if src.Type().AssignableTo(fv.Type()) {
		fv.Set(src)
		return nil
	}

	text := fmt.Sprint(value)
	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(text, 10, fv.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "cannot convert %v to %v", value, fv.Type())
		}
		fv.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(text, 10, fv.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "cannot convert %v to %v", value, fv.Type())
		}
		fv.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(text, fv.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "cannot convert %v to %v", value, fv.Type())
		}
		fv.SetFloat(f)
	case reflect.String:
		fv.SetString(text)
	default:
		if !src.Type().ConvertibleTo(fv.Type()) {
			return errors.Errorf("cannot convert %v to %v", src.Type(), fv.Type())
		}
		fv.Set(src.Convert(fv.Type()))
	}
	return nil
}
