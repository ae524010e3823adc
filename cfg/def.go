package cfg

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// SetDefaults 为结构体设置默认值，基于 def tag，只覆盖零值字段
func SetDefaults(object any) error {
	if object == nil {
		return fmt.Errorf("object cannot be nil")
	}

	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr {
		return fmt.Errorf("object must be a pointer")
	}
	if rv.IsNil() {
		return fmt.Errorf("object cannot be nil")
	}

	return setDefaults(rv.Elem())
}

func setDefaults(rv reflect.Value) error {
	if !rv.IsValid() {
		return nil
	}

	if rv.Kind() == reflect.Ptr {
		// 未配置的可选子结构保持 nil
		if rv.IsNil() {
			return nil
		}
		return setDefaults(rv.Elem())
	}

	if rv.Kind() != reflect.Struct {
		return nil
	}

	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		fieldValue := rv.Field(i)
		if !fieldValue.CanSet() {
			continue
		}

		if isNestedStruct(fieldValue.Type()) {
			if err := setDefaults(fieldValue); err != nil {
				return fmt.Errorf("failed to set defaults for field %s: %v", field.Name, err)
			}
			continue
		}

		defTag, ok := field.Tag.Lookup("def")
		if !ok || !fieldValue.IsZero() {
			continue
		}

		if fieldValue.Kind() == reflect.Ptr {
			fieldValue.Set(reflect.New(fieldValue.Type().Elem()))
			fieldValue = fieldValue.Elem()
		}

		if err := setScalar(fieldValue, defTag); err != nil {
			return fmt.Errorf("failed to set default value for field %s: %v", field.Name, err)
		}
	}

	return nil
}

func isNestedStruct(t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && t != reflect.TypeOf(time.Time{})
}

// setScalar 把字符串解析为目标字段的类型，def tag 和环境变量共用
func setScalar(rv reflect.Value, value string) error {
	switch rv.Kind() {
	case reflect.String:
		rv.SetString(value)
		return nil

	case reflect.Bool:
		val, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool value %q: %v", value, err)
		}
		rv.SetBool(val)
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.Type() == durationType {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration value %q: %v", value, err)
			}
			rv.SetInt(int64(duration))
			return nil
		}
		val, err := strconv.ParseInt(value, 0, rv.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid int value %q: %v", value, err)
		}
		rv.SetInt(val)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		val, err := strconv.ParseUint(value, 0, rv.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid uint value %q: %v", value, err)
		}
		rv.SetUint(val)
		return nil

	case reflect.Float32, reflect.Float64:
		val, err := strconv.ParseFloat(value, rv.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid float value %q: %v", value, err)
		}
		rv.SetFloat(val)
		return nil

	case reflect.Slice:
		parts := strings.Split(value, ",")
		slice := reflect.MakeSlice(rv.Type(), len(parts), len(parts))
		for i, part := range parts {
			if err := setScalar(slice.Index(i), strings.TrimSpace(part)); err != nil {
				return fmt.Errorf("failed to set slice element %d: %v", i, err)
			}
		}
		rv.Set(slice)
		return nil

	case reflect.Interface:
		if rv.Type().NumMethod() == 0 {
			rv.Set(reflect.ValueOf(value))
			return nil
		}
	}

	return fmt.Errorf("unsupported type %v", rv.Type())
}
