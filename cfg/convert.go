package cfg

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// ConvertTo 把通用 map 数据写入结构体，字段名取 cfg tag，匹配时忽略大小写
func ConvertTo(data map[string]any, object any) error {
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("object must be a non-nil pointer")
	}
	return convertValue(data, rv.Elem())
}

func convertValue(src any, dst reflect.Value) error {
	srcValue := reflect.ValueOf(src)
	if !srcValue.IsValid() {
		return nil
	}

	if dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return convertValue(src, dst.Elem())
	}

	if srcValue.Type().AssignableTo(dst.Type()) {
		dst.Set(srcValue)
		return nil
	}

	if s, ok := src.(string); ok && dst.Kind() != reflect.Struct && dst.Kind() != reflect.Map {
		return setScalar(dst, s)
	}

	switch dst.Kind() {
	case reflect.Struct:
		return convertToStruct(srcValue, dst)
	case reflect.Map:
		return convertToMap(srcValue, dst)
	case reflect.Slice:
		return convertToSlice(srcValue, dst)
	case reflect.Interface:
		if dst.Type().NumMethod() == 0 {
			dst.Set(srcValue)
			return nil
		}
	}

	if dst.Type() == durationType && srcValue.Kind() == reflect.Float64 {
		dst.SetInt(int64(srcValue.Float() * float64(time.Second)))
		return nil
	}

	if srcValue.Type().ConvertibleTo(dst.Type()) && isNumeric(srcValue.Kind()) == isNumeric(dst.Kind()) {
		dst.Set(srcValue.Convert(dst.Type()))
		return nil
	}

	return fmt.Errorf("cannot convert %v to %v", srcValue.Type(), dst.Type())
}

func isNumeric(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func convertToStruct(src, dst reflect.Value) error {
	if src.Kind() != reflect.Map {
		return fmt.Errorf("cannot convert %v to struct %v", src.Type(), dst.Type())
	}

	dstType := dst.Type()
	for i := 0; i < dstType.NumField(); i++ {
		field := dstType.Field(i)
		fieldValue := dst.Field(i)
		if !fieldValue.CanSet() {
			continue
		}

		name := fieldName(field)
		if name == "-" {
			continue
		}

		for _, key := range src.MapKeys() {
			if !strings.EqualFold(fmt.Sprint(key.Interface()), name) {
				continue
			}
			if err := convertValue(src.MapIndex(key).Interface(), fieldValue); err != nil {
				return fmt.Errorf("field %s: %w", name, err)
			}
			break
		}
	}
	return nil
}

func fieldName(field reflect.StructField) string {
	if tag := field.Tag.Get("cfg"); tag != "" {
		return strings.Split(tag, ",")[0]
	}
	return field.Name
}

func convertToMap(src, dst reflect.Value) error {
	if src.Kind() != reflect.Map {
		return fmt.Errorf("cannot convert %v to map", src.Type())
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMap(dst.Type()))
	}

	keyType := dst.Type().Key()
	for _, key := range src.MapKeys() {
		value := reflect.New(dst.Type().Elem()).Elem()
		if err := convertValue(src.MapIndex(key).Interface(), value); err != nil {
			return err
		}

		k := reflect.ValueOf(key.Interface())
		if !k.Type().AssignableTo(keyType) {
			if !k.Type().ConvertibleTo(keyType) {
				return fmt.Errorf("cannot convert key %v to %v", k.Type(), keyType)
			}
			k = k.Convert(keyType)
		}
		dst.SetMapIndex(k, value)
	}
	return nil
}

func convertToSlice(src, dst reflect.Value) error {
	if src.Kind() != reflect.Slice && src.Kind() != reflect.Array {
		return fmt.Errorf("cannot convert %v to slice", src.Type())
	}

	length := src.Len()
	slice := reflect.MakeSlice(dst.Type(), length, length)
	for i := 0; i < length; i++ {
		if err := convertValue(src.Index(i).Interface(), slice.Index(i)); err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
	}
	dst.Set(slice)
	return nil
}
