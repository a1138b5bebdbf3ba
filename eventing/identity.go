package eventing

import (
	"fmt"
	"reflect"
	"strconv"
)

// IdentityString 将聚合标识转换为存储使用的规范字符串
//
// 支持 string、所有整数类型以及实现 fmt.Stringer 的类型（例如 uuid.UUID）。
// 其它类型和空字符串返回 *IdentityConversionError。
func IdentityString(id any) (string, error) {
	var s string
	switch v := id.(type) {
	case nil:
		return "", &IdentityConversionError{ID: id, Reason: "identity is nil"}
	case string:
		s = v
	case fmt.Stringer:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return "", &IdentityConversionError{ID: id, Reason: "identity is a nil pointer"}
		}
		s = v.String()
	default:
		rv := reflect.ValueOf(id)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			s = strconv.FormatInt(rv.Int(), 10)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			s = strconv.FormatUint(rv.Uint(), 10)
		case reflect.String:
			// 具名字符串类型，例如 type OrderID string
			s = rv.String()
		default:
			return "", &IdentityConversionError{ID: id, Reason: "unsupported identity type"}
		}
	}
	if s == "" {
		return "", &IdentityConversionError{ID: id, Reason: "identity is empty"}
	}
	return s, nil
}

// MustIdentityString 用于测试与初始化代码，转换失败时 panic
func MustIdentityString(id any) string {
	s, err := IdentityString(id)
	if err != nil {
		panic(err)
	}
	return s
}
