package validate

import (
	stderrors "errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	// 错误信息使用 json 字段名，和请求体保持一致
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Struct 校验带 validate tag 的结构体
func Struct(s interface{}) error {
	return validate.Struct(s)
}

// Var 校验单个值，例如 Var(addr, "eth_addr")
func Var(field interface{}, tag string) error {
	return validate.Var(field, tag)
}

// FieldErrors 将校验错误展开为 字段 -> 原因
func FieldErrors(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !stderrors.As(err, &validationErrors) {
		return map[string]string{"_": err.Error()}
	}

	out := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		field := e.Namespace()
		if idx := strings.Index(field, "."); idx >= 0 {
			field = field[idx+1:]
		}
		switch e.Tag() {
		case "required":
			out[field] = "is required"
		case "max":
			out[field] = "must be at most " + e.Param()
		case "numeric":
			out[field] = "must be numeric"
		case "latitude", "longitude":
			out[field] = "must be a valid " + e.Tag()
		case "eth_addr":
			out[field] = "must be a 0x-prefixed hex address"
		case "gte", "lte":
			out[field] = "out of range"
		default:
			out[field] = "is invalid"
		}
	}
	return out
}
