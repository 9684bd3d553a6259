package resource

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/domain/rbac"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// В ошибках используются имена полей из JSON.
	v.RegisterTagNameFunc(func(sf reflect.StructField) string {
		return jsonName(sf)
	})

	// Числа проверяются как указатели: незаданное значение — nil,
	// а заданный ноль проходит required.
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		return f.Interface().(Number).Ptr()
	}, Number{})
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		return f.Interface().(Integer).Ptr()
	}, Integer{})

	// role — роль профиля из rbac.
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return rbac.IsValidRole(fl.Field().String())
	})

	return v
}

// ValidationError — нарушения правил формы.
// Если не заполнено хотя бы одно обязательное поле, Required содержит
// полный список обязательных полей формы.
type ValidationError struct {
	Required []string
	Fields   map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Required) > 0 {
		return "обязательные поля: " + strings.Join(e.Required, ", ")
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

// Validate проверяет нормализованную форму p (указатель на структуру).
// Возвращает *ValidationError или nil.
func Validate(p any) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Fields: map[string]string{"body": err.Error()}}
	}

	ve := &ValidationError{Fields: make(map[string]string, len(verrs))}
	missing := false
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = true
		}
		ve.Fields[fe.Field()] = describe(fe)
	}
	if missing {
		ve.Required = RequiredFields(p)
	}
	return ve
}

// RequiredFields возвращает JSON-имена обязательных полей формы
// в порядке объявления.
func RequiredFields(p any) []string {
	t := reflect.TypeOf(p)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	var fields []string
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		rules := strings.Split(sf.Tag.Get("validate"), ",")
		if rules[0] == "required" {
			fields = append(fields, jsonName(sf))
		}
	}
	return fields
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "обязательное поле"
	case "url", "http_url":
		return "некорректный URL"
	case "uuid":
		return "ожидается UUID"
	case "email":
		return "некорректный email"
	case "datetime":
		return "ожидается дата в формате YYYY-MM-DD"
	case "oneof":
		return fmt.Sprintf("допустимые значения: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "role":
		return fmt.Sprintf("допустимые значения: %s", strings.Join(rbac.Roles(), ", "))
	case "min":
		return fmt.Sprintf("значение должно быть не меньше %s", fe.Param())
	default:
		return fmt.Sprintf("нарушено правило %s", fe.Tag())
	}
}
