package resource

import (
	"context"
	"reflect"
	"strings"

	"github.com/go-playground/mold/v4"
	"github.com/go-playground/mold/v4/modifiers"

	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/repository"
)

var conform = newConform()

func newConform() *mold.Transformer {
	t := modifiers.New()
	t.Register("nilempty", nilEmpty)
	return t
}

// nilEmpty заменяет пустую необязательную строку (*string) на nil.
func nilEmpty(_ context.Context, fl mold.FieldLevel) error {
	if fl.Field().Kind() != reflect.String || fl.Field().String() != "" {
		return nil
	}
	if p := fl.Parent(); p.Kind() == reflect.Pointer && p.CanSet() {
		p.Set(reflect.Zero(p.Type()))
	}
	return nil
}

// normalizer — дополнительные правила нормализации конкретной формы.
type normalizer interface {
	normalize()
}

// Normalize применяет теги mod формы (trim, nilempty), затем правила
// самой формы. p — указатель на структуру.
func Normalize(p any) error {
	if err := conform.Struct(context.Background(), p); err != nil {
		return err
	}
	if n, ok := p.(normalizer); ok {
		n.normalize()
	}
	return nil
}

// ToRow преобразует нормализованную форму в строку хранилища.
// Имена колонок берутся из json-тегов; поля с тегом row:"-" пропускаются.
// Незаданные *bool не попадают в строку, чтобы сработали значения по умолчанию.
func ToRow(p any) repository.Row {
	v := reflect.ValueOf(p).Elem()
	t := v.Type()
	row := make(repository.Row, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Tag.Get("row") == "-" {
			continue
		}
		col := jsonName(sf)
		if col == "" {
			continue
		}

		switch val := v.Field(i).Interface().(type) {
		case Number:
			row[col] = val.Ptr()
		case Integer:
			row[col] = val.Ptr()
		case *bool:
			if val != nil {
				row[col] = *val
			}
		case *string:
			if val == nil {
				row[col] = nil
			} else {
				row[col] = *val
			}
		default:
			row[col] = val
		}
	}
	return row
}

func jsonName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return sf.Name
	}
	return name
}
