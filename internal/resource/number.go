package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Number — десятичное число из JSON-числа или числовой строки ("19.99").
// null, отсутствие поля и пустая строка дают незаданное значение.
type Number struct {
	Value float64
	Set   bool
}

// UnmarshalJSON разбирает число строго: "12abc" и true — ошибка.
func (n *Number) UnmarshalJSON(b []byte) error {
	raw, ok, err := numericText(b)
	if err != nil || !ok {
		*n = Number{}
		return err
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("некорректное число: %s", raw)
	}
	*n = Number{Value: f, Set: true}
	return nil
}

// MarshalJSON возвращает null для незаданного значения.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Set {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Ptr возвращает значение для записи в хранилище (nil, если не задано).
func (n Number) Ptr() *float64 {
	if !n.Set {
		return nil
	}
	v := n.Value
	return &v
}

// Integer — целое число из JSON-числа или числовой строки ("3").
type Integer struct {
	Value int64
	Set   bool
}

func (n *Integer) UnmarshalJSON(b []byte) error {
	raw, ok, err := numericText(b)
	if err != nil || !ok {
		*n = Integer{}
		return err
	}
	i, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("некорректное целое число: %s", raw)
	}
	*n = Integer{Value: i, Set: true}
	return nil
}

func (n Integer) MarshalJSON() ([]byte, error) {
	if !n.Set {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

func (n Integer) Ptr() *int64 {
	if !n.Set {
		return nil
	}
	v := n.Value
	return &v
}

// numericText извлекает текст числа из JSON-значения.
// ok=false — значение отсутствует (null или пустая строка).
func numericText(b []byte) (string, bool, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return "", false, nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", false, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return "", false, nil
		}
		return s, true, nil
	}
	if b[0] == '-' || (b[0] >= '0' && b[0] <= '9') {
		return string(b), true, nil
	}
	return "", false, fmt.Errorf("ожидается число, получено %s", b)
}
