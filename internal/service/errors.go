// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized — запрос без аутентифицированного пользователя.
	ErrUnauthorized = errors.New("требуется аутентификация")
	// ErrForbidden — у пользователя нет роли admin (или профиль не найден).
	ErrForbidden = errors.New("недостаточно прав: требуется роль admin")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
)

// ValidationError — отклонённые входные данные. Сообщение отдаётся клиенту.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// StoreError — ошибка хранилища. Error() возвращает сообщение хранилища без изменений.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

func storeError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// PartialFailure — составная операция прервалась после успешного первого шага.
// Компенсация не выполняется: Completed уже применено, Failed — нет.
type PartialFailure struct {
	Completed string
	Failed    string
	Err       error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("%s; %s: %v", e.Completed, e.Failed, e.Err)
}

func (e *PartialFailure) Unwrap() error { return e.Err }
