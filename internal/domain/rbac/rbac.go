// Пакет rbac — роли профилей сайта и правило допуска к админке.
// Роль хранится в таблице profiles; доступ к /api/admin/* есть только у admin.
package rbac

import "slices"

// Роли в порядке возрастания привилегий.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// IsValidRole проверяет, является ли строка допустимой ролью.
// Используется правилом валидации форм "role".
func IsValidRole(role string) bool {
	return slices.Contains(Roles(), role)
}

// IsAdmin сообщает, даёт ли роль доступ к админке.
// Пустая или неизвестная роль доступа не даёт.
func IsAdmin(role string) bool {
	return role == RoleAdmin
}

// Roles возвращает список допустимых ролей в порядке возрастания привилегий.
func Roles() []string {
	return []string{RoleUser, RoleAdmin}
}
