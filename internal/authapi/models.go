// Пакет authapi — HTTP-клиент к admin API аутентификации BaaS (/auth/v1).
// models.go — модели данных auth API.
package authapi

import "time"

// User — учётная запись из GET /auth/v1/admin/users.
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	Role             string         `json:"role"`
	CreatedAt        time.Time      `json:"created_at"`
	LastSignInAt     *time.Time     `json:"last_sign_in_at,omitempty"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
}

// userList — страница списка пользователей.
type userList struct {
	Users []User `json:"users"`
}

// CreateUserRequest — тело POST /auth/v1/admin/users.
type CreateUserRequest struct {
	Email        string         `json:"email"`
	Password     string         `json:"password"`
	EmailConfirm bool           `json:"email_confirm"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}
