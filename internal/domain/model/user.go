// Пакет model — доменные модели API сайта.
package model

import "time"

// Identity — аутентифицированный субъект из JWT (auth BaaS).
// Role заполняется Authorization Gate после чтения профиля.
type Identity struct {
	// ID — идентификатор пользователя (sub)
	ID string
	// Email — адрес из claim email (может быть пустым)
	Email string
	// Role — роль из таблицы profiles (после проверки gate)
	Role string
}

// Profile — запись таблицы profiles. id совпадает с id учётной записи auth API.
type Profile struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Username  *string   `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AdminUser — строка списка пользователей админки:
// профиль, дополненный email из auth API (left join по id).
type AdminUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Username  *string   `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// EmailNotAvailable — значение email, если учётная запись не найдена в auth API.
const EmailNotAvailable = "N/A"
