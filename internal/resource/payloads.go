package resource

import "github.com/Noctifera-Records/nexdrak-site-sub000/internal/domain/model"

// Типы песен.
const (
	SongTypeAlbum  = "album"
	SongTypeSingle = "single"
)

// Song — форма песни. album_name и track_number сохраняются только для type=album.
type Song struct {
	Title         string  `json:"title" mod:"trim" validate:"required"`
	Artist        string  `json:"artist" mod:"trim" validate:"required"`
	StreamURL     string  `json:"stream_url" mod:"trim" validate:"required,http_url"`
	Type          string  `json:"type" mod:"trim" validate:"oneof=album single"`
	AlbumName     *string `json:"album_name" mod:"trim,nilempty"`
	TrackNumber   Integer `json:"track_number" validate:"omitempty,min=1"`
	ReleaseDate   *string `json:"release_date" mod:"trim,nilempty" validate:"omitempty,datetime=2006-01-02"`
	CoverImageURL *string `json:"cover_image_url" mod:"trim,nilempty" validate:"omitempty,http_url"`
}

func (s *Song) normalize() {
	if s.Type == "" {
		s.Type = SongTypeSingle
	}
	if s.Type == SongTypeSingle {
		s.AlbumName = nil
		s.TrackNumber = Integer{}
	}
}

// Release — форма релиза.
type Release struct {
	Title         string `json:"title" mod:"trim" validate:"required"`
	ReleaseDate   string `json:"release_date" mod:"trim" validate:"required,datetime=2006-01-02"`
	CoverImageURL string `json:"cover_image_url" mod:"trim" validate:"required,http_url"`
	StreamURL     string `json:"stream_url" mod:"trim" validate:"required,http_url"`
}

// Merch — форма товара.
type Merch struct {
	Name        string  `json:"name" mod:"trim" validate:"required"`
	Price       Number  `json:"price" validate:"required,min=0"`
	PurchaseURL string  `json:"purchase_url" mod:"trim" validate:"required,http_url"`
	Category    string  `json:"category" mod:"trim" validate:"required"`
	IsAvailable *bool   `json:"is_available"`
	ImageURL    *string `json:"image_url" mod:"trim,nilempty" validate:"omitempty,http_url"`
	Description *string `json:"description" mod:"trim,nilempty"`
}

// Event — форма события (концерта).
type Event struct {
	Title       string  `json:"title" mod:"trim" validate:"required"`
	Date        string  `json:"date" mod:"trim" validate:"required,datetime=2006-01-02"`
	Time        *string `json:"time" mod:"trim,nilempty"`
	Location    *string `json:"location" mod:"trim,nilempty"`
	Venue       *string `json:"venue" mod:"trim,nilempty"`
	TicketURL   *string `json:"ticket_url" mod:"trim,nilempty" validate:"omitempty,http_url"`
	ImageURL    *string `json:"image_url" mod:"trim,nilempty" validate:"omitempty,http_url"`
	Description *string `json:"description" mod:"trim,nilempty"`
	IsFeatured  *bool   `json:"is_featured"`
	IsPublished *bool   `json:"is_published"`
}

// Download — форма загружаемого материала.
type Download struct {
	Title        string  `json:"title" mod:"trim" validate:"required"`
	Category     string  `json:"category" mod:"trim" validate:"required"`
	FileURL      string  `json:"file_url" mod:"trim" validate:"required"`
	ThumbnailURL *string `json:"thumbnail_url" mod:"trim,nilempty"`
	FileSize     *string `json:"file_size" mod:"trim,nilempty"`
	FileFormat   *string `json:"file_format" mod:"trim,nilempty"`
	Description  *string `json:"description" mod:"trim,nilempty"`
	IsFeatured   *bool   `json:"is_featured"`
}

// StreamingLink — ссылка песни на стриминговой платформе.
type StreamingLink struct {
	SongID    string `json:"song_id" mod:"trim" validate:"required,uuid"`
	Platform  string `json:"platform" mod:"trim" validate:"required"`
	URL       string `json:"url" mod:"trim" validate:"required,http_url"`
	IsPrimary *bool  `json:"is_primary" row:"-"`
}

// Setting — пара ключ/значение настроек сайта.
type Setting struct {
	Key   string `json:"key" mod:"trim" validate:"required"`
	Value string `json:"value" mod:"trim" validate:"required"`
}

// NewUser — форма создания пользователя админкой.
type NewUser struct {
	Email    string  `json:"email" mod:"trim" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
	Role     string  `json:"role" mod:"trim" validate:"required,role"`
	Username *string `json:"username" mod:"trim,nilempty"`
}

// UserRole — форма изменения роли пользователя.
type UserRole struct {
	ID       string  `json:"id" mod:"trim" validate:"required,uuid"`
	Role     string  `json:"role" mod:"trim" validate:"required,role"`
	Username *string `json:"username" mod:"trim,nilempty"`
}

// Ref — ссылка на запись по id (тело PUT и DELETE).
type Ref struct {
	ID string `json:"id" mod:"trim" validate:"required,uuid"`
}

// Toggle — переключение булева флага записи.
type Toggle struct {
	ID    string `json:"id" mod:"trim" validate:"required,uuid"`
	Field string `json:"field" mod:"trim" validate:"required"`
	Value *bool  `json:"value" validate:"required"`
}

// SetPrimary — выбор основной ссылки песни.
type SetPrimary struct {
	SongID string `json:"song_id" mod:"trim" validate:"required,uuid"`
	LinkID string `json:"link_id" mod:"trim" validate:"required,uuid"`
}

// Profile возвращает профиль для записи в таблицу profiles.
func (u *NewUser) Profile(id string) *model.Profile {
	return &model.Profile{ID: id, Role: u.Role, Username: u.Username}
}
