// client.go — HTTP-клиент к admin API аутентификации BaaS.
// Запросы подписываются сервисным ключом (заголовки apikey и Authorization).
// Операции: ListUsers (все страницы), CreateUser, DeleteUser, Health.
package authapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultPageSize — размер страницы при выгрузке списка пользователей.
const DefaultPageSize = 100

// maxPages ограничивает выгрузку при ошибочной пагинации на стороне API.
const maxPages = 1000

// ErrUnauthorized — сервисный ключ отклонён (401/403). Повтор запроса бессмыслен.
var ErrUnauthorized = errors.New("auth API отклонил сервисный ключ")

// ErrNotFound — учётная запись не найдена (404).
var ErrNotFound = errors.New("учётная запись не найдена")

// StatusError — неуспешный HTTP-ответ auth API.
// Message — текст ошибки из тела ответа (msg, message, error_description или error).
type StatusError struct {
	StatusCode int
	Body       string
	Message    string
}

// Error возвращает сообщение auth API без изменений, если оно есть в теле ответа.
func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Body != "" {
		return fmt.Sprintf("auth API вернул статус %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("auth API вернул статус %d", e.StatusCode)
}

// upstreamMessage извлекает текст ошибки из JSON-тела ответа auth API.
func upstreamMessage(body []byte) string {
	var payload struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            any    `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, m := range []string{payload.Msg, payload.Message, payload.ErrorDescription} {
		if m != "" {
			return m
		}
	}
	if m, ok := payload.Error.(string); ok {
		return m
	}
	return ""
}

// Client — HTTP-клиент к admin API аутентификации.
type Client struct {
	baseURL    string // Базовый URL BaaS (без trailing slash)
	serviceKey string // Сервисный ключ (service role)
	anonKey    string // Публичный ключ для /health (пусто — serviceKey)
	pageSize   int

	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиент auth API.
// httpClient — HTTP-клиент (nil — клиент с таймаутом 30s).
func New(baseURL, serviceKey string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		pageSize:   DefaultPageSize,
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "auth_api_client")),
	}
}

// NewHTTPClient создаёт HTTP-клиент с таймаутом 30s.
// caCertPath — путь к CA-сертификату (пустая строка — системный пул).
func NewHTTPClient(caCertPath string) (*http.Client, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if caCertPath == "" {
		return httpClient, nil
	}

	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("CA-сертификат %s не содержит PEM-блоков", caCertPath)
	}

	httpClient.Transport = &http.Transport{
		TLSClientConfig: &tls.Config{RootCAs: pool},
	}
	return httpClient, nil
}

// WithAnonKey задаёт публичный ключ, которым подписывается проверка /health.
func (c *Client) WithAnonKey(key string) *Client {
	c.anonKey = key
	return c
}

// --- HTTP helpers ---

// do выполняет запрос к auth API с сервисным ключом.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	return c.doWithKey(ctx, c.serviceKey, method, path, body)
}

func (c *Client) doWithKey(ctx context.Context, key, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("сериализация тела запроса: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/auth/v1"+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}

	req.Header.Set("apikey", key)
	req.Header.Set("Authorization", "Bearer "+key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос %s %s: %w", method, path, err)
	}
	return resp, nil
}

// decodeResponse проверяет статус и декодирует JSON ответ в target.
func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return err
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("декодирование ответа auth API: %w", err)
		}
	}
	return nil
}

// statusError преобразует неуспешный статус в ошибку.
func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	se := &StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
		Message:    upstreamMessage(body),
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrUnauthorized, se)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrNotFound, se)
	default:
		return se
	}
}

// --- Users API ---

// ListUsers возвращает все учётные записи, обходя страницы до первой неполной.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var all []User
	for page := 1; page <= maxPages; page++ {
		path := fmt.Sprintf("/admin/users?page=%d&per_page=%d", page, c.pageSize)

		resp, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}

		var list userList
		if err := decodeResponse(resp, &list); err != nil {
			return nil, fmt.Errorf("список пользователей, страница %d: %w", page, err)
		}

		all = append(all, list.Users...)
		if len(list.Users) < c.pageSize {
			break
		}
	}

	c.logger.Debug("Список пользователей получен", slog.Int("count", len(all)))
	return all, nil
}

// CreateUser создаёт учётную запись с подтверждённым email.
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	resp, err := c.do(ctx, http.MethodPost, "/admin/users", req)
	if err != nil {
		return nil, err
	}

	var user User
	if err := decodeResponse(resp, &user); err != nil {
		return nil, fmt.Errorf("создание пользователя %s: %w", req.Email, err)
	}

	c.logger.Info("Пользователь создан в auth API",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return &user, nil
}

// DeleteUser удаляет учётную запись по id.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/admin/users/"+id, nil)
	if err != nil {
		return err
	}
	if err := decodeResponse(resp, nil); err != nil {
		return fmt.Errorf("удаление пользователя %s: %w", id, err)
	}

	c.logger.Info("Пользователь удалён из auth API", slog.String("user_id", id))
	return nil
}

// Health проверяет доступность auth API (GET /auth/v1/health).
// Запрос подписывается публичным ключом, если он задан.
func (c *Client) Health(ctx context.Context) error {
	key := c.anonKey
	if key == "" {
		key = c.serviceKey
	}
	resp, err := c.doWithKey(ctx, key, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	return decodeResponse(resp, nil)
}

// CheckReady реализует проверку готовности для /health/ready.
func (c *Client) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.Health(ctx); err != nil {
		return "fail", fmt.Sprintf("auth API недоступен: %v", err)
	}
	return "ok", "auth API доступен"
}
