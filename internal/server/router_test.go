package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/api/handlers"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/api/middleware"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/api/openapi"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/authapi"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/domain/model"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/repository"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/service"
)

const (
	testSecret = "router-test-secret"
	testIssuer = "https://baas.test/auth/v1"
	adminID    = "11111111-1111-1111-1111-111111111111"
	fanID      = "22222222-2222-2222-2222-222222222222"
	downloadID = "44444444-4444-4444-4444-444444444444"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- memStore: TableStore в памяти ---

type memStore struct {
	mu     sync.Mutex
	tables map[string][]repository.Row
	seq    int
	calls  int
	failOn map[string]error
}

func newMemStore() *memStore {
	return &memStore{tables: map[string][]repository.Row{}, failOn: map[string]error{}}
}

func (s *memStore) hit(op string) error {
	s.calls++
	return s.failOn[op]
}

func (s *memStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *memStore) find(table, id string) (int, bool) {
	for i, r := range s.tables[table] {
		if r.ID() == id {
			return i, true
		}
	}
	return -1, false
}

func matchEq(r repository.Row, eq map[string]any) bool {
	for k, v := range eq {
		if r[k] != v {
			return false
		}
	}
	return true
}

func (s *memStore) Select(_ context.Context, table string, f repository.Filter) ([]repository.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("select"); err != nil {
		return nil, err
	}
	out := make([]repository.Row, 0)
	for _, r := range s.tables[table] {
		if matchEq(r, f.Eq) {
			out = append(out, r)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *memStore) Get(_ context.Context, table, id string) (repository.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("get"); err != nil {
		return nil, err
	}
	if i, ok := s.find(table, id); ok {
		return s.tables[table][i], nil
	}
	return nil, fmt.Errorf("%s: %w", table, repository.ErrNotFound)
}

func (s *memStore) Insert(_ context.Context, table string, row repository.Row) (repository.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("insert"); err != nil {
		return nil, err
	}
	s.seq++
	stored := repository.Row{"id": fmt.Sprintf("00000000-0000-0000-0000-%012d", s.seq)}
	for k, v := range row {
		stored[k] = v
	}
	s.tables[table] = append(s.tables[table], stored)
	return stored, nil
}

func (s *memStore) Update(_ context.Context, table, id string, row repository.Row) (repository.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("update"); err != nil {
		return nil, err
	}
	i, ok := s.find(table, id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", table, repository.ErrNotFound)
	}
	for k, v := range row {
		s.tables[table][i][k] = v
	}
	return s.tables[table][i], nil
}

func (s *memStore) UpdateWhere(_ context.Context, table string, eq map[string]any, row repository.Row) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("update"); err != nil {
		return 0, err
	}
	var n int64
	for _, r := range s.tables[table] {
		if matchEq(r, eq) {
			for k, v := range row {
				r[k] = v
			}
			n++
		}
	}
	return n, nil
}

func (s *memStore) Upsert(ctx context.Context, table, _ string, row repository.Row) (repository.Row, error) {
	return s.Insert(ctx, table, row)
}

func (s *memStore) Delete(_ context.Context, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("delete"); err != nil {
		return err
	}
	i, ok := s.find(table, id)
	if !ok {
		return fmt.Errorf("%s[%s]: %w", table, id, repository.ErrNotFound)
	}
	s.tables[table] = append(s.tables[table][:i], s.tables[table][i+1:]...)
	return nil
}

func (s *memStore) Count(_ context.Context, table string, eq map[string]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("count"); err != nil {
		return 0, err
	}
	var n int64
	for _, r := range s.tables[table] {
		if matchEq(r, eq) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) Increment(_ context.Context, table, id, column string) (repository.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("increment"); err != nil {
		return nil, err
	}
	i, ok := s.find(table, id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", table, repository.ErrNotFound)
	}
	n, _ := s.tables[table][i][column].(float64)
	s.tables[table][i][column] = n + 1
	return s.tables[table][i], nil
}

// --- memProfiles / memSettings ---

type memProfiles struct {
	mu       sync.Mutex
	profiles map[string]*model.Profile
}

func (p *memProfiles) GetByID(_ context.Context, id string) (*model.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pr, ok := p.profiles[id]; ok {
		return pr, nil
	}
	return nil, repository.ErrNotFound
}

func (p *memProfiles) List(context.Context) ([]*model.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*model.Profile, 0, len(p.profiles))
	for _, pr := range p.profiles {
		out = append(out, pr)
	}
	return out, nil
}

func (p *memProfiles) Upsert(_ context.Context, pr *model.Profile) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[pr.ID] = pr
	return nil
}

func (p *memProfiles) UpdateRole(_ context.Context, id, role string, username *string) (*model.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr, ok := p.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	pr.Role, pr.Username = role, username
	return pr, nil
}

func (p *memProfiles) Delete(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.profiles[id]; !ok {
		return repository.ErrNotFound
	}
	delete(p.profiles, id)
	return nil
}

type memSettings struct {
	mu    sync.Mutex
	items map[string]repository.SiteSetting
}

func (m *memSettings) Set(_ context.Context, key, value, updatedBy string) (*repository.SiteSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := repository.SiteSetting{Key: key, Value: value, UpdatedBy: &updatedBy, UpdatedAt: time.Now()}
	m.items[key] = s
	return &s, nil
}

func (m *memSettings) List(context.Context) ([]repository.SiteSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.SiteSetting, 0, len(m.items))
	for _, s := range m.items {
		out = append(out, s)
	}
	return out, nil
}

func (m *memSettings) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[key]; !ok {
		return repository.ErrNotFound
	}
	delete(m.items, key)
	return nil
}

type staticChecker string

func (c staticChecker) CheckReady() (string, string) { return string(c), "" }

// --- окружение теста ---

type testEnv struct {
	store   *memStore
	authAPI *httptest.Server
	authUp  atomic.Bool
	router  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{store: newMemStore()}
	env.authUp.Store(true)

	env.authAPI = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !env.authUp.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"message":"auth service is down for maintenance"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/auth/v1/admin/users" && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`{"users":[{"id":"` + adminID + `","email":"admin@site.test"}]}`))
		case r.URL.Path == "/auth/v1/health":
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(env.authAPI.Close)

	env.store.tables["downloads"] = []repository.Row{
		{"id": downloadID, "title": "Stems", "file_url": "https://cdn.test/stems.zip", "download_count": float64(4)},
	}

	logger := testLogger()
	profiles := &memProfiles{profiles: map[string]*model.Profile{
		adminID: {ID: adminID, Role: "admin"},
		fanID:   {ID: fanID, Role: "user"},
	}}
	settings := &memSettings{items: map[string]repository.SiteSetting{}}
	auth := authapi.New(env.authAPI.URL, "service-key", nil, logger)

	retry := service.NewRetrier(2, time.Millisecond, logger)
	cache := service.NewCacheService(32, time.Minute)
	gate := service.NewGate(profiles, retry, logger)

	h := handlers.NewAPIHandler(
		handlers.NewHealthHandler(
			handlers.Check{Name: "postgresql", Checker: staticChecker("ok")},
			handlers.Check{Name: "auth_api", Checker: auth},
			handlers.Check{Name: "public_cache", Checker: cache, Optional: true},
		),
		handlers.Services{
			Resources: service.NewResourceService(env.store, gate, retry, cache, logger),
			Links:     service.NewStreamingLinkService(env.store, gate, retry, cache, logger),
			Users:     service.NewAdminUserService(profiles, auth, gate, retry, logger),
			Settings:  service.NewSettingsService(settings, gate, retry, cache, logger),
			Dashboard: service.NewDashboardService(env.store, gate, retry),
			Public:    service.NewPublicService(env.store, retry, cache, logger),
			Gate:      gate,
		},
		logger,
	)

	doc, err := openapi.Load(context.Background())
	if err != nil {
		t.Fatalf("openapi.Load: %v", err)
	}
	docHandler, err := handlers.NewOpenAPIHandler(doc)
	if err != nil {
		t.Fatalf("NewOpenAPIHandler: %v", err)
	}

	jwtAuth := middleware.NewJWTAuthWithSecret(testSecret, testIssuer, 0, logger)
	env.router = NewRouter(h, docHandler, jwtAuth, logger)
	return env
}

func token(t *testing.T, sub string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   sub,
		"iss":   testIssuer,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"email": sub[:4] + "@site.test",
		"role":  "authenticated",
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("подпись токена: %v", err)
	}
	return s
}

func (env *testEnv) do(t *testing.T, method, path, sub, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if sub != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, sub))
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("тело ошибки не JSON: %q", rec.Body.String())
	}
	return body.Error.Code, body.Error.Message
}

// --- Тесты ---

func TestRouter_Health(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodGet, "/health/live", "", ""); rec.Code != http.StatusOK {
		t.Errorf("/health/live = %d, ожидается 200", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/health/ready", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("/health/ready = %d, ожидается 200: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"auth_api":{"status":"ok"`) {
		t.Errorf("ответ readiness без auth_api ok: %s", rec.Body.String())
	}

	if env.do(t, http.MethodGet, "/api/songs", "", "").Code != http.StatusOK {
		t.Fatal("публичный список недоступен")
	}
	rec = env.do(t, http.MethodGet, "/health/ready", "", "")
	if !strings.Contains(rec.Body.String(), "записей в кэше: 1") {
		t.Errorf("readiness не отражает кэш публичных выборок: %s", rec.Body.String())
	}

	env.authUp.Store(false)
	if rec := env.do(t, http.MethodGet, "/health/ready", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/health/ready при недоступном auth API = %d, ожидается 503", rec.Code)
	}
}

func TestRouter_AdminRequiresIdentity(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/admin/songs", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("без токена = %d, ожидается 401", rec.Code)
	}
	if code, _ := errorCode(t, rec); code != "UNAUTHORIZED" {
		t.Errorf("code = %q, ожидается UNAUTHORIZED", code)
	}
	if env.store.callCount() != 0 {
		t.Errorf("обращений к хранилищу: %d, ожидается 0", env.store.callCount())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/songs", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	bad := httptest.NewRecorder()
	env.router.ServeHTTP(bad, req)
	if bad.Code != http.StatusUnauthorized {
		t.Errorf("некорректный токен = %d, ожидается 401", bad.Code)
	}
}

func TestRouter_AdminForbiddenForUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/admin/songs", fanID, `{"title":"x","artist":"y","stream_url":"https://s.test"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("роль user = %d, ожидается 403", rec.Code)
	}
	if code, _ := errorCode(t, rec); code != "FORBIDDEN" {
		t.Errorf("code = %q, ожидается FORBIDDEN", code)
	}
	if env.store.callCount() != 0 {
		t.Errorf("обращений к хранилищу: %d, ожидается 0", env.store.callCount())
	}
}

func TestRouter_GateBeforeParsing(t *testing.T) {
	env := newTestEnv(t)
	oversized := `{"title":"` + strings.Repeat("a", 2<<20) + `"}`

	tests := []struct {
		name   string
		method string
		path   string
		sub    string
		body   string
		status int
		code   string
	}{
		{"аноним, некорректный фильтр", http.MethodGet, "/api/admin/merch?is_available=maybe", "", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"аноним, тело больше лимита", http.MethodPost, "/api/admin/songs", "", oversized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"аноним, невалидный JSON", http.MethodPut, "/api/admin/streaming-links", "", "{", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"user, некорректный фильтр", http.MethodGet, "/api/admin/merch?is_available=maybe", fanID, "", http.StatusForbidden, "FORBIDDEN"},
		{"user, тело больше лимита", http.MethodPost, "/api/admin/songs", fanID, oversized, http.StatusForbidden, "FORBIDDEN"},
		{"admin, некорректный фильтр", http.MethodGet, "/api/admin/merch?is_available=maybe", adminID, "", http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.sub, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("статус = %d, ожидается %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if code, _ := errorCode(t, rec); code != tt.code {
				t.Errorf("code = %q, ожидается %q", code, tt.code)
			}
		})
	}
	if env.store.callCount() != 0 {
		t.Errorf("обращений к хранилищу: %d, ожидается 0", env.store.callCount())
	}
}

func TestRouter_CreateSong(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/admin/songs", adminID,
		`{"title":"Night Drive","artist":"Nexdrak","stream_url":"https://stream.test/night"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("создание = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("ответ не JSON: %v", err)
	}
	if resp.Message == "" || resp.Data["title"] != "Night Drive" {
		t.Errorf("ответ = %+v", resp)
	}

	list := env.do(t, http.MethodGet, "/api/songs", "", "")
	if list.Code != http.StatusOK || !strings.Contains(list.Body.String(), "Night Drive") {
		t.Errorf("публичный список = %d %s", list.Code, list.Body.String())
	}
}

func TestRouter_ListLimit(t *testing.T) {
	env := newTestEnv(t)
	for _, title := range []string{"One", "Two"} {
		rec := env.do(t, http.MethodPost, "/api/admin/songs", adminID,
			`{"title":"`+title+`","artist":"Nexdrak","stream_url":"https://stream.test/`+title+`"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("создание %s = %d: %s", title, rec.Code, rec.Body.String())
		}
	}

	rec := env.do(t, http.MethodGet, "/api/admin/songs?limit=1", adminID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("список = %d: %s", rec.Code, rec.Body.String())
	}
	var rows []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("ответ не JSON: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("строк %d, ожидается 1", len(rows))
	}

	bad := env.do(t, http.MethodGet, "/api/admin/songs?limit=ten", adminID, "")
	if bad.Code != http.StatusBadRequest {
		t.Errorf("limit=ten = %d, ожидается 400", bad.Code)
	}
}

func TestRouter_ValidationEnvelope(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/admin/songs", adminID, `{"title":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("пустая форма = %d, ожидается 400", rec.Code)
	}
	code, msg := errorCode(t, rec)
	if code != "VALIDATION_ERROR" || msg == "" {
		t.Errorf("ошибка = %q %q", code, msg)
	}
	if env.store.callCount() != 0 {
		t.Errorf("обращений к хранилищу: %d, ожидается 0", env.store.callCount())
	}
}

func TestRouter_StoreErrorMessagePassedThrough(t *testing.T) {
	env := newTestEnv(t)
	env.store.failOn["insert"] = errors.New(`new row violates check constraint "merch_price_check"`)

	rec := env.do(t, http.MethodPost, "/api/admin/merch", adminID,
		`{"name":"Shirt","price":10,"category":"apparel","purchase_url":"https://shop.test/shirt"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("ошибка хранилища = %d, ожидается 500: %s", rec.Code, rec.Body.String())
	}
	code, msg := errorCode(t, rec)
	if code != "STORE_ERROR" || !strings.Contains(msg, "merch_price_check") {
		t.Errorf("ошибка = %q %q", code, msg)
	}
}

func TestRouter_UsersAuthUnavailable(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/admin/users", adminID, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "admin@site.test") {
		t.Fatalf("список = %d %s", rec.Code, rec.Body.String())
	}

	env.authUp.Store(false)
	rec = env.do(t, http.MethodGet, "/api/admin/users", adminID, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("auth API недоступен = %d, ожидается 500", rec.Code)
	}
	code, msg := errorCode(t, rec)
	if code != "STORE_ERROR" || msg != "auth service is down for maintenance" {
		t.Errorf("ошибка = %q %q, ожидается STORE_ERROR с сообщением auth API", code, msg)
	}
}

func TestRouter_CurrentAdmin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/admin/me", adminID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("/api/admin/me = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), adminID) || !strings.Contains(rec.Body.String(), `"admin"`) {
		t.Errorf("ответ = %s", rec.Body.String())
	}
}

func TestRouter_CountDownload(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/downloads/"+downloadID+"/download", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("скачивание = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		FileURL       string  `json:"file_url"`
		DownloadCount float64 `json:"download_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("ответ не JSON: %v", err)
	}
	if resp.FileURL != "https://cdn.test/stems.zip" || resp.DownloadCount != 5 {
		t.Errorf("ответ = %+v", resp)
	}

	bad := env.do(t, http.MethodPost, "/api/downloads/not-a-uuid/download", "", "")
	if bad.Code != http.StatusBadRequest {
		t.Errorf("некорректный id = %d, ожидается 400", bad.Code)
	}
}

func TestRouter_OpenAPIDocument(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/openapi.json", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("/api/openapi.json = %d", rec.Code)
	}
	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("документ не JSON: %v", err)
	}
	if _, ok := doc["paths"]; !ok {
		t.Error("в документе нет paths")
	}
}
