package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/authapi"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/domain/model"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/repository"
)

const (
	adminID = "11111111-1111-1111-1111-111111111111"
	userID  = "22222222-2222-2222-2222-222222222222"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func adminIdentity() *model.Identity {
	return &model.Identity{ID: adminID, Email: "admin@site.test"}
}

func userIdentity() *model.Identity {
	return &model.Identity{ID: userID, Email: "fan@site.test"}
}

// --- fakeStore: TableStore в памяти ---

type fakeStore struct {
	mu     sync.Mutex
	tables map[string][]repository.Row
	seq    int
	calls  []string
	// failOn — операция ("insert", "update", ...) → ошибка
	failOn map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{tables: map[string][]repository.Row{}, failOn: map[string]error{}}
}

func (s *fakeStore) record(op string) error {
	s.calls = append(s.calls, op)
	return s.failOn[op]
}

func (s *fakeStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		switch c {
		case "insert", "update", "update_where", "upsert", "delete", "increment":
			n++
		}
	}
	return n
}

func (s *fakeStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *fakeStore) seed(table string, row repository.Row) repository.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := row["id"]; !ok {
		s.seq++
		row["id"] = fmt.Sprintf("00000000-0000-0000-0000-%012d", s.seq)
	}
	s.tables[table] = append(s.tables[table], row)
	return row
}

func matches(r repository.Row, eq map[string]any) bool {
	for k, v := range eq {
		if r[k] != v {
			return false
		}
	}
	return true
}

func clone(r repository.Row) repository.Row {
	out := make(repository.Row, len(r))
	for k, v := range r {
		out[k] = plain(v)
	}
	return out
}

// plain приводит значение к виду, в котором его вернул бы to_jsonb.
func plain(v any) any {
	switch x := v.(type) {
	case *float64:
		if x == nil {
			return nil
		}
		return *x
	case *int64:
		if x == nil {
			return nil
		}
		return float64(*x)
	case int64:
		return float64(x)
	default:
		return v
	}
}

func (s *fakeStore) Select(_ context.Context, table string, f repository.Filter) ([]repository.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("select"); err != nil {
		return nil, err
	}
	rows := make([]repository.Row, 0)
	for _, r := range s.tables[table] {
		if matches(r, f.Eq) {
			rows = append(rows, clone(r))
		}
	}
	if f.OrderBy != "" {
		sort.SliceStable(rows, func(i, j int) bool {
			less := fmt.Sprint(rows[i][f.OrderBy]) < fmt.Sprint(rows[j][f.OrderBy])
			if f.Desc {
				return !less
			}
			return less
		})
	}
	if f.Limit > 0 && len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}
	return rows, nil
}

func (s *fakeStore) Get(_ context.Context, table, id string) (repository.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("get"); err != nil {
		return nil, err
	}
	for _, r := range s.tables[table] {
		if r.ID() == id {
			return clone(r), nil
		}
	}
	return nil, fmt.Errorf("%s: %w", table, repository.ErrNotFound)
}

func (s *fakeStore) Insert(_ context.Context, table string, row repository.Row) (repository.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("insert"); err != nil {
		return nil, err
	}
	s.seq++
	r := clone(row)
	r["id"] = fmt.Sprintf("00000000-0000-0000-0000-%012d", s.seq)
	if table == linksTable {
		if _, ok := r["is_primary"]; !ok {
			r["is_primary"] = false
		}
	}
	s.tables[table] = append(s.tables[table], r)
	return clone(r), nil
}

func (s *fakeStore) Update(_ context.Context, table, id string, row repository.Row) (repository.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("update"); err != nil {
		return nil, err
	}
	for _, r := range s.tables[table] {
		if r.ID() == id {
			for k, v := range row {
				if k != "id" {
					r[k] = plain(v)
				}
			}
			return clone(r), nil
		}
	}
	return nil, fmt.Errorf("%s: %w", table, repository.ErrNotFound)
}

func (s *fakeStore) UpdateWhere(_ context.Context, table string, eq map[string]any, row repository.Row) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("update_where"); err != nil {
		return 0, err
	}
	var n int64
	for _, r := range s.tables[table] {
		if matches(r, eq) {
			for k, v := range row {
				r[k] = plain(v)
			}
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) Upsert(_ context.Context, table, conflictColumn string, row repository.Row) (repository.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("upsert"); err != nil {
		return nil, err
	}
	for _, r := range s.tables[table] {
		if r[conflictColumn] == row[conflictColumn] {
			for k, v := range row {
				r[k] = plain(v)
			}
			return clone(r), nil
		}
	}
	r := clone(row)
	s.tables[table] = append(s.tables[table], r)
	return clone(r), nil
}

func (s *fakeStore) Delete(_ context.Context, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("delete"); err != nil {
		return err
	}
	rows := s.tables[table]
	for i, r := range rows {
		if r.ID() == id {
			s.tables[table] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%s[%s]: %w", table, id, repository.ErrNotFound)
}

func (s *fakeStore) Count(_ context.Context, table string, eq map[string]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("count"); err != nil {
		return 0, err
	}
	var n int64
	for _, r := range s.tables[table] {
		if matches(r, eq) {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) Increment(_ context.Context, table, id, column string) (repository.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("increment"); err != nil {
		return nil, err
	}
	for _, r := range s.tables[table] {
		if r.ID() == id {
			n, _ := r[column].(float64)
			r[column] = n + 1
			return clone(r), nil
		}
	}
	return nil, fmt.Errorf("%s: %w", table, repository.ErrNotFound)
}

// --- fakeProfiles: ProfileRepository в памяти ---

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*model.Profile
	getErr   error
	gets     int
	failOn   map[string]error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		profiles: map[string]*model.Profile{
			adminID: {ID: adminID, Role: "admin", CreatedAt: time.Now()},
			userID:  {ID: userID, Role: "user", CreatedAt: time.Now()},
		},
		failOn: map[string]error{},
	}
}

func (f *fakeProfiles) GetByID(_ context.Context, id string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) List(_ context.Context) ([]*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["list"]; err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(f.profiles))
	for id := range f.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*model.Profile, 0, len(ids))
	for _, id := range ids {
		cp := *f.profiles[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeProfiles) Upsert(_ context.Context, p *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["upsert"]; err != nil {
		return err
	}
	cp := *p
	f.profiles[p.ID] = &cp
	return nil
}

func (f *fakeProfiles) UpdateRole(_ context.Context, id, role string, username *string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, fmt.Errorf("профиль %s: %w", id, repository.ErrNotFound)
	}
	p.Role = role
	if username != nil {
		p.Username = username
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["delete"]; err != nil {
		return err
	}
	if _, ok := f.profiles[id]; !ok {
		return fmt.Errorf("профиль %s: %w", id, repository.ErrNotFound)
	}
	delete(f.profiles, id)
	return nil
}

// --- fakeAuth: AuthAdmin в памяти ---

type fakeAuth struct {
	mu        sync.Mutex
	users     []authapi.User
	listErr   error
	createErr error
	deleteErr error
	deleted   []string
	listCalls int
}

func (a *fakeAuth) ListUsers(_ context.Context) ([]authapi.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listCalls++
	if a.listErr != nil {
		return nil, a.listErr
	}
	return append([]authapi.User(nil), a.users...), nil
}

func (a *fakeAuth) CreateUser(_ context.Context, req authapi.CreateUserRequest) (*authapi.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.createErr != nil {
		return nil, a.createErr
	}
	u := authapi.User{ID: "33333333-3333-3333-3333-333333333333", Email: req.Email}
	a.users = append(a.users, u)
	return &u, nil
}

func (a *fakeAuth) DeleteUser(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deleteErr != nil {
		return a.deleteErr
	}
	a.deleted = append(a.deleted, id)
	return nil
}

// --- fakeSettings: SettingsRepository в памяти ---

type fakeSettings struct {
	mu     sync.Mutex
	items  map[string]repository.SiteSetting
	failOn map[string]error
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{items: map[string]repository.SiteSetting{}, failOn: map[string]error{}}
}

func (f *fakeSettings) Set(_ context.Context, key, value, updatedBy string) (*repository.SiteSetting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[key]; err != nil {
		return nil, err
	}
	s := repository.SiteSetting{Key: key, Value: value, UpdatedBy: &updatedBy, UpdatedAt: time.Now()}
	f.items[key] = s
	return &s, nil
}

func (f *fakeSettings) List(_ context.Context) ([]repository.SiteSetting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.SiteSetting, 0, len(f.items))
	for _, s := range f.items {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *fakeSettings) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[key]; !ok {
		return fmt.Errorf("site_settings[%s]: %w", key, repository.ErrNotFound)
	}
	delete(f.items, key)
	return nil
}

// --- сборка сервисов ---

type fixture struct {
	store    *fakeStore
	profiles *fakeProfiles
	auth     *fakeAuth
	settings *fakeSettings
	cache    *CacheService
	retry    *Retrier
	gate     *Gate
}

func newFixture() *fixture {
	f := &fixture{
		store:    newFakeStore(),
		profiles: newFakeProfiles(),
		auth:     &fakeAuth{},
		settings: newFakeSettings(),
		cache:    NewCacheService(64, time.Minute),
		retry:    NewRetrier(3, time.Millisecond, testLogger()),
	}
	f.gate = NewGate(f.profiles, f.retry, testLogger())
	return f
}

func (f *fixture) resources() *ResourceService {
	return NewResourceService(f.store, f.gate, f.retry, f.cache, testLogger())
}

func (f *fixture) links() *StreamingLinkService {
	return NewStreamingLinkService(f.store, f.gate, f.retry, f.cache, testLogger())
}

func (f *fixture) users() *AdminUserService {
	return NewAdminUserService(f.profiles, f.auth, f.gate, f.retry, testLogger())
}

var errBoom = errors.New("connection reset by peer")
