package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/PPRAMANIK62/e-commerce-modified/internal/domain"
	"github.com/PPRAMANIK62/e-commerce-modified/internal/repository"
	"github.com/PPRAMANIK62/e-commerce-modified/internal/service/auth"
	"github.com/PPRAMANIK62/e-commerce-modified/internal/service/user"
	"github.com/PPRAMANIK62/e-commerce-modified/pkg/config"
	"github.com/PPRAMANIK62/e-commerce-modified/pkg/crypto"
	jwtpkg "github.com/PPRAMANIK62/e-commerce-modified/pkg/jwt"
)

const testSecret = "router-secret"

type memRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemRepo() *memRepo {
	return &memRepo{users: make(map[string]*domain.User)}
}

func (m *memRepo) CreateUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memRepo) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memRepo) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memRepo) ListUsers(_ context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, *u)
	}
	return users, nil
}

func (m *memRepo) UpdateUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	for id, existing := range m.users {
		if id != u.ID && existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memRepo) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memRepo) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
}

func newTestRouter(t *testing.T) (*Router, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{JWTSecret: testSecret, SessionTTL: time.Hour}
	authSvc := auth.New(repo, log, cfg)
	userSvc := user.New(repo, log)
	return NewRouter(log, authSvc, userSvc, false, nil), repo
}

func doJSON(t *testing.T, router *Router, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return payload
}

func findSessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "jwt" {
			return c
		}
	}
	return nil
}

func registerAlice(t *testing.T, router *Router) (string, *http.Cookie) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/users", map[string]string{
		"username": "alice",
		"email":    "alice@x.com",
		"password": "pw123",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status: %d, body %s", rec.Code, rec.Body.String())
	}
	cookie := findSessionCookie(t, rec)
	if cookie == nil || cookie.Value == "" {
		t.Fatalf("expected session cookie on register")
	}
	body := decodeBody(t, rec)
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("expected user id in register response")
	}
	return id, cookie
}

func seedAdmin(t *testing.T, router *Router, repo *memRepo) (string, *http.Cookie) {
	t.Helper()
	hash, err := crypto.HashPassword("adminpw")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	admin := &domain.User{
		ID:           "admin-1",
		Username:     "root",
		Email:        "root@x.com",
		PasswordHash: hash,
		IsAdmin:      true,
	}
	if err := repo.CreateUser(context.Background(), admin); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	rec := doJSON(t, router, http.MethodPost, "/api/users/auth", map[string]string{
		"email":    "root@x.com",
		"password": "adminpw",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin login status: %d, body %s", rec.Code, rec.Body.String())
	}
	cookie := findSessionCookie(t, rec)
	if cookie == nil {
		t.Fatalf("expected session cookie on admin login")
	}
	return admin.ID, cookie
}

func TestRegisterCreatesUserAndSetsCookie(t *testing.T) {
	router, repo := newTestRouter(t)

	id, cookie := registerAlice(t, router)
	if !cookie.HttpOnly {
		t.Fatalf("session cookie must be HTTP-only")
	}
	stored, err := repo.GetUserByID(context.Background(), id)
	if err != nil {
		t.Fatalf("stored user lookup: %v", err)
	}
	if stored.IsAdmin {
		t.Fatalf("new accounts must not be admin")
	}
	if err := crypto.ComparePassword(stored.PasswordHash, "pw123"); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	router, repo := newTestRouter(t)

	registerAlice(t, router)
	rec := doJSON(t, router, http.MethodPost, "/api/users", map[string]string{
		"username": "alice2",
		"email":    "alice@x.com",
		"password": "pw456",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "User already exists" {
		t.Fatalf("unexpected error message: %v", body["error"])
	}
	users, err := repo.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected single record, got %d", len(users))
	}
}

func TestRegisterRequiresAllFields(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/users", map[string]string{
		"username": "alice",
		"email":    "alice@x.com",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing password, got %d", rec.Code)
	}
}

func TestLoginFailureIsGenericAndSetsNoCookie(t *testing.T) {
	router, _ := newTestRouter(t)
	registerAlice(t, router)

	for _, payload := range []map[string]string{
		{"email": "alice@x.com", "password": "wrongpw"},
		{"email": "nobody@x.com", "password": "wrongpw"},
	} {
		rec := doJSON(t, router, http.MethodPost, "/api/users/auth", payload, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %v, got %d", payload, rec.Code)
		}
		if body := decodeBody(t, rec); body["error"] != "Invalid email or password" {
			t.Fatalf("unexpected error message: %v", body["error"])
		}
		if findSessionCookie(t, rec) != nil {
			t.Fatalf("no cookie must be set on failed login")
		}
	}
}

func TestLoginRoundTrip(t *testing.T) {
	router, _ := newTestRouter(t)
	id, _ := registerAlice(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/users/auth", map[string]string{
		"email":    "alice@x.com",
		"password": "pw123",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("login status: %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["id"] != id {
		t.Fatalf("login returned %v, registered %v", body["id"], id)
	}
	if findSessionCookie(t, rec) == nil {
		t.Fatalf("expected session cookie on login")
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/users/logout", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout without session: %d", rec.Code)
	}
	cookie := findSessionCookie(t, rec)
	if cookie == nil {
		t.Fatalf("expected clearing cookie on logout")
	}
	if cookie.Value != "" || cookie.MaxAge >= 0 {
		t.Fatalf("expected empty expired cookie, got value %q max-age %d", cookie.Value, cookie.MaxAge)
	}
}

func TestAuthenticateRejectionMatrix(t *testing.T) {
	router, _ := newTestRouter(t)
	_, valid := registerAlice(t, router)

	// Alter the first character of the token's claims segment so the
	// signature no longer matches.
	dot := strings.Index(valid.Value, ".") + 1
	replacement := byte('A')
	if valid.Value[dot] == 'A' {
		replacement = 'B'
	}
	tampered := valid.Value[:dot] + string(replacement) + valid.Value[dot+1:]
	wrongKey, err := jwtpkg.GenerateToken("someone", "other-secret", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	expired, err := jwtpkg.GenerateToken("someone", testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	cases := map[string]*http.Cookie{
		"no cookie":    nil,
		"tampered":     {Name: "jwt", Value: tampered},
		"wrong secret": {Name: "jwt", Value: wrongKey},
		"expired":      {Name: "jwt", Value: expired},
	}
	for name, cookie := range cases {
		rec := doJSON(t, router, http.MethodGet, "/api/users/profile", nil, cookie)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, rec.Code)
		}
	}
}

func TestProfileReturnsAuthenticatedUser(t *testing.T) {
	router, _ := newTestRouter(t)
	id, cookie := registerAlice(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/users/profile", nil, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("profile status: %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["id"] != id || body["username"] != "alice" || body["email"] != "alice@x.com" {
		t.Fatalf("unexpected profile payload: %v", body)
	}
}

func TestProfileOfDeletedAccountIsUnauthorized(t *testing.T) {
	router, repo := newTestRouter(t)
	id, cookie := registerAlice(t, router)

	repo.remove(id)
	rec := doJSON(t, router, http.MethodGet, "/api/users/profile", nil, cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after account deletion, got %d", rec.Code)
	}
}

func TestUpdateProfileKeepsUnsetFields(t *testing.T) {
	router, _ := newTestRouter(t)
	_, cookie := registerAlice(t, router)

	rec := doJSON(t, router, http.MethodPut, "/api/users/profile", map[string]string{
		"username": "alice-renamed",
	}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("update profile status: %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["username"] != "alice-renamed" {
		t.Fatalf("username not updated: %v", body)
	}
	if body["email"] != "alice@x.com" {
		t.Fatalf("email should be retained: %v", body)
	}
}

func TestAdminRoutesRejectRegularUsers(t *testing.T) {
	router, _ := newTestRouter(t)
	_, cookie := registerAlice(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/users", nil, cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-admin, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "not authorized as an admin" {
		t.Fatalf("unexpected error message: %v", body["error"])
	}
}

func TestAdminListProjectsOutPasswordHashes(t *testing.T) {
	router, repo := newTestRouter(t)
	registerAlice(t, router)
	_, adminCookie := seedAdmin(t, router, repo)

	rec := doJSON(t, router, http.MethodGet, "/api/users", nil, adminCookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin list status: %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("password field leaked into admin list: %s", rec.Body.String())
	}
	body := decodeBody(t, rec)
	users, ok := body["users"].([]any)
	if !ok || len(users) != 2 {
		t.Fatalf("expected two users in list, got %v", body["users"])
	}
}

func TestAdminGetAndUpdateUser(t *testing.T) {
	router, repo := newTestRouter(t)
	id, _ := registerAlice(t, router)
	_, adminCookie := seedAdmin(t, router, repo)

	rec := doJSON(t, router, http.MethodGet, "/api/users/"+id, nil, adminCookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin get status: %d", rec.Code)
	}

	promote := true
	rec = doJSON(t, router, http.MethodPut, "/api/users/"+id, map[string]any{
		"isAdmin": promote,
	}, adminCookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin update status: %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["isAdmin"] != true {
		t.Fatalf("expected promotion, got %v", body)
	}
	if body["username"] != "alice" {
		t.Fatalf("username should be retained: %v", body)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/users/does-not-exist", nil, adminCookie)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rec.Code)
	}
}

func TestAdminDeleteProtectsAdminAccounts(t *testing.T) {
	router, repo := newTestRouter(t)
	id, _ := registerAlice(t, router)
	adminID, adminCookie := seedAdmin(t, router, repo)

	rec := doJSON(t, router, http.MethodDelete, "/api/users/"+adminID, nil, adminCookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 deleting admin target, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "Cannot delete admin user" {
		t.Fatalf("unexpected error message: %v", body["error"])
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/users/"+id, nil, adminCookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete regular user status: %d", rec.Code)
	}
	if _, err := repo.GetUserByID(context.Background(), id); err == nil {
		t.Fatalf("expected user to be removed")
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/users/"+id, nil, adminCookie)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 deleting removed user, got %d", rec.Code)
	}
}
