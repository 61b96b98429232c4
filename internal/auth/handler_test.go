package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vlady-pos/vlady-pos/internal/auth"
	"github.com/vlady-pos/vlady-pos/internal/shared"
	_ "github.com/vlady-pos/vlady-pos/testing"
)

type stubRepo struct {
	mu    sync.Mutex
	users map[int64]*auth.User
	next  int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{users: map[int64]*auth.User{}}
}

func (s *stubRepo) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubRepo) FindByID(_ context.Context, id int64) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *stubRepo) Create(_ context.Context, user auth.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email || u.NationalID == user.NationalID {
			return 0, auth.ErrDuplicateUser
		}
	}
	s.next++
	user.ID = s.next
	user.CreatedAt = time.Now()
	s.users[user.ID] = &user
	return user.ID, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newRouter(t *testing.T) (http.Handler, *stubRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := newStubRepo()
	service := auth.NewService(repo, shared.NewSessionStore(client, time.Hour), auth.NewTokenIssuer("test-secret-0123456789"), nil, nil)
	r := chi.NewRouter()
	r.Route("/api/auth", auth.NewHandler(nil, service).MountRoutes)
	return r, repo
}

func do(t *testing.T, h http.Handler, method, path, body, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

const registerBody = `{"national_id":"12345678","first_name":"ana","last_name":"Quispe","phone":"999888777","email":"ana@vlady.pe","password":"secreto#1"}`

func TestRegisterLoginMeLogout(t *testing.T) {
	h, _ := newRouter(t)

	rec, env := do(t, h, http.MethodPost, "/api/auth/register", registerBody, "")
	require.Equal(t, http.StatusCreated, rec.Code, env.Message)
	assert.True(t, env.Success)

	rec, env = do(t, h, http.MethodPost, "/api/auth/login", `{"email":"ana@vlady.pe","password":"secreto#1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	var login struct {
		Token string        `json:"token"`
		User  auth.UserView `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	require.NotEmpty(t, login.Token)
	assert.Equal(t, shared.RoleSeller, login.User.Role)

	rec, env = do(t, h, http.MethodGet, "/api/auth/me", "", login.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "ana@vlady.pe")
	assert.NotContains(t, string(env.Data), "password")

	rec, _ = do(t, h, http.MethodPost, "/api/auth/logout", "", login.Token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, h, http.MethodGet, "/api/auth/me", "", login.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	h, _ := newRouter(t)
	body := strings.Replace(registerBody, "secreto#1", "secreto12", 1)
	rec, env := do(t, h, http.MethodPost, "/api/auth/register", body, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Message, "special character")

	body = strings.Replace(registerBody, "secreto#1", "a#1", 1)
	rec, env = do(t, h, http.MethodPost, "/api/auth/register", body, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Message, "at least 8")
}

func TestRegisterDuplicate(t *testing.T) {
	h, _ := newRouter(t)
	rec, _ := do(t, h, http.MethodPost, "/api/auth/register", registerBody, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, env := do(t, h, http.MethodPost, "/api/auth/register", registerBody, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)
}

func TestLoginWrongPassword(t *testing.T) {
	h, _ := newRouter(t)
	rec, _ := do(t, h, http.MethodPost, "/api/auth/register", registerBody, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := do(t, h, http.MethodPost, "/api/auth/login", `{"email":"ana@vlady.pe","password":"wrong#pass"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email or password.", env.Message)
}

func TestMeRejectsForgedToken(t *testing.T) {
	h, _ := newRouter(t)
	other := auth.NewTokenIssuer("another-secret-9876543210")
	token, err := other.Issue(1, shared.RoleAdmin, "sid", time.Now().Add(time.Hour))
	require.NoError(t, err)

	rec, _ := do(t, h, http.MethodGet, "/api/auth/me", "", token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
