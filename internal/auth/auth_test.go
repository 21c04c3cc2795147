package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"GoldPledge/internal/model"
	"GoldPledge/internal/repo"
)

func newTestEnv() *Authenv {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Authenv{JWTkey: []byte("test-key"), Repo: repo.NewMemoryRepository(), Log: log}
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func TestRegisterThenLogin(t *testing.T) {
	env := newTestEnv()

	w := post(env.RegisterHandler, `{"username": "meera", "password": "s3cret!"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var reg TokenResponse
	json.Unmarshal(w.Body.Bytes(), &reg)
	if reg.User.Role != model.RoleUser {
		t.Errorf("expected role user, got %s", reg.User.Role)
	}
	if len(w.Result().Cookies()) == 0 {
		t.Error("expected a session cookie")
	}

	w = post(env.AuthHandler, `{"username": "meera", "password": "s3cret!"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", w.Code)
	}
	var login TokenResponse
	json.Unmarshal(w.Body.Bytes(), &login)
	s, err := env.ParseToken(login.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if s.Username != "meera" || s.Role != model.RoleUser {
		t.Errorf("unexpected session %+v", s)
	}

	w = post(env.AuthHandler, `{"username": "meera", "password": "wrong-pass"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad password: expected 401, got %d", w.Code)
	}
	w = post(env.AuthHandler, `{"username": "nobody", "password": "whatever"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unknown user: expected 401, got %d", w.Code)
	}
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv()
	cases := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"missing username", `{"password": "longenough"}`, http.StatusBadRequest},
		{"short password", `{"username": "a", "password": "123"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := post(env.RegisterHandler, tc.body); w.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}

	post(env.RegisterHandler, `{"username": "dup", "password": "password1"}`)
	if w := post(env.RegisterHandler, `{"username": "dup", "password": "password2"}`); w.Code != http.StatusConflict {
		t.Errorf("duplicate: expected 409, got %d", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv()
	u, _ := env.Repo.CreateUser(context.Background(), "ravi", "hash", model.RoleAdmin)
	token, err := env.IssueToken(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var got Session
	h := env.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = SessionFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK || got.UserID != u.ID || got.Role != model.RoleAdmin {
		t.Errorf("bearer: unexpected %d %+v", w.Code, got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("cookie: expected 200, got %d", w.Code)
	}

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 1, "login": "x", "role": "admin"})
	forgedString, _ := forged.SignedString([]byte("other-key"))
	for name, header := range map[string]string{"missing": "", "garbage": "Bearer abc", "forged": "Bearer " + forgedString} {
		req = httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", name, w.Code)
		}
	}
}

func TestAuthMiddleware_ReloadsUser(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	admin, _ := env.Repo.CreateUser(ctx, "anita", "hash", model.RoleAdmin)
	token, err := env.IssueToken(admin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	h := env.AuthMiddleware(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	call := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	if code := call(); code != http.StatusTeapot {
		t.Fatalf("admin: expected 418, got %d", code)
	}

	admin.Role = model.RoleUser
	if _, err := env.Repo.UpdateUser(ctx, admin); err != nil {
		t.Fatalf("demote: %v", err)
	}
	if code := call(); code != http.StatusForbidden {
		t.Errorf("demoted admin with old token: expected 403, got %d", code)
	}

	if err := env.Repo.DeleteUser(ctx, admin.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if code := call(); code != http.StatusUnauthorized {
		t.Errorf("deleted user with old token: expected 401, got %d", code)
	}
}

func TestOptionalAuth(t *testing.T) {
	env := newTestEnv()
	u, _ := env.Repo.CreateUser(context.Background(), "kiran", "hash", model.RoleUser)
	token, _ := env.IssueToken(u)

	var got Session
	var ok bool
	h := env.OptionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = SessionFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if !ok || got.UserID != u.ID {
		t.Errorf("signed in: expected session for %d, got %+v %v", u.ID, got, ok)
	}

	for name, header := range map[string]string{"anonymous": "", "garbage": "Bearer abc"} {
		req = httptest.NewRequest(http.MethodPost, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if ok || w.Code != http.StatusOK {
			t.Errorf("%s: expected pass-through without session, got %d %v", name, w.Code, ok)
		}
	}
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	for role, want := range map[model.Role]int{model.RoleAdmin: http.StatusTeapot, model.RoleUser: http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(WithSession(req.Context(), Session{UserID: 1, Username: "u", Role: role}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("%s: expected %d, got %d", role, want, w.Code)
		}
	}
}

func TestLimitMiddleware(t *testing.T) {
	limiter := NewIPRateLimiter(0, 2)
	h := limiter.LimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected status sequence %v", codes)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("other client should not be limited, got %d", w.Code)
	}
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	r := repo.NewMemoryRepository()

	if err := EnsureAdmin(ctx, r, "root", "changeme"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := EnsureAdmin(ctx, r, "root", "changeme"); err != nil {
		t.Fatalf("second call: %v", err)
	}
	users, _ := r.ListUsers(ctx)
	if len(users) != 1 || users[0].Role != model.RoleAdmin {
		t.Errorf("expected one admin, got %+v", users)
	}
	if err := EnsureAdmin(ctx, r, "", ""); err != nil {
		t.Errorf("empty username should be a no-op, got %v", err)
	}
}
