package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"GoldPledge/internal/model"
	"GoldPledge/internal/repo"
	"GoldPledge/internal/respond"
)

type contextKey string

const sessionKey contextKey = "session"

const (
	cookieName  = "session_token"
	tokenTTL    = 30 * 24 * time.Hour
	minPassword = 6
)

// Session is the identity carried by a valid token.
type Session struct {
	UserID   int
	Username string
	Role     model.Role
}

type Authenv struct {
	JWTkey []byte
	Repo   repo.Repository
	Log    *logrus.Logger
}

type IPRateLimiter struct {
	ips map[string]*rate.Limiter
	mu  sync.Mutex
	r   rate.Limit
	b   int
}

type Loginrequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips: make(map[string]*rate.Limiter),
		r:   r,
		b:   b,
	}
}

func (i *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	limiter, exists := i.ips[ip]
	if !exists {
		limiter = rate.NewLimiter(i.r, i.b)
		i.ips[ip] = limiter
	}
	return limiter
}

func (i *IPRateLimiter) LimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !i.getLimiter(ip).Allow() {
			respond.Error(w, http.StatusTooManyRequests, "Too Many Requests. Try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// ValidateCredentials checks the shape of a username and password pair.
func ValidateCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return errors.New("username and password required")
	}
	if len(password) < minPassword {
		return fmt.Errorf("password must be at least %d characters", minPassword)
	}
	return nil
}

// IssueToken signs a token for u.
func (env *Authenv) IssueToken(u model.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": u.ID,
		"login":   u.Username,
		"role":    string(u.Role),
		"exp":     time.Now().Add(tokenTTL).Unix(),
	})
	return token.SignedString(env.JWTkey)
}

// ParseToken verifies tokenString and extracts its session.
func (env *Authenv) ParseToken(tokenString string) (Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return env.JWTkey, nil
	})
	if err != nil {
		return Session{}, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Session{}, errors.New("invalid token claims")
	}

	userID, ok := claims["user_id"].(float64)
	if !ok {
		return Session{}, errors.New("token has no user id")
	}
	login, ok := claims["login"].(string)
	if !ok || login == "" {
		return Session{}, errors.New("token has no login")
	}
	role, _ := claims["role"].(string)
	if !model.Role(role).Valid() {
		return Session{}, errors.New("token has no valid role")
	}
	return Session{UserID: int(userID), Username: login, Role: model.Role(role)}, nil
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

var errNoSession = errors.New("no session")

// session resolves the request's token and reloads the user it names. The
// role comes from the store, not the token.
func (env *Authenv) session(r *http.Request) (Session, error) {
	raw := tokenFromRequest(r)
	if raw == "" {
		return Session{}, errNoSession
	}
	s, err := env.ParseToken(raw)
	if err != nil {
		env.Log.WithError(err).Debug("rejected token")
		return Session{}, errNoSession
	}
	u, err := env.Repo.GetUser(r.Context(), s.UserID)
	if errors.Is(err, model.ErrNotFound) {
		return Session{}, errNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session user: %w", err)
	}
	s.Username, s.Role = u.Username, u.Role
	return s, nil
}

// AuthMiddleware accepts a bearer token or the session cookie.
func (env *Authenv) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := env.session(r)
		if errors.Is(err, errNoSession) {
			respond.Error(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if err != nil {
			env.Log.WithError(err).Error("auth")
			respond.Error(w, http.StatusInternalServerError, "Failed to load session")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

// OptionalAuth attaches a session when the request carries a valid token and
// passes anonymous requests through unchanged.
func (env *Authenv) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := env.session(r)
		if err != nil {
			if !errors.Is(err, errNoSession) {
				env.Log.WithError(err).Error("auth")
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := SessionFrom(r.Context())
		if !ok || s.Role != model.RoleAdmin {
			respond.Error(w, http.StatusForbidden, "Unauthorized access")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}

func (env *Authenv) addCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Expires:  time.Now().Add(tokenTTL),
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (env *Authenv) signIn(w http.ResponseWriter, status int, u model.User) {
	token, err := env.IssueToken(u)
	if err != nil {
		env.Log.WithError(err).Error("sign token")
		respond.Error(w, http.StatusInternalServerError, "Error creating session")
		return
	}
	env.addCookie(w, token)
	respond.JSON(w, status, TokenResponse{Token: token, User: u})
}

// EnsureAdmin creates the bootstrap admin account if it does not exist yet.
func EnsureAdmin(ctx context.Context, r repo.Repository, username, password string) error {
	if username == "" {
		return nil
	}
	_, err := r.GetUserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return err
	}
	if err := ValidateCredentials(username, password); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	_, err = r.CreateUser(ctx, username, hash, model.RoleAdmin)
	return err
}

func (env *Authenv) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req Loginrequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := ValidateCredentials(req.Username, req.Password); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	hashedPassword, err := HashPassword(req.Password)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "Error hashing password")
		return
	}
	u, err := env.Repo.CreateUser(r.Context(), req.Username, hashedPassword, model.RoleUser)
	if errors.Is(err, repo.ErrConflict) {
		respond.Error(w, http.StatusConflict, "Username already exists")
		return
	}
	if err != nil {
		env.Log.WithError(err).Error("create user")
		respond.Error(w, http.StatusInternalServerError, "Failed to register")
		return
	}

	env.Log.WithField("user", u.Username).Info("user registered")
	env.signIn(w, http.StatusCreated, u)
}

func (env *Authenv) AuthHandler(w http.ResponseWriter, r *http.Request) {
	var req Loginrequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		respond.Error(w, http.StatusBadRequest, "Username and password required")
		return
	}

	u, err := env.Repo.GetUserByUsername(r.Context(), req.Username)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		env.Log.WithError(err).Error("lookup user")
		respond.Error(w, http.StatusInternalServerError, "Failed to log in")
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		respond.Error(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	env.signIn(w, http.StatusOK, u)
}

func (env *Authenv) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
	})
	w.WriteHeader(http.StatusNoContent)
}

// MeHandler returns the signed in user.
func (env *Authenv) MeHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := SessionFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	u, err := env.Repo.GetUser(r.Context(), s.UserID)
	if err != nil {
		respond.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	respond.JSON(w, http.StatusOK, u)
}
