package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/keithlinneman/playable-preview/internal/log"
	"github.com/keithlinneman/playable-preview/internal/xerrors"
)

const (
	DefaultCookieName = "playable_session"
	DefaultTTL        = 24 * time.Hour
	DefaultLoginPath  = "/login"
)

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrNoPassword      = errors.New("admin password or hash is required")
)

// Manager keeps admin sessions in memory. Sessions do not survive a restart.
type Manager struct {
	hash       []byte
	ttl        time.Duration
	cookieName string
	loginPath  string
	secure     bool
	logger     log.Logger
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]time.Time // token -> expiry

	// OnLogin is called after every login attempt
	OnLogin func(ok bool)
}

type Option func(*Manager) error

// WithPasswordHash sets the bcrypt hash logins are checked against.
func WithPasswordHash(hash string) Option {
	return func(m *Manager) error {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return xerrors.Wrap(err, "admin password hash")
		}
		m.hash = []byte(hash)
		return nil
	}
}

// WithPassword hashes a plain password at bcrypt.DefaultCost.
func WithPassword(password string) Option {
	return func(m *Manager) error {
		h, err := HashPassword(password, bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		m.hash = []byte(h)
		return nil
	}
}

func WithTTL(d time.Duration) Option {
	return func(m *Manager) error {
		if d > 0 {
			m.ttl = d
		}
		return nil
	}
}

// WithSecureCookies marks the session cookie Secure.
func WithSecureCookies(on bool) Option {
	return func(m *Manager) error {
		m.secure = on
		return nil
	}
}

func WithCookieName(name string) Option {
	return func(m *Manager) error {
		if name != "" {
			m.cookieName = name
		}
		return nil
	}
}

// WithLoginPath sets where RequireAuth sends unauthenticated page requests.
func WithLoginPath(p string) Option {
	return func(m *Manager) error {
		if p != "" {
			m.loginPath = p
		}
		return nil
	}
}

func WithLogger(l log.Logger) Option {
	return func(m *Manager) error {
		if l != nil {
			m.logger = l
		}
		return nil
	}
}

func withClock(now func() time.Time) Option {
	return func(m *Manager) error {
		m.now = now
		return nil
	}
}

// NewManager creates a Manager and starts a goroutine that drops expired
// sessions until ctx is done.
func NewManager(ctx context.Context, opts ...Option) (*Manager, error) {
	m := &Manager{
		ttl:        DefaultTTL,
		cookieName: DefaultCookieName,
		loginPath:  DefaultLoginPath,
		logger:     log.Nop(),
		now:        time.Now,
		sessions:   make(map[string]time.Time),
	}
	for _, o := range opts {
		if err := o(m); err != nil {
			return nil, err
		}
	}
	if len(m.hash) == 0 {
		return nil, ErrNoPassword
	}

	go m.cleanup(ctx)
	return m, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrNoPassword
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", xerrors.Wrap(err, "hash admin password")
	}
	return string(h), nil
}

// Login checks password and, on success, starts a new session and sets its
// cookie on w. Any session cookie already on r is discarded.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, password string) error {
	ok := bcrypt.CompareHashAndPassword(m.hash, []byte(password)) == nil
	if m.OnLogin != nil {
		m.OnLogin(ok)
	}
	if !ok {
		m.logger.Warn(r.Context(), "admin login failed")
		return ErrInvalidPassword
	}

	if c, err := r.Cookie(m.cookieName); err == nil {
		m.drop(c.Value)
	}

	token := uuid.NewString()
	expires := m.now().Add(m.ttl)

	m.mu.Lock()
	m.sessions[token] = expires
	m.mu.Unlock()

	http.SetCookie(w, m.cookie(token, expires))
	m.logger.Info(r.Context(), "admin login")
	return nil
}

// Logout ends the session carried by r, if any, and clears the cookie.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(m.cookieName); err == nil {
		m.drop(c.Value)
	}
	c := m.cookie("", time.Unix(0, 0))
	c.MaxAge = -1
	http.SetCookie(w, c)
}

// Authenticated reports whether r carries a live session cookie.
func (m *Manager) Authenticated(r *http.Request) bool {
	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.sessions[c.Value]
	if !ok {
		return false
	}
	if !m.now().Before(exp) {
		delete(m.sessions, c.Value)
		return false
	}
	return true
}

// RequireAuth rejects requests without a live session. Page loads (GET and
// HEAD) are redirected to the login page; everything else gets a 401.
func (m *Manager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Authenticated(r) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			http.Redirect(w, r, m.loginPath, http.StatusSeeOther)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"error":"unauthorized"}`))
	})
}

// Len returns the number of stored sessions, expired ones included until the
// next sweep.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (m *Manager) drop(token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}

func (m *Manager) sweep() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, exp := range m.sessions {
		if !now.Before(exp) {
			delete(m.sessions, token)
		}
	}
}

// cleanup sweeps expired sessions every minute.
func (m *Manager) cleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}
