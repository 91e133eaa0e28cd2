package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"dagocoffee/counter/internal/app"
	"dagocoffee/counter/internal/xid"
)

const SessionCookie = "counter_session"

const sessionIssuer = "dagocoffee-counter"

const defaultMaxTerminals = 256

// TerminalFactory builds the state for a newly seen terminal id.
type TerminalFactory func(id string) *app.Terminal

type session struct {
	terminal  *app.Terminal
	expiresAt time.Time
}

// SessionManager maps a signed session cookie to the terminal it names.
// Terminal state lives in memory only; an unknown but validly signed id
// starts a fresh terminal under the same id.
type SessionManager struct {
	mu       sync.Mutex
	secret   []byte
	ttl      time.Duration
	max      int
	factory  TerminalFactory
	sessions map[string]*session
	now      func() time.Time
}

// NewSessionManager keeps at most maxTerminals live terminals; past that the
// least recently used one is dropped.
func NewSessionManager(secret string, ttl time.Duration, maxTerminals int, factory TerminalFactory) *SessionManager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if maxTerminals < 1 {
		maxTerminals = defaultMaxTerminals
	}
	return &SessionManager{
		secret:   []byte(secret),
		ttl:      ttl,
		max:      maxTerminals,
		factory:  factory,
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// Resolve returns the caller's terminal, issuing a new session cookie when
// the request carries none or an invalid one.
func (m *SessionManager) Resolve(w http.ResponseWriter, r *http.Request) (*app.Terminal, error) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if id, err := m.ParseToken(cookie.Value); err == nil {
			return m.terminal(id), nil
		}
	}

	id := xid.New("term")
	expiresAt := m.now().UTC().Add(m.ttl)
	token, err := m.sign(id, expiresAt)
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return m.terminal(id), nil
}

func (m *SessionManager) ParseToken(tokenStr string) (string, error) {
	claims := &jwtlib.RegisteredClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(sessionIssuer), jwtlib.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return "", errors.New("invalid or expired session")
	}
	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", errors.New("invalid session subject")
	}
	return sub, nil
}

// Len reports how many terminals are live.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *SessionManager) sign(id string, expiresAt time.Time) (string, error) {
	claims := jwtlib.RegisteredClaims{
		Subject:   id,
		IssuedAt:  jwtlib.NewNumericDate(m.now().UTC()),
		ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		Issuer:    sessionIssuer,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *SessionManager) terminal(id string) *app.Terminal {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)
	s, ok := m.sessions[id]
	if !ok {
		if len(m.sessions) >= m.max {
			m.evictOldest()
		}
		s = &session{terminal: m.factory(id)}
		m.sessions[id] = s
	}
	s.expiresAt = now.Add(m.ttl)
	return s.terminal
}

// sweep drops terminals idle for longer than the session TTL. Caller holds mu.
func (m *SessionManager) sweep(now time.Time) {
	for id, s := range m.sessions {
		if now.After(s.expiresAt) {
			delete(m.sessions, id)
		}
	}
}

// evictOldest drops the terminal whose expiry is nearest, which is the one
// used least recently. Caller holds mu.
func (m *SessionManager) evictOldest() {
	oldestID := ""
	var oldest time.Time
	for id, s := range m.sessions {
		if oldestID == "" || s.expiresAt.Before(oldest) {
			oldestID, oldest = id, s.expiresAt
		}
	}
	if oldestID != "" {
		delete(m.sessions, oldestID)
	}
}
