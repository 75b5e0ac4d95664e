package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/config"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/identity"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/store"
)

const (
	credentialsCollection = "credenciales"
	loginLogsCollection   = "login_logs"

	MinPasswordLength = 6
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password is too short")
	ErrNotApproved        = errors.New("specialist account pending approval")
	ErrInvalidToken       = errors.New("invalid or expired session")
)

// Accounts resolves the role and approval of a user at sign-in.
type Accounts interface {
	Account(ctx context.Context, id string) (identity.Role, bool, error)
}

// Revoker remembers signed-out session ids.
type Revoker interface {
	Revoke(ctx context.Context, id string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

type Event string

const (
	EventSignedIn  Event = "SIGNED_IN"
	EventSignedOut Event = "SIGNED_OUT"
)

// SessionChange is delivered to observers registered with OnSessionChange.
type SessionChange struct {
	Event   Event
	Session identity.Session
}

type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type claims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Service struct {
	store    store.Store
	accounts Accounts
	revoker  Revoker
	secret   []byte
	ttl      time.Duration
	cost     int
	log      *zap.Logger
	now      func() time.Time

	mu        sync.RWMutex
	observers map[int]func(SessionChange)
	nextObs   int
}

func NewService(s store.Store, accounts Accounts, revoker Revoker, cfg config.Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{
		store:     s,
		accounts:  accounts,
		revoker:   revoker,
		secret:    []byte(cfg.JWTSecret),
		ttl:       ttl,
		cost:      bcrypt.DefaultCost,
		log:       logger,
		now:       time.Now,
		observers: make(map[int]func(SessionChange)),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp stores a bcrypt hash of password and returns the new user id.
func (s *Service) SignUp(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", ErrInvalidCredentials
	}
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	row, err := s.store.Insert(ctx, credentialsCollection, store.Row{
		"id":            uuid.NewString(),
		"email":         email,
		"password_hash": string(hash),
		"created_at":    s.now(),
	})
	if errors.Is(err, store.ErrConflict) {
		return "", ErrEmailTaken
	}
	if err != nil {
		return "", fmt.Errorf("insert credentials: %w", err)
	}
	return store.String(row["id"]), nil
}

// SignIn checks the password, refuses specialists awaiting approval and records the login.
func (s *Service) SignIn(ctx context.Context, email, password string) (Token, identity.Session, error) {
	email = normalizeEmail(email)

	row, err := store.SelectOne(ctx, s.store, store.Query{
		Collection: credentialsCollection,
		Fields:     []string{"id", "password_hash"},
		Filters:    []store.Filter{store.Eq("email", email)},
	})
	if errors.Is(err, store.ErrNotFound) {
		return Token{}, identity.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Token{}, identity.Session{}, fmt.Errorf("load credentials: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(store.String(row["password_hash"])), []byte(password)); err != nil {
		return Token{}, identity.Session{}, ErrInvalidCredentials
	}

	userID := store.String(row["id"])
	role, approved, err := s.accounts.Account(ctx, userID)
	if err != nil {
		return Token{}, identity.Session{}, fmt.Errorf("load account: %w", err)
	}
	if role == identity.RoleSpecialist && !approved {
		return Token{}, identity.Session{}, ErrNotApproved
	}

	now := s.now()
	sess := identity.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Email:     email,
		Role:      role,
		ExpiresAt: now.Add(s.ttl),
	}
	signed, err := s.sign(sess, now)
	if err != nil {
		return Token{}, identity.Session{}, err
	}

	if _, err := s.store.Insert(ctx, loginLogsCollection, store.Row{
		"usuario_id": userID,
		"email":      email,
		"tipo":       string(role),
		"fecha_hora": now,
	}); err != nil {
		s.log.Warn("failed to record login", zap.String("user_id", userID), zap.Error(err))
	}

	s.notify(SessionChange{Event: EventSignedIn, Session: sess})
	return Token{AccessToken: signed, ExpiresAt: sess.ExpiresAt}, sess, nil
}

func (s *Service) sign(sess identity.Session, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role:  string(sess.Role),
		Email: sess.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

func (s *Service) parse(raw string) (identity.Session, error) {
	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return identity.Session{}, ErrInvalidToken
	}

	role, err := identity.ParseRole(c.Role)
	if err != nil || c.Subject == "" || c.ID == "" || c.ExpiresAt == nil {
		return identity.Session{}, ErrInvalidToken
	}
	return identity.Session{
		ID:        c.ID,
		UserID:    c.Subject,
		Email:     c.Email,
		Role:      role,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// CurrentUser resolves a bearer token into its session. Revoked tokens are rejected.
func (s *Service) CurrentUser(ctx context.Context, raw string) (identity.Session, error) {
	sess, err := s.parse(raw)
	if err != nil {
		return identity.Session{}, err
	}
	revoked, err := s.revoker.IsRevoked(ctx, sess.ID)
	if err != nil {
		return identity.Session{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return identity.Session{}, ErrInvalidToken
	}
	return sess, nil
}

// SignOut revokes the token until it would have expired.
func (s *Service) SignOut(ctx context.Context, raw string) error {
	sess, err := s.CurrentUser(ctx, raw)
	if err != nil {
		return err
	}
	if err := s.revoker.Revoke(ctx, sess.ID, sess.ExpiresAt); err != nil {
		return err
	}
	s.notify(SessionChange{Event: EventSignedOut, Session: sess})
	return nil
}

// OnSessionChange registers fn for sign-in and sign-out notifications. The returned func
// removes it.
func (s *Service) OnSessionChange(fn func(SessionChange)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Service) notify(ch SessionChange) {
	s.mu.RLock()
	fns := make([]func(SessionChange), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(ch)
	}
}

// InstallMemoryIndexes mirrors the unique email of credenciales on an in-memory store.
func InstallMemoryIndexes(m *store.Memory) {
	m.AddUniqueIndex(credentialsCollection, nil, "email")
}
