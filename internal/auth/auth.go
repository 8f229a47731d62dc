// Package auth signs users up and in with bcrypt-hashed passwords and issues
// HS256 session tokens that gate the dashboard views.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mr1hm/go-vitatrack/internal/models"
)

const (
	DefaultTTL     = 24 * time.Hour
	DefaultIssuer  = "vitatrack"
	MinPasswordLen = 6
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
)

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type Config struct {
	Secret string
	TTL    time.Duration
	Issuer string
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
}

type Claims struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

type Session struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

type EventType string

const (
	EventSignedIn  EventType = "signed_in"
	EventSignedOut EventType = "signed_out"
)

// Event reports a change of the signed-in user. User is nil on sign out.
type Event struct {
	Type   EventType
	UserID string
	User   *models.User
}

type Service struct {
	users    UserStore
	secret   []byte
	ttl      time.Duration
	issuer   string
	cost     int
	validate *validator.Validate
	now      func() time.Time

	mu        sync.Mutex
	revoked   map[string]time.Time
	listeners map[uint64]func(Event)
	nextID    uint64
}

func NewService(users UserStore, cfg Config) (*Service, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.Cost == 0 {
		cfg.Cost = bcrypt.DefaultCost
	}

	return &Service{
		users:     users,
		secret:    []byte(cfg.Secret),
		ttl:       cfg.TTL,
		issuer:    cfg.Issuer,
		cost:      cfg.Cost,
		validate:  validator.New(),
		now:       time.Now,
		revoked:   make(map[string]time.Time),
		listeners: make(map[uint64]func(Event)),
	}, nil
}

func (s *Service) SignUp(ctx context.Context, email, password string, role models.Role) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, models.NewValidationError("email", "invalid email address")
	}
	if len(password) < MinPasswordLen {
		return nil, models.NewValidationError("password", fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if !role.Valid() {
		return nil, models.NewValidationError("role", "must be one of admin, driver, family")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	u := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("email already in use: %w", models.ErrConflict)
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	zap.L().Info("user signed up", zap.String("user_id", u.ID), zap.String("role", string(role)))
	return u, nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	sess, err := s.issue(u)
	if err != nil {
		return nil, err
	}

	s.emit(Event{Type: EventSignedIn, UserID: u.ID, User: u})
	return sess, nil
}

func (s *Service) issue(u *models.User) (*Session, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Session{Token: signed, User: *u, ExpiresAt: expiresAt}, nil
}

func (s *Service) parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Verify checks signature, expiry and revocation.
func (s *Service) Verify(token string) (*Claims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return nil, fmt.Errorf("%w: signed out", ErrInvalidToken)
	}
	return claims, nil
}

// SignOut revokes token. Unknown or already revoked tokens are ignored.
func (s *Service) SignOut(_ context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return nil
	}

	now := s.now()
	s.mu.Lock()
	_, already := s.revoked[claims.ID]
	for id, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, id)
		}
	}
	if claims.ExpiresAt != nil {
		s.revoked[claims.ID] = claims.ExpiresAt.Time
	}
	s.mu.Unlock()

	if !already {
		s.emit(Event{Type: EventSignedOut, UserID: claims.Subject})
	}
	return nil
}

// OnChange registers fn for sign in and sign out events. The returned
// function removes it.
func (s *Service) OnChange(fn func(Event)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Service) emit(ev Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
