package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/tributaria/internal/domain"
	"github.com/tbourn/tributaria/internal/repo"
)

// Event is a session transition broadcast to OnSessionChange listeners.
type Event int

const (
	SignedIn Event = iota + 1
	SignedOut
	TokenRefreshed
)

func (e Event) String() string {
	switch e {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	case TokenRefreshed:
		return "token_refreshed"
	default:
		return "unknown"
	}
}

// Session is the result of a successful sign-up, sign-in or refresh.
type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      domain.User     `json:"user"`
	Profile   *domain.Profile `json:"profile,omitempty"`
}

// Identity is the verified caller behind a token.
type Identity struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

// SignUpInput holds registration fields. Phone is optional.
type SignUpInput struct {
	Email    string
	Password string
	FullName string
	Phone    string
}

// ProfileUpdate applies only the non-nil fields.
type ProfileUpdate struct {
	FullName *string
	Phone    *string
}

// Listener receives session transitions for a user.
type Listener func(ev Event, userID string)

// Service is the authentication adapter.
type Service struct {
	DB       *gorm.DB
	Tokens   *Tokens
	HashCost int

	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
}

// NewService builds a Service using bcrypt.DefaultCost.
func NewService(db *gorm.DB, tokens *Tokens) *Service {
	return &Service{DB: db, Tokens: tokens, HashCost: bcrypt.DefaultCost}
}

func transport(err error) error {
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// SignUp validates the input, creates the user and profile in one
// transaction, and signs the new user in.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*Session, error) {
	email := NormalizeEmail(in.Email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	// The name is required at sign-up.
	name := SanitizeName(in.FullName)
	if name == "" {
		return nil, ErrInvalidName
	}
	if err := ValidateFullName(name); err != nil {
		return nil, err
	}
	phone := cleanPhone(in.Phone)
	if err := ValidatePhone(phone); err != nil {
		return nil, err
	}

	cost := s.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, ErrWeakPassword
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var (
		user    *domain.User
		profile *domain.Profile
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e error
		if user, e = repo.CreateUser(ctx, tx, email, string(hash)); e != nil {
			return e
		}
		profile, e = repo.CreateProfile(ctx, tx, user.ID, name, phone, email)
		return e
	})
	switch {
	case errors.Is(err, repo.ErrDuplicate):
		return nil, ErrDuplicate
	case err != nil:
		return nil, transport(err)
	}

	sess, err := s.issue(user, profile)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("user_id", user.ID).Msg("user signed up")
	s.emit(SignedIn, user.ID)
	return sess, nil
}

// SignIn checks credentials. Unknown email and wrong password both yield
// ErrInvalidCredentials.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := repo.GetUserByEmail(ctx, s.DB, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, transport(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	profile, err := repo.GetProfile(ctx, s.DB, user.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, transport(err)
	}
	sess, err := s.issue(user, profile)
	if err != nil {
		return nil, err
	}
	s.emit(SignedIn, user.ID)
	return sess, nil
}

// SignOut revokes the token. An unparseable token is a no-op. Otherwise
// SignedOut fires even when the store fails, and the failure is still
// reported as ErrTransport.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.Tokens.ParseUnverifiedExpiry(token)
	if err != nil {
		return nil
	}
	defer s.emit(SignedOut, claims.UserID)

	if err := repo.RevokeToken(ctx, s.DB, claims.ID, claims.UserID, claims.ExpiresAt.Time); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", claims.UserID).Msg("token revoke failed")
		return transport(err)
	}
	return nil
}

// Refresh exchanges a valid token for a new one and revokes the old one.
func (s *Service) Refresh(ctx context.Context, token string) (*Session, error) {
	id, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := repo.GetUser(ctx, s.DB, id.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, transport(err)
	}
	profile, err := repo.GetProfile(ctx, s.DB, user.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, transport(err)
	}
	sess, err := s.issue(user, profile)
	if err != nil {
		return nil, err
	}
	if err := repo.RevokeToken(ctx, s.DB, id.TokenID, id.UserID, id.ExpiresAt); err != nil {
		return nil, transport(err)
	}
	s.emit(TokenRefreshed, user.ID)
	return sess, nil
}

// Authenticate verifies a token and checks it has not been revoked.
func (s *Service) Authenticate(ctx context.Context, token string) (*Identity, error) {
	claims, err := s.Tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := repo.IsTokenRevoked(ctx, s.DB, claims.ID)
	if err != nil {
		return nil, transport(err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: claims.UserID, TokenID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// CurrentProfile loads the caller's profile.
func (s *Service) CurrentProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := repo.GetProfile(ctx, s.DB, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, transport(err)
	}
	return p, nil
}

// UpdateProfile validates and applies the provided fields.
func (s *Service) UpdateProfile(ctx context.Context, userID string, up ProfileUpdate) (*domain.Profile, error) {
	if up.FullName != nil {
		name := SanitizeName(*up.FullName)
		if name == "" {
			return nil, ErrInvalidName
		}
		if err := ValidateFullName(name); err != nil {
			return nil, err
		}
		up.FullName = &name
	}
	if up.Phone != nil {
		phone := cleanPhone(*up.Phone)
		if err := ValidatePhone(phone); err != nil {
			return nil, err
		}
		up.Phone = &phone
	}

	err := repo.UpdateProfile(ctx, s.DB, userID, up.FullName, up.Phone)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, transport(err)
	}
	return s.CurrentProfile(ctx, userID)
}

// OnSessionChange registers l and returns a function that removes it.
// Listeners run synchronously, in registration order, outside the lock.
func (s *Service) OnSessionChange(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = make(map[int]Listener)
	}
	s.nextID++
	id := s.nextID
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Service) emit(ev Event, userID string) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	ls := make([]Listener, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		ls = append(ls, s.listeners[id])
	}
	s.mu.Unlock()

	for _, l := range ls {
		l(ev, userID)
	}
}

func (s *Service) issue(user *domain.User, profile *domain.Profile) (*Session, error) {
	token, claims, err := s.Tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      *user,
		Profile:   profile,
	}, nil
}

func cleanPhone(p string) string {
	return strings.TrimSpace(p)
}
