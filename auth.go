package blogadmin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/eringen/blogadmin/activity"
)

const (
	bcryptCost      = 12
	tokenIssuer     = "blogadmin"
	defaultTokenTTL = 7 * 24 * time.Hour
)

// TokenClaims is the JWT payload of an API token.
type TokenClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// LoginResponse is returned by a successful API login. ExpiresIn is in
// seconds.
type LoginResponse struct {
	Token     string   `json:"token"`
	ExpiresIn int64    `json:"expiresIn"`
	User      UserInfo `json:"user"`
}

// AuthService checks credentials, manages accounts and issues and verifies
// API tokens.
type AuthService struct {
	store  *Store
	secret []byte
	ttl    time.Duration
	audit  Auditor
	cost   int
	now    func() time.Time
}

// NewAuthService creates an AuthService signing tokens with secret. A zero
// ttl means seven days.
func NewAuthService(store *Store, secret string, ttl time.Duration, audit Auditor) *AuthService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &AuthService{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		audit:  audit,
		cost:   bcryptCost,
		now:    time.Now,
	}
}

// Authenticate returns the user whose email and password match.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = strings.TrimSpace(email)
	if err := validateLogin(email, password).Err(); err != nil {
		return User{}, err
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}
	s.audit.note(activity.WithActor(ctx, u.Email), activity.ActionLogin, "user", u.ID, u.Email)
	return u, nil
}

// Login authenticates and issues an API token.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return LoginResponse{}, err
	}
	token, err := s.IssueToken(u)
	if err != nil {
		return LoginResponse{}, err
	}
	return LoginResponse{
		Token:     token,
		ExpiresIn: int64(s.ttl / time.Second),
		User:      u.Info(),
	}, nil
}

// IssueToken signs an HS256 token for u.
func (s *AuthService) IssueToken(u User) (string, error) {
	now := s.now()
	claims := &TokenClaims{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a token issued by IssueToken.
func (s *AuthService) ValidateToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", ErrUnauthorized)
	}
	return claims, nil
}

// UserFromToken validates tokenString and loads its user, so tokens of
// deleted accounts stop working.
func (s *AuthService) UserFromToken(ctx context.Context, tokenString string) (User, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return User{}, err
	}
	u, err := s.store.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("%w: unknown user", ErrUnauthorized)
	}
	return u, err
}

// CreateUser adds an account with a bcrypt-hashed password.
func (s *AuthService) CreateUser(ctx context.Context, email, name, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateLogin(email, password).Err(); err != nil {
		return User{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return User{}, err
	}
	s.audit.note(ctx, activity.ActionCreate, "user", u.ID, u.Email)
	return u, nil
}

// EnsureAdmin creates the bootstrap account when no user exists yet and an
// email is configured. It reports whether an account was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, name, password string) (bool, error) {
	if strings.TrimSpace(email) == "" {
		return false, nil
	}
	n, err := s.store.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.CreateUser(ctx, email, name, password); err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	return true, nil
}
