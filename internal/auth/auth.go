package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/xtrntr/auctionhouse/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSignature   = errors.New("signature does not prove ownership of the wallet")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// UserStore persists registered users
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string, identity solana.PublicKey) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Claims is the JWT payload. Identity is the caller's wallet in base58.
type Claims struct {
	Username string `json:"username"`
	Identity string `json:"identity"`
	jwt.RegisteredClaims
}

// AuthService handles user authentication
type AuthService struct {
	Store  UserStore
	secret []byte
	ttl    time.Duration
}

// NewAuthService creates a new auth service signing tokens with secret
func NewAuthService(store UserStore, secret string, ttl time.Duration) *AuthService {
	return &AuthService{Store: store, secret: []byte(secret), ttl: ttl}
}

// RegistrationMessage is what a wallet signs to prove it belongs to username
func RegistrationMessage(username string) []byte {
	return []byte("register:" + username)
}

// Register creates a new user with hashed password, bound to the wallet that
// signed RegistrationMessage(username)
func (s *AuthService) Register(ctx context.Context, username, password string, identity solana.PublicKey, signature solana.Signature) (*models.User, error) {
	// Validate input
	if username == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}
	if password == "" {
		return nil, fmt.Errorf("password cannot be empty")
	}
	if len(username) > 50 {
		return nil, fmt.Errorf("username too long (max 50 characters)")
	}
	if len(password) > 72 {
		return nil, fmt.Errorf("password too long (max 72 characters)")
	}
	if identity.IsZero() || !signature.Verify(identity, RegistrationMessage(username)) {
		return nil, ErrInvalidSignature
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user, err := s.Store.CreateUser(ctx, username, string(hashedPassword), identity)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login verifies credentials and generates a JWT
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.Store.GetUserByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: user.Username,
		Identity: user.Identity.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// GetIdentityFromToken extracts the wallet identity from a JWT
func (s *AuthService) GetIdentityFromToken(tokenString string) (solana.PublicKey, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return solana.PublicKey{}, ErrInvalidToken
	}

	identity, err := solana.PublicKeyFromBase58(claims.Identity)
	if err != nil {
		return solana.PublicKey{}, ErrInvalidToken
	}
	return identity, nil
}
