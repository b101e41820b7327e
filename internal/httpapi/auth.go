package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/store"
)

const minPasswordLength = 6

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Directory resolves and registers the accounts that can sign in.
type Directory interface {
	FindCredential(ctx context.Context, identifier string) (*domain.Credential, error)
	RegisterCustomer(ctx context.Context, req domain.CustomerRegisterRequest, passwordHash string) (domain.Customer, error)
	RegisterEmployee(ctx context.Context, req domain.EmployeeRegisterRequest, passwordHash string) (domain.Employee, error)
}

type AuthManager struct {
	secret    []byte
	tokenTTL  time.Duration
	directory Directory
	now       func() time.Time
}

type principalClaims struct {
	jwtlib.RegisteredClaims
	Type        domain.PrincipalType `json:"typ"`
	Role        string               `json:"role"`
	AccessLevel string               `json:"access_level"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, directory Directory) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		directory: directory,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Login accepts a customer phone number or an employee email as identifier.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	cred, err := a.directory.FindCredential(ctx, req.Identifier)
	if errors.Is(err, store.ErrNotFound) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.LoginResponse{}, err
	}
	if !verifyPassword(cred.PasswordHash, req.Password) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}

	principal := domain.Principal{
		ID:          cred.PrincipalID,
		Type:        cred.PrincipalType,
		Role:        cred.Role,
		AccessLevel: domain.AccessLevelFor(cred.PrincipalType, cred.Role),
	}
	expiresAt := a.now().Add(a.tokenTTL)
	token, err := a.sign(principal, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		ID:          principal.ID,
		Type:        string(principal.Type),
		Role:        principal.Role,
		AccessLevel: principal.AccessLevel,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Principal, error) {
	claims := &principalClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer("storefront"))
	if err != nil || !token.Valid {
		return domain.Principal{}, ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Principal{}, ErrInvalidToken
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id < 1 {
		return domain.Principal{}, ErrInvalidToken
	}
	if claims.Type != domain.PrincipalCustomer && claims.Type != domain.PrincipalEmployee {
		return domain.Principal{}, ErrInvalidToken
	}
	return domain.Principal{ID: id, Type: claims.Type, Role: claims.Role, AccessLevel: claims.AccessLevel}, nil
}

func (a *AuthManager) sign(principal domain.Principal, expiresAt time.Time) (string, error) {
	claims := principalClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   strconv.FormatInt(principal.ID, 10),
			IssuedAt:  jwtlib.NewNumericDate(a.now()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "storefront",
		},
		Type:        principal.Type,
		Role:        principal.Role,
		AccessLevel: principal.AccessLevel,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthManager) RegisterCustomer(ctx context.Context, req domain.CustomerRegisterRequest) (domain.Customer, error) {
	hash, err := hashNewPassword(req.Password)
	if err != nil {
		return domain.Customer{}, err
	}
	return a.directory.RegisterCustomer(ctx, req, hash)
}

// RegisterEmployee relies on the directory to enforce that the caller is an Admin.
func (a *AuthManager) RegisterEmployee(ctx context.Context, req domain.EmployeeRegisterRequest) (domain.Employee, error) {
	hash, err := hashNewPassword(req.Password)
	if err != nil {
		return domain.Employee{}, err
	}
	return a.directory.RegisterEmployee(ctx, req, hash)
}

func hashNewPassword(password string) (string, error) {
	if len(strings.TrimSpace(password)) < minPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", store.ErrInvalidTransaction, minPasswordLength)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

// HashPassword is shared with the seed command.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
