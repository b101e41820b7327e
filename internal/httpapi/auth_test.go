package httpapi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/store"
)

type directoryStub struct {
	mu          sync.Mutex
	credentials map[string]domain.Credential
	lastHash    string
}

func (d *directoryStub) FindCredential(_ context.Context, identifier string) (*domain.Credential, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cred, ok := d.credentials[identifier]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &cred, nil
}

func (d *directoryStub) RegisterCustomer(_ context.Context, req domain.CustomerRegisterRequest, passwordHash string) (domain.Customer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastHash = passwordHash
	return domain.Customer{ID: 7, FirstName: req.FirstName, Phone: req.Phone}, nil
}

func (d *directoryStub) RegisterEmployee(_ context.Context, req domain.EmployeeRegisterRequest, passwordHash string) (domain.Employee, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastHash = passwordHash
	return domain.Employee{ID: 9, FirstName: req.FirstName, Email: req.Email, Role: domain.RoleCashier}, nil
}

func newDirectoryStub(t *testing.T) *directoryStub {
	return &directoryStub{credentials: map[string]domain.Credential{
		"boss@metro.local": {PrincipalID: 3, PrincipalType: domain.PrincipalEmployee, Role: domain.RoleManager, PasswordHash: mustHashPassword(t, "boss-pass")},
		"9000000009":       {PrincipalID: 5, PrincipalType: domain.PrincipalCustomer, Role: domain.RoleCustomer, PasswordHash: mustHashPassword(t, "shopper")},
	}}
}

func TestLoginIssuesPrincipalToken(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, newDirectoryStub(t))

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Identifier: "boss@metro.local", Password: "boss-pass"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.AccessLevel != "manage" || resp.ID != 3 {
		t.Fatalf("unexpected login response: %+v", resp)
	}

	principal, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if principal.ID != 3 || principal.Type != domain.PrincipalEmployee || principal.Role != domain.RoleManager {
		t.Fatalf("unexpected principal: %+v", principal)
	}
	if !principal.IsStaff() || principal.IsAdmin() {
		t.Fatalf("expected manager to be staff but not admin")
	}
}

func TestLoginCustomerToken(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, newDirectoryStub(t))

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Identifier: "9000000009", Password: "shopper"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	principal, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if !principal.IsCustomer() || !principal.CanAccessCustomer(5) || principal.CanAccessCustomer(6) {
		t.Fatalf("unexpected customer principal: %+v", principal)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, newDirectoryStub(t))

	if _, err := manager.Login(context.Background(), domain.LoginRequest{Identifier: "boss@metro.local", Password: "nope"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := manager.Login(context.Background(), domain.LoginRequest{Identifier: "ghost", Password: "boss-pass"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown identifier, got %v", err)
	}
}

func TestParseTokenRejectsForeignAndExpiredTokens(t *testing.T) {
	directory := newDirectoryStub(t)
	manager := NewAuthManager("test-secret", time.Hour, directory)
	other := NewAuthManager("another-secret", time.Hour, directory)

	resp, err := other.Login(context.Background(), domain.LoginRequest{Identifier: "boss@metro.local", Password: "boss-pass"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := manager.ParseToken(resp.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign signature to be rejected, got %v", err)
	}

	stale := NewAuthManager("test-secret", time.Minute, directory)
	stale.now = func() time.Time { return time.Now().UTC().Add(-2 * time.Hour) }
	resp, err = stale.Login(context.Background(), domain.LoginRequest{Identifier: "boss@metro.local", Password: "boss-pass"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := manager.ParseToken(resp.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestParseTokenRejectsUnknownPrincipalType(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, newDirectoryStub(t))
	claims := principalClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "1",
			Issuer:    "storefront",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Type: "robot",
		Role: domain.RoleAdmin,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := manager.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected unknown principal type to be rejected, got %v", err)
	}
}

func TestRegisterCustomerHashesPassword(t *testing.T) {
	directory := newDirectoryStub(t)
	manager := NewAuthManager("test-secret", time.Hour, directory)

	if _, err := manager.RegisterCustomer(context.Background(), domain.CustomerRegisterRequest{FirstName: "Short", Phone: "9000000010", Password: "123"}); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected short password to be rejected, got %v", err)
	}

	if _, err := manager.RegisterCustomer(context.Background(), domain.CustomerRegisterRequest{FirstName: "Long", Phone: "9000000011", Password: "long-enough"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if directory.lastHash == "long-enough" || !strings.HasPrefix(directory.lastHash, "$2") {
		t.Fatalf("expected bcrypt hash to reach the directory, got %q", directory.lastHash)
	}
	if !verifyPassword(directory.lastHash, "long-enough") {
		t.Fatalf("expected stored hash to verify")
	}
}

func TestVerifyPasswordRejectsPlainText(t *testing.T) {
	if verifyPassword("admin123", "admin123") {
		t.Fatalf("expected plain-text stored password to be rejected")
	}
	if verifyPassword(mustHashPassword(t, "x-secret"), "  ") {
		t.Fatalf("expected blank input to be rejected")
	}
}
