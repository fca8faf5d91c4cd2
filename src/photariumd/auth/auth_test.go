package auth

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/photarium/photarium/src/common/errors"
	"github.com/photarium/photarium/src/photariumd/access"
	"github.com/photarium/photarium/src/photariumd/db"
)

func newTestRepo(t *testing.T) (*Repository, *db.Database) {
	t.Helper()
	database, err := db.New(db.Config{PersistPath: "", LoadOnStart: false})
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { database.Shutdown() })
	return NewRepository(database), database
}

func TestUserLifecycle(t *testing.T) {
	repo, _ := newTestRepo(t)
	manager := NewUserManager(repo)

	user, err := manager.CreateUser("alice", "alice@example.com", "correct horse", "owner")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.Role != access.RoleOwner {
		t.Errorf("expected owner role, got %s", user.Role)
	}
	if user.PasswordHash == "correct horse" {
		t.Fatal("password stored unhashed")
	}

	// Duplicate name rejected
	if _, err := manager.CreateUser("alice", "other@example.com", "password123", ""); !errors.Is(err, apperrors.ErrUserAlreadyExists) {
		t.Errorf("expected user-already-exists, got %v", err)
	}

	// Authentication
	got, err := manager.Authenticate("alice", "correct horse")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if got.ID != user.ID {
		t.Error("authenticated as the wrong user")
	}
	if _, err := manager.Authenticate("alice", "wrong"); !errors.Is(err, apperrors.ErrInvalidCredentials) {
		t.Errorf("expected invalid-credentials, got %v", err)
	}
	if _, err := manager.Authenticate("nobody", "correct horse"); !errors.Is(err, apperrors.ErrInvalidCredentials) {
		t.Errorf("unknown user should yield the same error, got %v", err)
	}
}

func TestCreateUserValidation(t *testing.T) {
	repo, _ := newTestRepo(t)
	manager := NewUserManager(repo)

	cases := []struct {
		name, email, password, role string
	}{
		{"", "a@b.c", "password123", ""},
		{"bob", "", "password123", ""},
		{"bob", "a@b.c", "short", ""},
		{"bob", "a@b.c", "password123", "overlord"},
	}
	for _, tc := range cases {
		if _, err := manager.CreateUser(tc.name, tc.email, tc.password, tc.role); !errors.Is(err, apperrors.ErrInvalidUserData) {
			t.Errorf("CreateUser(%q,%q,...): expected invalid-user-data, got %v", tc.name, tc.email, err)
		}
	}
}

func TestGroupAndProviderAssignment(t *testing.T) {
	repo, _ := newTestRepo(t)
	manager := NewUserManager(repo)

	user, err := manager.CreateUser("carol", "carol@example.com", "password123", "owner")
	if err != nil {
		t.Fatal(err)
	}

	if err := manager.SetGroups(user.ID, []string{"family", "friends"}); err != nil {
		t.Fatalf("SetGroups failed: %v", err)
	}
	if err := manager.SetAllowedProviders(user.ID, []string{"local", "s3main"}); err != nil {
		t.Fatalf("SetAllowedProviders failed: %v", err)
	}

	got, err := repo.GetUserByID(user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.GroupAliases) != 2 || got.GroupAliases[0] != "family" {
		t.Errorf("groups not persisted: %v", got.GroupAliases)
	}
	if len(got.AllowedProviders) != 2 {
		t.Errorf("providers not persisted: %v", got.AllowedProviders)
	}

	p := got.Principal()
	if !access.CanUpload(p, "s3main") || access.CanUpload(p, "drive") {
		t.Error("principal does not reflect the provider allow list")
	}
}

func TestJWTRoundTrip(t *testing.T) {
	repo, database := newTestRepo(t)
	manager := NewUserManager(repo)
	svc := NewJWTService(DefaultJWTConfig(), repo, database)

	user, err := manager.CreateUser("dave", "dave@example.com", "password123", "admin")
	if err != nil {
		t.Fatal(err)
	}
	user.GroupAliases = []string{"staff"}
	if err := repo.UpdateUser(user); err != nil {
		t.Fatal(err)
	}

	token, err := svc.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != access.RoleAdmin {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if len(claims.GroupAliases) != 1 || claims.GroupAliases[0] != "staff" {
		t.Errorf("groups missing from claims: %v", claims.GroupAliases)
	}
}

func TestJWTRevocation(t *testing.T) {
	repo, database := newTestRepo(t)
	manager := NewUserManager(repo)
	svc := NewJWTService(DefaultJWTConfig(), repo, database)

	user, err := manager.CreateUser("erin", "erin@example.com", "password123", "guest")
	if err != nil {
		t.Fatal(err)
	}

	token, err := svc.GenerateToken(user)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ValidateToken(token); err != nil {
		t.Fatalf("token should validate before revocation: %v", err)
	}

	if err := svc.RevokeToken(token); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}
	if _, err := svc.ValidateToken(token); !errors.Is(err, apperrors.ErrTokenInvalid) {
		t.Errorf("expected token-invalid after revocation, got %v", err)
	}
}

func TestJWTRejectsGarbage(t *testing.T) {
	repo, database := newTestRepo(t)
	svc := NewJWTService(DefaultJWTConfig(), repo, database)

	if _, err := svc.ValidateToken("not.a.token"); !errors.Is(err, apperrors.ErrTokenInvalid) {
		t.Errorf("expected token-invalid, got %v", err)
	}
}

func TestJWTSecretPersistsAcrossRestarts(t *testing.T) {
	repo, database := newTestRepo(t)
	manager := NewUserManager(repo)
	user, err := manager.CreateUser("fred", "fred@example.com", "password123", "guest")
	if err != nil {
		t.Fatal(err)
	}

	first := NewJWTService(DefaultJWTConfig(), repo, database)
	token, err := first.GenerateToken(user)
	if err != nil {
		t.Fatal(err)
	}

	// A second service over the same settings store reuses the secret
	second := NewJWTService(DefaultJWTConfig(), repo, database)
	if _, err := second.ValidateToken(token); err != nil {
		t.Errorf("token should survive a service restart: %v", err)
	}
}

func TestCleanupExpiredTokens(t *testing.T) {
	repo, _ := newTestRepo(t)
	manager := NewUserManager(repo)
	user, err := manager.CreateUser("gail", "gail@example.com", "password123", "guest")
	if err != nil {
		t.Fatal(err)
	}

	if err := repo.RevokeToken("expired-token", user.ID, time.Now().Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := repo.RevokeToken("live-token", user.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	if err := repo.CleanupExpiredTokens(); err != nil {
		t.Fatalf("CleanupExpiredTokens failed: %v", err)
	}

	revoked, err := repo.IsTokenRevoked("expired-token")
	if err != nil {
		t.Fatal(err)
	}
	if revoked {
		t.Error("expired revocation row not cleaned up")
	}
	revoked, err = repo.IsTokenRevoked("live-token")
	if err != nil {
		t.Fatal(err)
	}
	if !revoked {
		t.Error("live revocation row should remain")
	}
}
