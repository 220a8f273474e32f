package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"storeops/backend/internal/domain"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      domain.RoleAdmin,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, store)
	_, err := manager.Login(domain.LoginRequest{
		Username: "admin",
		Password: "admin123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if users[0].Password == "admin123" {
		t.Fatalf("expected password to be upgraded from plain-text")
	}
	if !strings.HasPrefix(users[0].Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", users[0].Password)
	}
}

func TestCreateUserStoresPasswordHash(t *testing.T) {
	store := &userStoreStub{users: map[string]domain.UserAccount{}}
	manager := NewAuthManager("test-secret", time.Hour, store)

	user, err := manager.CreateUser(domain.UserCreateRequest{
		Username: "newmanager",
		Password: "pass1234",
		Role:     domain.RoleManager,
		StoreID:  "arcade-1",
	})
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	if user.Username != "newmanager" {
		t.Fatalf("unexpected username %s", user.Username)
	}
	if user.StoreID != "arcade-1" {
		t.Fatalf("expected store assignment, got %q", user.StoreID)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	var found *domain.UserAccount
	for i := range users {
		if users[i].Username == "newmanager" {
			found = &users[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("expected user to be saved")
	}
	if found.Password == "pass1234" {
		t.Fatalf("expected password to be hashed")
	}
	if !strings.HasPrefix(found.Password, "$2") {
		t.Fatalf("expected bcrypt hash prefix, got %s", found.Password)
	}

	_, err = manager.Login(domain.LoginRequest{
		Username: "newmanager",
		Password: "pass1234",
	})
	if err != nil {
		t.Fatalf("login with hashed password failed: %v", err)
	}
}

func TestCreateUserRejectsInvalidRole(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, &userStoreStub{})

	_, err := manager.CreateUser(domain.UserCreateRequest{
		Username: "someone",
		Password: "pass1234",
		Role:     "owner",
	})
	if err == nil {
		t.Fatalf("expected invalid role to be rejected")
	}
}

func TestCreateUserRequiresStoreForNonAdmin(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, &userStoreStub{})

	_, err := manager.CreateUser(domain.UserCreateRequest{
		Username: "floorstaff",
		Password: "pass1234",
		Role:     domain.RoleStaff,
	})
	if err == nil {
		t.Fatalf("expected staff without store to be rejected")
	}

	if _, err := manager.CreateUser(domain.UserCreateRequest{
		Username: "headoffice",
		Password: "pass1234",
		Role:     domain.RoleAdmin,
	}); err != nil {
		t.Fatalf("admin without store should be allowed: %v", err)
	}
}

func TestParseTokenCarriesRoleAndStore(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"manager": {
				Username:  "manager",
				Password:  "manager123",
				Role:      domain.RoleManager,
				StoreID:   "dreamcube-1",
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}
	manager := NewAuthManager("test-secret", time.Hour, store)

	resp, err := manager.Login(domain.LoginRequest{Username: "manager", Password: "manager123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Username != "manager" || actor.Role != domain.RoleManager {
		t.Fatalf("unexpected actor: %+v", actor)
	}
	if actor.StoreID != "dreamcube-1" {
		t.Fatalf("expected store claim dreamcube-1, got %q", actor.StoreID)
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, nil)

	if _, err := manager.ParseToken("not-a-token"); err == nil {
		t.Fatalf("expected garbage token to be rejected")
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"gone": {
				Username:  "gone",
				Password:  "pass1234",
				Role:      domain.RoleStaff,
				StoreID:   "arcade-1",
				Active:    false,
				CreatedAt: time.Now().UTC(),
			},
		},
	}
	manager := NewAuthManager("test-secret", time.Hour, store)

	_, err := manager.Login(domain.LoginRequest{Username: "gone", Password: "pass1234"})
	if err == nil {
		t.Fatalf("expected inactive account login to fail")
	}
}
