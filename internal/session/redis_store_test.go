package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"taskboard/api/internal/store"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	rs, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { _ = rs.Close() })
	return rs, s
}

func TestNewRedisStore(t *testing.T) {
	rs, _ := setupTestRedis(t)
	if err := rs.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	if _, err := NewRedisStore("not a url"); err == nil {
		t.Fatal("expected error for invalid redis url")
	}
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	rs, s := setupTestRedis(t)
	ctx := context.Background()
	user := store.User{ID: "usr_123", Name: "Avery", Email: "avery@example.com"}

	if err := rs.SaveRefreshSession(ctx, "test-token-hash", user, time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	if !s.Exists("taskboard:refresh:test-token-hash") {
		t.Fatal("expected prefixed key in redis")
	}

	got, err := rs.LookupRefreshSession(ctx, "test-token-hash")
	if err != nil {
		t.Fatalf("LookupRefreshSession failed: %v", err)
	}
	if got.ID != user.ID || got.Name != user.Name || got.Email != user.Email {
		t.Errorf("unexpected user %+v", got)
	}
}

func TestLookupExpiredSession(t *testing.T) {
	rs, s := setupTestRedis(t)
	ctx := context.Background()

	if err := rs.SaveRefreshSession(ctx, "expired-token", store.User{ID: "usr_456"}, time.Now().Add(time.Second)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	s.FastForward(2 * time.Second)

	if _, err := rs.LookupRefreshSession(ctx, "expired-token"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ctx := context.Background()

	if err := rs.SaveRefreshSession(ctx, "token-to-revoke", store.User{ID: "usr_789"}, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	if err := rs.RevokeRefreshSession(ctx, "token-to-revoke"); err != nil {
		t.Fatalf("RevokeRefreshSession failed: %v", err)
	}
	if _, err := rs.LookupRefreshSession(ctx, "token-to-revoke"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after revoke, got %v", err)
	}
	if err := rs.RevokeRefreshSession(ctx, "never-issued"); err != nil {
		t.Errorf("revoking unknown token failed: %v", err)
	}
}

func TestSessionIsolation(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ctx := context.Background()
	expiresAt := time.Now().Add(24 * time.Hour)

	if err := rs.SaveRefreshSession(ctx, "token-1", store.User{ID: "usr_1"}, expiresAt); err != nil {
		t.Fatalf("SaveRefreshSession 1 failed: %v", err)
	}
	if err := rs.SaveRefreshSession(ctx, "token-2", store.User{ID: "usr_2"}, expiresAt); err != nil {
		t.Fatalf("SaveRefreshSession 2 failed: %v", err)
	}
	if err := rs.RevokeRefreshSession(ctx, "token-1"); err != nil {
		t.Fatalf("Revoke token-1 failed: %v", err)
	}

	if _, err := rs.LookupRefreshSession(ctx, "token-1"); err == nil {
		t.Error("expected error for revoked token-1, got nil")
	}
	user2, err := rs.LookupRefreshSession(ctx, "token-2")
	if err != nil {
		t.Fatalf("Lookup token-2 after revoke failed: %v", err)
	}
	if user2.ID != "usr_2" {
		t.Errorf("expected usr_2 after revoke, got %s", user2.ID)
	}
}

func TestRevokeAccessToken(t *testing.T) {
	rs, s := setupTestRedis(t)
	ctx := context.Background()

	revoked, err := rs.IsAccessTokenRevoked(ctx, "jti_1")
	if err != nil || revoked {
		t.Fatalf("expected fresh token to be valid, got %v %v", revoked, err)
	}
	if err := rs.RevokeAccessToken(ctx, "jti_1", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("RevokeAccessToken failed: %v", err)
	}
	revoked, err = rs.IsAccessTokenRevoked(ctx, "jti_1")
	if err != nil || !revoked {
		t.Fatalf("expected token to be revoked, got %v %v", revoked, err)
	}

	s.FastForward(2 * time.Minute)
	revoked, _ = rs.IsAccessTokenRevoked(ctx, "jti_1")
	if revoked {
		t.Fatal("expected revocation to lapse with the token")
	}
}

func TestRevokeExpiredAccessTokenIsNoop(t *testing.T) {
	rs, s := setupTestRedis(t)
	if err := rs.RevokeAccessToken(context.Background(), "jti_old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("RevokeAccessToken failed: %v", err)
	}
	if s.Exists("taskboard:revoked:jti_old") {
		t.Fatal("expired token should not be stored")
	}
}
