package sqlstore_test

import (
	"context"
	"testing"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-verification/core"
	sqlstore "github.com/goliatone/go-verification/store/sql"
)

type countingUserStore struct {
	users   map[string]core.UserVerification
	gets    int
	applied bool
}

func (s *countingUserStore) Get(_ context.Context, userID string) (core.UserVerification, error) {
	s.gets++
	user, ok := s.users[userID]
	if !ok {
		return core.UserVerification{}, core.NewNotFoundError("user not found")
	}
	return user, nil
}

func (s *countingUserStore) ApplyTransition(_ context.Context, patch core.TransitionPatch) (bool, error) {
	if !s.applied {
		return false, nil
	}
	user := s.users[patch.UserID]
	user.Status = patch.Status
	s.users[patch.UserID] = user
	return true, nil
}

func (s *countingUserStore) SaveReconciled(context.Context, core.ReconciledData) error {
	return nil
}

func (s *countingUserStore) SaveSession(_ context.Context, userID string, session core.SessionDescriptor, _ time.Time) error {
	user := s.users[userID]
	user.SessionID = session.SessionID
	s.users[userID] = user
	return nil
}

func (s *countingUserStore) ListSessions(context.Context, core.SessionFilter) ([]core.UserVerification, error) {
	return nil, nil
}

func newCachedStore(t *testing.T, base core.UserVerificationStore) *sqlstore.CachedUserVerificationStore {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	cacheService, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	store, err := sqlstore.NewCachedUserVerificationStore(base, cacheService)
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	return store
}

func TestCachedUserVerificationStore_ServesRepeatReadsFromCache(t *testing.T) {
	ctx := context.Background()
	base := &countingUserStore{users: map[string]core.UserVerification{
		"u1": {UserID: "u1", Status: core.VerificationStatusApproved, IdentityVerified: true},
	}}
	store := newCachedStore(t, base)

	for i := 0; i < 3; i++ {
		user, err := store.Get(ctx, "u1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if user.Status != core.VerificationStatusApproved {
			t.Fatalf("unexpected status %q", user.Status)
		}
	}
	if base.gets != 1 {
		t.Fatalf("expected one base read, got %d", base.gets)
	}
}

func TestCachedUserVerificationStore_DoesNotCacheUnverifiedRows(t *testing.T) {
	ctx := context.Background()
	base := &countingUserStore{users: map[string]core.UserVerification{
		"u1": {UserID: "u1", Status: core.VerificationStatusSubmitted},
	}}
	store := newCachedStore(t, base)

	if _, err := store.Get(ctx, "u1"); err != nil {
		t.Fatalf("prime: %v", err)
	}
	base.users["u1"] = core.UserVerification{UserID: "u1", Status: core.VerificationStatusApproved, IdentityVerified: true}

	user, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !user.IdentityVerified || user.Status != core.VerificationStatusApproved {
		t.Fatalf("expected approval written elsewhere to be visible, got %+v", user)
	}
	if base.gets != 2 {
		t.Fatalf("expected unverified row re-read, got %d base reads", base.gets)
	}
}

func TestCachedUserVerificationStore_WritesInvalidate(t *testing.T) {
	ctx := context.Background()
	base := &countingUserStore{users: map[string]core.UserVerification{
		"u1": {UserID: "u1", Status: core.VerificationStatusApproved, IdentityVerified: true},
	}}
	store := newCachedStore(t, base)

	if _, err := store.Get(ctx, "u1"); err != nil {
		t.Fatalf("prime: %v", err)
	}

	applied, err := store.ApplyTransition(ctx, core.TransitionPatch{UserID: "u1", EventKey: "k1", Status: core.VerificationStatusDeclined})
	if err != nil || applied {
		t.Fatalf("expected skipped transition, got %v (%v)", applied, err)
	}
	if _, err := store.Get(ctx, "u1"); err != nil {
		t.Fatalf("get after skipped transition: %v", err)
	}
	if base.gets != 1 {
		t.Fatalf("expected skipped transition to keep the cache, got %d base reads", base.gets)
	}

	base.applied = true
	if _, err := store.ApplyTransition(ctx, core.TransitionPatch{UserID: "u1", EventKey: "k2", Status: core.VerificationStatusDeclined}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	user, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get after transition: %v", err)
	}
	if user.Status != core.VerificationStatusDeclined || base.gets != 2 {
		t.Fatalf("expected refreshed row, got %q after %d reads", user.Status, base.gets)
	}

	if err := store.SaveSession(ctx, "u1", core.SessionDescriptor{SessionID: "s2"}, time.Now()); err != nil {
		t.Fatalf("save session: %v", err)
	}
	user, err = store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get after save session: %v", err)
	}
	if user.SessionID != "s2" || base.gets != 3 {
		t.Fatalf("expected new session visible, got %q after %d reads", user.SessionID, base.gets)
	}
}

func TestCachedUserVerificationStore_RequiresDependencies(t *testing.T) {
	if _, err := sqlstore.NewCachedUserVerificationStore(nil, nil); core.KindOf(err) != core.KindConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if got := sqlstore.UserVerificationCacheKey(" a/b "); got != "go-verification::user_verification::v1::a%2Fb" {
		t.Fatalf("unexpected cache key %q", got)
	}
}
