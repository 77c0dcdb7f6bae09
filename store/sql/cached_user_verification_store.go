package sqlstore

import (
	"context"
	"net/url"
	"strings"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-verification/core"
)

const userVerificationCacheKeyPrefix = "go-verification::user_verification::v1"

// CachedUserVerificationStore serves Get from a cache and drops the entry on
// every write made through it. Only verified rows stay cached: any other
// status can still move, so it is read from the base store every time.
type CachedUserVerificationStore struct {
	base  core.UserVerificationStore
	cache repositorycache.CacheService
}

func NewCachedUserVerificationStore(
	base core.UserVerificationStore,
	cacheService repositorycache.CacheService,
) (*CachedUserVerificationStore, error) {
	if base == nil {
		return nil, core.NewConfigurationError("sqlstore: base user verification store is required")
	}
	if cacheService == nil {
		return nil, core.NewConfigurationError("sqlstore: user verification cache service is required")
	}
	return &CachedUserVerificationStore{base: base, cache: cacheService}, nil
}

// UserVerificationCacheKey is
// go-verification::user_verification::v1::<escaped user id>.
func UserVerificationCacheKey(userID string) string {
	return userVerificationCacheKeyPrefix + "::" + url.PathEscape(strings.TrimSpace(userID))
}

func (s *CachedUserVerificationStore) Get(ctx context.Context, userID string) (core.UserVerification, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.UserVerification{}, core.NewConfigurationError("sqlstore: cached user verification store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.UserVerification{}, core.NewValidationError("userId", "sqlstore: user id is required")
	}
	key := UserVerificationCacheKey(userID)
	user, err := repositorycache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) (core.UserVerification, error) {
		return s.base.Get(ctx, userID)
	})
	if err != nil {
		return core.UserVerification{}, err
	}
	if !user.IdentityVerified {
		if err := s.cache.Delete(ctx, key); err != nil {
			return core.UserVerification{}, core.WrapError(err, core.KindPersistence, "sqlstore: drop unverified cache entry")
		}
	}
	return cloneUserVerification(user), nil
}

func (s *CachedUserVerificationStore) ApplyTransition(ctx context.Context, patch core.TransitionPatch) (bool, error) {
	if s == nil || s.base == nil {
		return false, core.NewConfigurationError("sqlstore: cached user verification store is not configured")
	}
	applied, err := s.base.ApplyTransition(ctx, patch)
	if err != nil {
		return false, err
	}
	if applied {
		if err := s.invalidate(ctx, patch.UserID); err != nil {
			return applied, err
		}
	}
	return applied, nil
}

func (s *CachedUserVerificationStore) SaveReconciled(ctx context.Context, data core.ReconciledData) error {
	if s == nil || s.base == nil {
		return core.NewConfigurationError("sqlstore: cached user verification store is not configured")
	}
	if err := s.base.SaveReconciled(ctx, data); err != nil {
		return err
	}
	return s.invalidate(ctx, data.UserID)
}

func (s *CachedUserVerificationStore) SaveSession(
	ctx context.Context,
	userID string,
	session core.SessionDescriptor,
	createdAt time.Time,
) error {
	if s == nil || s.base == nil {
		return core.NewConfigurationError("sqlstore: cached user verification store is not configured")
	}
	if err := s.base.SaveSession(ctx, userID, session, createdAt); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

func (s *CachedUserVerificationStore) ListSessions(ctx context.Context, filter core.SessionFilter) ([]core.UserVerification, error) {
	if s == nil || s.base == nil {
		return nil, core.NewConfigurationError("sqlstore: cached user verification store is not configured")
	}
	return s.base.ListSessions(ctx, filter)
}

// Invalidate drops the cached row for userID.
func (s *CachedUserVerificationStore) Invalidate(ctx context.Context, userID string) error {
	if s == nil || s.cache == nil {
		return core.NewConfigurationError("sqlstore: cached user verification store is not configured")
	}
	return s.invalidate(ctx, userID)
}

func (s *CachedUserVerificationStore) invalidate(ctx context.Context, userID string) error {
	if err := s.cache.Delete(ctx, UserVerificationCacheKey(userID)); err != nil {
		return core.WrapError(err, core.KindPersistence, "sqlstore: invalidate user verification cache")
	}
	return nil
}

func cloneUserVerification(user core.UserVerification) core.UserVerification {
	cloned := user
	cloned.IdentityVerifiedAt = utcPointer(user.IdentityVerifiedAt)
	cloned.CreatedAt = utcPointer(user.CreatedAt)
	cloned.SubmittedAt = utcPointer(user.SubmittedAt)
	cloned.ApprovedAt = utcPointer(user.ApprovedAt)
	cloned.DeclinedAt = utcPointer(user.DeclinedAt)
	cloned.WebhookData = copyAnyMap(user.WebhookData)
	if user.Insights != nil {
		cloned.Insights = append([]core.Insight(nil), user.Insights...)
	}
	if user.DecisionScore != nil {
		score := *user.DecisionScore
		cloned.DecisionScore = &score
	}
	return cloned
}
