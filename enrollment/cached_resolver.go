package enrollment

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/hastexo/webhook-receiver/core"
)

const courseIDCacheKeyPrefix = "webhook-receiver::course_id::v1"

// CachedCourseResolver memoizes SKU lookups. Course ids are stable for the
// lifetime of a listing, so the redirect chase only runs once per SKU.
type CachedCourseResolver struct {
	base  core.CourseResolver
	cache repositorycache.CacheService
}

func NewCachedCourseResolver(base core.CourseResolver, cacheService repositorycache.CacheService) (*CachedCourseResolver, error) {
	if base == nil {
		return nil, fmt.Errorf("enrollment: base course resolver is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("enrollment: course cache service is required")
	}
	return &CachedCourseResolver{base: base, cache: cacheService}, nil
}

// CourseIDCacheKey returns the deterministic cache key for one SKU:
// webhook-receiver::course_id::v1::<sku> with the SKU URL-path escaped.
func CourseIDCacheKey(sku string) (string, error) {
	trimmed := strings.TrimSpace(sku)
	if trimmed == "" {
		return "", fmt.Errorf("enrollment: sku is required")
	}
	return courseIDCacheKeyPrefix + "::" + url.PathEscape(trimmed), nil
}

func (r *CachedCourseResolver) Resolve(ctx context.Context, sku string) (string, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return "", fmt.Errorf("enrollment: cached course resolver is not configured")
	}
	cacheKey, err := CourseIDCacheKey(sku)
	if err != nil {
		return "", err
	}
	return repositorycache.GetOrFetch(ctx, r.cache, cacheKey, func(ctx context.Context) (string, error) {
		return r.base.Resolve(ctx, sku)
	})
}

// Invalidate evicts one SKU mapping, for listings that changed course.
func (r *CachedCourseResolver) Invalidate(ctx context.Context, sku string) error {
	if r == nil || r.cache == nil {
		return fmt.Errorf("enrollment: cached course resolver is not configured")
	}
	cacheKey, err := CourseIDCacheKey(sku)
	if err != nil {
		return err
	}
	return r.cache.Delete(ctx, cacheKey)
}

var _ core.CourseResolver = (*CachedCourseResolver)(nil)
