// Package validation decides whether an attendance claim is trustworthy:
// rate check, geofence resolution, distance evaluation, result publication.
package validation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Vishal-43/smart-attendece-system/internal/cache"
	"github.com/Vishal-43/smart-attendece-system/internal/geo"
	"github.com/Vishal-43/smart-attendece-system/internal/metrics"
	"github.com/Vishal-43/smart-attendece-system/internal/model"
	"github.com/Vishal-43/smart-attendece-system/internal/publish"
	"github.com/Vishal-43/smart-attendece-system/internal/ratelimit"
)

// Confidence is the fixed score attached to every result while the scorer
// has a single signal (GPS). Placeholder for a future multi-signal model.
const Confidence = 0.95

// LocationStore is the durable source of truth for geofences, consulted
// only on a cache miss.
type LocationStore interface {
	GetGeoFence(ctx context.Context, locationID string) (model.GeoFence, error)
}

type Validator struct {
	limiter   ratelimit.Limiter
	cache     cache.GeoFenceCache
	locations LocationStore
	publisher publish.Publisher
	cacheTTL  time.Duration
}

func NewValidator(limiter ratelimit.Limiter, fenceCache cache.GeoFenceCache, locations LocationStore, publisher publish.Publisher, cacheTTL time.Duration) *Validator {
	return &Validator{
		limiter:   limiter,
		cache:     fenceCache,
		locations: locations,
		publisher: publisher,
		cacheTTL:  cacheTTL,
	}
}

// Validate runs a claim through rate check, fence resolution, distance
// evaluation and publication. An out-of-fence claim is a normal result with
// valid=false; only throttling, unknown locations and backend failures
// surface as errors.
func (v *Validator) Validate(ctx context.Context, claim model.ValidationClaim) (model.ValidationResult, error) {
	if err := validateClaim(claim); err != nil {
		return model.ValidationResult{}, err
	}

	allowed, err := v.limiter.Allow(ctx, claim.DeviceID)
	if err != nil {
		metrics.ValidationsTotal.WithLabelValues("error").Inc()
		return model.ValidationResult{}, fmt.Errorf("%w: rate limiter: %v", model.ErrBackendFailure, err)
	}
	if !allowed {
		metrics.ValidationsTotal.WithLabelValues("rate_limited").Inc()
		return model.ValidationResult{}, model.ErrRateLimited
	}

	fence, err := v.resolveFence(ctx, claim.LocationID)
	if err != nil {
		if errors.Is(err, model.ErrLocationNotFound) {
			metrics.ValidationsTotal.WithLabelValues("not_found").Inc()
		} else {
			metrics.ValidationsTotal.WithLabelValues("error").Inc()
		}
		return model.ValidationResult{}, err
	}

	result := model.ValidationResult{
		StudentID:  claim.StudentID,
		DeviceID:   claim.DeviceID,
		Valid:      geo.WithinFence(claim.Latitude, claim.Longitude, fence),
		Confidence: Confidence,
	}

	// Best-effort side channel; the implementation swallows its own errors.
	v.publisher.Publish(result.StudentID, result.Valid)

	if result.Valid {
		metrics.ValidationsTotal.WithLabelValues("valid").Inc()
	} else {
		metrics.ValidationsTotal.WithLabelValues("invalid").Inc()
	}
	return result, nil
}

// resolveFence reads through the cache and backfills it on a miss. The
// cache never reaches the durable store itself.
func (v *Validator) resolveFence(ctx context.Context, locationID string) (model.GeoFence, error) {
	fence, ok, err := v.cache.Get(ctx, locationID)
	if err != nil {
		return model.GeoFence{}, fmt.Errorf("%w: geofence cache: %v", model.ErrBackendFailure, err)
	}
	if ok {
		return fence, nil
	}

	fence, err = v.locations.GetGeoFence(ctx, locationID)
	if err != nil {
		if errors.Is(err, model.ErrLocationNotFound) {
			return model.GeoFence{}, model.ErrLocationNotFound
		}
		return model.GeoFence{}, fmt.Errorf("%w: location store: %v", model.ErrBackendFailure, err)
	}

	// Fill failure only costs the next caller a re-fetch.
	if err := v.cache.Put(ctx, fence, v.cacheTTL); err != nil {
		log.Printf("geofence cache fill error for %s: %v", locationID, err)
	}
	return fence, nil
}

func validateClaim(claim model.ValidationClaim) error {
	if claim.DeviceID == "" || claim.StudentID == "" || claim.LocationID == "" {
		return model.ErrInvalidClaim
	}
	if claim.Latitude < -90 || claim.Latitude > 90 {
		return model.ErrInvalidClaim
	}
	if claim.Longitude < -180 || claim.Longitude > 180 {
		return model.ErrInvalidClaim
	}
	return nil
}
