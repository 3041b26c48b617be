package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Vishal-43/smart-attendece-system/internal/cache"
	"github.com/Vishal-43/smart-attendece-system/internal/model"
	"github.com/Vishal-43/smart-attendece-system/internal/publish"
	"github.com/Vishal-43/smart-attendece-system/internal/ratelimit"
)

type fakeLocationStore struct {
	fences  map[string]model.GeoFence
	fetches int
	err     error
}

func (s *fakeLocationStore) GetGeoFence(_ context.Context, locationID string) (model.GeoFence, error) {
	s.fetches++
	if s.err != nil {
		return model.GeoFence{}, s.err
	}
	fence, ok := s.fences[locationID]
	if !ok {
		return model.GeoFence{}, model.ErrLocationNotFound
	}
	return fence, nil
}

func campusFence() model.GeoFence {
	return model.GeoFence{LocationID: "lecture-hall-1", Latitude: 12.9716, Longitude: 77.5946, Radius: 50}
}

func claimAt(lat, lon float64) model.ValidationClaim {
	return model.ValidationClaim{
		DeviceID:   "device-1",
		StudentID:  "student-1",
		LocationID: "lecture-hall-1",
		Latitude:   lat,
		Longitude:  lon,
	}
}

func newTestValidator(locations *fakeLocationStore) (*Validator, *cache.MemoryCache, *publish.MemoryPublisher) {
	fenceCache := cache.NewMemoryCache()
	publisher := publish.NewMemoryPublisher()
	validator := NewValidator(ratelimit.NewMemoryLimiter(100, time.Minute), fenceCache, locations, publisher, time.Hour)
	return validator, fenceCache, publisher
}

func TestValidateInsideAndOutsideFence(t *testing.T) {
	locations := &fakeLocationStore{fences: map[string]model.GeoFence{"lecture-hall-1": campusFence()}}
	validator, _, publisher := newTestValidator(locations)
	ctx := context.Background()

	result, err := validator.Validate(ctx, claimAt(12.9716, 77.5946))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected claim at fence center to be valid")
	}
	if result.Confidence != 0.95 {
		t.Fatalf("expected confidence 0.95, got %v", result.Confidence)
	}

	result, err = validator.Validate(ctx, claimAt(12.9800, 77.6050))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Valid {
		t.Fatalf("expected claim 1.3km away to be invalid")
	}

	events := publisher.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(events))
	}
	if !events[0].Valid || events[1].Valid {
		t.Fatalf("expected published outcomes [true false], got %+v", events)
	}
	if events[0].StudentID != "student-1" {
		t.Fatalf("expected studentId on event, got %q", events[0].StudentID)
	}
}

func TestValidateCacheAside(t *testing.T) {
	locations := &fakeLocationStore{fences: map[string]model.GeoFence{"lecture-hall-1": campusFence()}}
	validator, fenceCache, _ := newTestValidator(locations)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	fenceCache.SetNow(func() time.Time { return now })

	for i := 0; i < 5; i++ {
		if _, err := validator.Validate(ctx, claimAt(12.9716, 77.5946)); err != nil {
			t.Fatalf("validate %d: %v", i, err)
		}
	}
	if locations.fetches != 1 {
		t.Fatalf("expected a single durable fetch within TTL, got %d", locations.fetches)
	}

	// After the TTL elapses exactly one re-fetch happens on the next call.
	now = now.Add(time.Hour + time.Minute)
	if _, err := validator.Validate(ctx, claimAt(12.9716, 77.5946)); err != nil {
		t.Fatalf("validate after ttl: %v", err)
	}
	if _, err := validator.Validate(ctx, claimAt(12.9716, 77.5946)); err != nil {
		t.Fatalf("validate after refill: %v", err)
	}
	if locations.fetches != 2 {
		t.Fatalf("expected exactly one re-fetch after TTL, got %d total", locations.fetches)
	}
}

func TestValidateRateLimited(t *testing.T) {
	locations := &fakeLocationStore{fences: map[string]model.GeoFence{"lecture-hall-1": campusFence()}}
	fenceCache := cache.NewMemoryCache()
	publisher := publish.NewMemoryPublisher()
	validator := NewValidator(ratelimit.NewMemoryLimiter(2, time.Minute), fenceCache, locations, publisher, time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := validator.Validate(ctx, claimAt(12.9716, 77.5946)); err != nil {
			t.Fatalf("validate %d: %v", i, err)
		}
	}
	if _, err := validator.Validate(ctx, claimAt(12.9716, 77.5946)); !errors.Is(err, model.ErrRateLimited) {
		t.Fatalf("expected rate_limited, got %v", err)
	}
	if len(publisher.Events()) != 2 {
		t.Fatalf("expected no publication for throttled claim")
	}
}

func TestValidateLocationNotFound(t *testing.T) {
	locations := &fakeLocationStore{fences: map[string]model.GeoFence{}}
	validator, _, publisher := newTestValidator(locations)

	if _, err := validator.Validate(context.Background(), claimAt(12.9716, 77.5946)); !errors.Is(err, model.ErrLocationNotFound) {
		t.Fatalf("expected location_not_found, got %v", err)
	}
	if len(publisher.Events()) != 0 {
		t.Fatalf("expected no publication for unknown location")
	}
}

func TestValidateBackendFailure(t *testing.T) {
	locations := &fakeLocationStore{err: errors.New("connection refused")}
	validator, _, _ := newTestValidator(locations)

	if _, err := validator.Validate(context.Background(), claimAt(12.9716, 77.5946)); !errors.Is(err, model.ErrBackendFailure) {
		t.Fatalf("expected backend_unavailable, got %v", err)
	}
}

func TestValidateRejectsMalformedClaims(t *testing.T) {
	locations := &fakeLocationStore{fences: map[string]model.GeoFence{"lecture-hall-1": campusFence()}}
	validator, _, _ := newTestValidator(locations)
	ctx := context.Background()

	bad := []model.ValidationClaim{
		{StudentID: "s", LocationID: "l", Latitude: 1, Longitude: 1},
		{DeviceID: "d", LocationID: "l", Latitude: 1, Longitude: 1},
		{DeviceID: "d", StudentID: "s", Latitude: 1, Longitude: 1},
		{DeviceID: "d", StudentID: "s", LocationID: "l", Latitude: 91, Longitude: 1},
		{DeviceID: "d", StudentID: "s", LocationID: "l", Latitude: 1, Longitude: -181},
	}
	for i, claim := range bad {
		if _, err := validator.Validate(ctx, claim); !errors.Is(err, model.ErrInvalidClaim) {
			t.Fatalf("case %d: expected invalid_claim, got %v", i, err)
		}
	}
}
