package codes

import (
	"context"
	"sync"
	"time"

	"github.com/Vishal-43/smart-attendece-system/internal/model"
)

type memoryKey struct {
	timetableID int64
	kind        model.CodeKind
}

// MemoryStore is an in-process Store. A single mutex serializes all
// operations, which trivially satisfies the per-(timetable, kind)
// linearizability the interface demands.
type MemoryStore struct {
	mu         sync.Mutex
	codes      map[memoryKey]model.RotatingCode
	timetables map[int64]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		codes:      make(map[memoryKey]model.RotatingCode),
		timetables: make(map[int64]struct{}),
	}
}

// AddTimetable registers a timetable so code issuance for it succeeds.
func (s *MemoryStore) AddTimetable(timetableID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timetables[timetableID] = struct{}{}
}

func (s *MemoryStore) InstallCode(_ context.Context, code model.RotatingCode) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timetables[code.TimetableID]; !ok {
		return false, nil
	}
	code.Used = false
	code.UsedCount = 0
	s.codes[memoryKey{code.TimetableID, code.Kind}] = code
	return true, nil
}

func (s *MemoryStore) CurrentCode(_ context.Context, timetableID int64, kind model.CodeKind) (model.RotatingCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[memoryKey{timetableID, kind}]
	if !ok {
		return model.RotatingCode{}, model.ErrCodeNotFound
	}
	return code, nil
}

func (s *MemoryStore) ConsumeQRCode(_ context.Context, timetableID int64, code string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey{timetableID, model.CodeKindQR}
	current, ok := s.codes[key]
	if !ok || current.Code != code || current.Used || current.Expired(now) {
		return false, nil
	}
	current.Used = true
	current.UsedCount++
	s.codes[key] = current
	return true, nil
}

func (s *MemoryStore) RecordOTPUse(_ context.Context, timetableID int64, code string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey{timetableID, model.CodeKindOTP}
	current, ok := s.codes[key]
	if !ok || current.Code != code || current.Expired(now) {
		return false, nil
	}
	current.Used = true
	current.UsedCount++
	s.codes[key] = current
	return true, nil
}

func (s *MemoryStore) CompareAndReplaceCode(_ context.Context, oldCode string, next model.RotatingCode) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey{next.TimetableID, next.Kind}
	current, ok := s.codes[key]
	if !ok || current.Code != oldCode || current.Expired(next.CreatedAt) {
		return false, nil
	}
	next.Used = false
	next.UsedCount = 0
	s.codes[key] = next
	return true, nil
}

func (s *MemoryStore) ListExpiringCodes(_ context.Context, kind model.CodeKind, now, deadline time.Time) ([]model.RotatingCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.RotatingCode
	for key, code := range s.codes {
		if key.kind != kind {
			continue
		}
		if code.ExpiresAt.After(now) && !code.ExpiresAt.After(deadline) {
			out = append(out, code)
		}
	}
	return out, nil
}
