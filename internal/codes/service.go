// Package codes manages the short-lived QR and OTP codes that bind an
// attendance claim to a specific timetable session.
package codes

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/Vishal-43/smart-attendece-system/internal/metrics"
	"github.com/Vishal-43/smart-attendece-system/internal/model"
)

// Store is the durable code store. Implementations must make the
// conditional operations (InstallCode, ConsumeQRCode, CompareAndReplaceCode)
// atomic per (timetable, kind) so racing verifies and refreshes resolve to
// exactly one winner.
type Store interface {
	// InstallCode replaces the timetable's code of the same kind, returning
	// false without installing anything when the timetable does not exist.
	// The existence check and the install are one atomic step.
	InstallCode(ctx context.Context, code model.RotatingCode) (bool, error)
	CurrentCode(ctx context.Context, timetableID int64, kind model.CodeKind) (model.RotatingCode, error)
	ConsumeQRCode(ctx context.Context, timetableID int64, code string, now time.Time) (bool, error)
	RecordOTPUse(ctx context.Context, timetableID int64, code string, now time.Time) (bool, error)
	CompareAndReplaceCode(ctx context.Context, oldCode string, next model.RotatingCode) (bool, error)
	ListExpiringCodes(ctx context.Context, kind model.CodeKind, now, deadline time.Time) ([]model.RotatingCode, error)
}

const (
	qrCodeBytes = 6 // hex-encoded to 12 characters
	otpDigits   = 6
)

type Service struct {
	store  Store
	qrTTL  time.Duration
	otpTTL time.Duration
	now    func() time.Time
}

func NewService(store Store, qrTTL, otpTTL time.Duration) *Service {
	return &Service{
		store:  store,
		qrTTL:  qrTTL,
		otpTTL: otpTTL,
		now:    time.Now,
	}
}

// SetNow overrides the clock. Test hook.
func (s *Service) SetNow(now func() time.Time) {
	s.now = now
}

// Generate issues a fresh code for the timetable, superseding any prior code
// of the same kind.
func (s *Service) Generate(ctx context.Context, timetableID int64, kind model.CodeKind) (model.RotatingCode, error) {
	code, err := s.newCode(timetableID, kind)
	if err != nil {
		return model.RotatingCode{}, err
	}
	installed, err := s.store.InstallCode(ctx, code)
	if err != nil {
		metrics.CodeOperationsTotal.WithLabelValues(string(kind), "generate", "error").Inc()
		return model.RotatingCode{}, fmt.Errorf("%w: code install: %v", model.ErrBackendFailure, err)
	}
	if !installed {
		return model.RotatingCode{}, model.ErrTimetableNotFound
	}
	metrics.CodeOperationsTotal.WithLabelValues(string(kind), "generate", "ok").Inc()
	return code, nil
}

// Current returns the active code for the timetable, treating expired rows
// as absent.
func (s *Service) Current(ctx context.Context, timetableID int64, kind model.CodeKind) (model.RotatingCode, error) {
	code, err := s.store.CurrentCode(ctx, timetableID, kind)
	if err != nil {
		return model.RotatingCode{}, err
	}
	if code.Expired(s.now()) {
		return model.RotatingCode{}, model.ErrCodeNotFound
	}
	return code, nil
}

// Verify checks a scanned/entered code against the current one. QR codes
// are single-use; OTP codes tolerate repeat verifications within their
// validity window, counted in used_count.
func (s *Service) Verify(ctx context.Context, timetableID int64, kind model.CodeKind, code string) error {
	now := s.now()

	var matched bool
	var err error
	switch kind {
	case model.CodeKindQR:
		matched, err = s.store.ConsumeQRCode(ctx, timetableID, code, now)
	case model.CodeKindOTP:
		matched, err = s.store.RecordOTPUse(ctx, timetableID, code, now)
	default:
		return model.ErrInvalidCodeKind
	}
	if err != nil {
		metrics.CodeOperationsTotal.WithLabelValues(string(kind), "verify", "error").Inc()
		return fmt.Errorf("%w: code verify: %v", model.ErrBackendFailure, err)
	}
	if matched {
		metrics.CodeOperationsTotal.WithLabelValues(string(kind), "verify", "ok").Inc()
		return nil
	}

	metrics.CodeOperationsTotal.WithLabelValues(string(kind), "verify", "rejected").Inc()
	return s.classifyVerifyFailure(ctx, timetableID, kind, code, now)
}

// classifyVerifyFailure distinguishes an already-used QR code from a
// missing, mismatched or expired one after the conditional update matched
// nothing.
func (s *Service) classifyVerifyFailure(ctx context.Context, timetableID int64, kind model.CodeKind, code string, now time.Time) error {
	current, err := s.store.CurrentCode(ctx, timetableID, kind)
	if err != nil {
		return model.ErrCodeNotFound
	}
	if current.Code != code || current.Expired(now) {
		return model.ErrCodeNotFound
	}
	if kind == model.CodeKindQR && current.Used {
		return model.ErrCodeUsed
	}
	return model.ErrCodeNotFound
}

// Refresh rotates the timetable's code, but only for a caller that can
// present the current unexpired code. A stale or mismatched prior code is
// rejected outright; it never falls back to creating a fresh code, so a
// caller that lost a rotation race cannot force another rotation.
func (s *Service) Refresh(ctx context.Context, timetableID int64, kind model.CodeKind, oldCode string) (model.RotatingCode, error) {
	next, err := s.newCode(timetableID, kind)
	if err != nil {
		return model.RotatingCode{}, err
	}
	replaced, err := s.store.CompareAndReplaceCode(ctx, oldCode, next)
	if err != nil {
		metrics.CodeOperationsTotal.WithLabelValues(string(kind), "refresh", "error").Inc()
		return model.RotatingCode{}, fmt.Errorf("%w: code refresh: %v", model.ErrBackendFailure, err)
	}
	if !replaced {
		metrics.CodeOperationsTotal.WithLabelValues(string(kind), "refresh", "rejected").Inc()
		return model.RotatingCode{}, model.ErrInvalidRefresh
	}
	metrics.CodeOperationsTotal.WithLabelValues(string(kind), "refresh", "ok").Inc()
	return next, nil
}

// RotateDue refreshes QR codes that will expire within the grace window. It
// goes through the same compare-and-swap as a manual refresh, so a
// concurrent rotation simply wins and the job skips that timetable.
func (s *Service) RotateDue(ctx context.Context, grace time.Duration) (int, error) {
	now := s.now()
	due, err := s.store.ListExpiringCodes(ctx, model.CodeKindQR, now, now.Add(grace))
	if err != nil {
		return 0, err
	}
	rotated := 0
	for _, code := range due {
		if _, err := s.Refresh(ctx, code.TimetableID, model.CodeKindQR, code.Code); err == nil {
			rotated++
		}
	}
	return rotated, nil
}

func (s *Service) newCode(timetableID int64, kind model.CodeKind) (model.RotatingCode, error) {
	now := s.now().UTC()
	code := model.RotatingCode{
		TimetableID: timetableID,
		Kind:        kind,
		CreatedAt:   now,
	}
	switch kind {
	case model.CodeKindQR:
		value, err := randomQRString()
		if err != nil {
			return model.RotatingCode{}, err
		}
		code.Code = value
		code.ExpiresAt = now.Add(s.qrTTL)
	case model.CodeKindOTP:
		value, err := randomOTP()
		if err != nil {
			return model.RotatingCode{}, err
		}
		code.Code = value
		code.ExpiresAt = now.Add(s.otpTTL)
	default:
		return model.RotatingCode{}, model.ErrInvalidCodeKind
	}
	return code, nil
}

func randomQRString() (string, error) {
	buf := make([]byte, qrCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "QR_" + hex.EncodeToString(buf), nil
}

func randomOTP() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	value, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, value), nil
}
