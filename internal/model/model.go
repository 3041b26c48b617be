package model

import (
	"errors"
	"time"
)

// ValidationClaim is the input to the presence validator, built once per
// request and never mutated.
type ValidationClaim struct {
	DeviceID   string  `json:"deviceId"`
	StudentID  string  `json:"studentId"`
	LocationID string  `json:"locationId"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

// GeoFence is a location's verification envelope. The durable location store
// owns it; cache entries are disposable copies.
type GeoFence struct {
	LocationID string  `json:"locationId"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Radius     float64 `json:"radius"` // meters, must be > 0
}

// ValidationResult is the outcome of a presence validation. It is returned
// to the caller and published to subscribers; nothing here persists it.
type ValidationResult struct {
	StudentID  string  `json:"studentId"`
	DeviceID   string  `json:"deviceId"`
	Valid      bool    `json:"valid"`
	Confidence float64 `json:"confidence"`
}

type CodeKind string

const (
	CodeKindQR  CodeKind = "qr"
	CodeKindOTP CodeKind = "otp"
)

// ParseCodeKind maps a path segment onto a code kind.
func ParseCodeKind(value string) (CodeKind, error) {
	switch value {
	case "qr":
		return CodeKindQR, nil
	case "otp":
		return CodeKindOTP, nil
	default:
		return "", ErrInvalidCodeKind
	}
}

// RotatingCode is the single current code for a (timetable, kind) pair.
type RotatingCode struct {
	TimetableID int64     `json:"timetableId"`
	Kind        CodeKind  `json:"kind"`
	Code        string    `json:"code"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Used        bool      `json:"used"`
	UsedCount   int       `json:"usedCount"`
}

// Expired reports whether the code is past its expiry at the given instant.
// Expired codes stay in storage but count as absent everywhere.
func (c RotatingCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Error taxonomy. The transport layer maps these onto HTTP statuses; the
// core never speaks HTTP.
var (
	ErrRateLimited       = errors.New("rate_limited")
	ErrLocationNotFound  = errors.New("location_not_found")
	ErrTimetableNotFound = errors.New("timetable_not_found")
	ErrCodeNotFound      = errors.New("code_not_found")
	ErrCodeUsed          = errors.New("code_already_used")
	ErrInvalidRefresh    = errors.New("invalid_refresh_token")
	ErrInvalidCodeKind   = errors.New("invalid_code_kind")
	ErrInvalidClaim      = errors.New("invalid_claim")
	ErrBackendFailure    = errors.New("backend_unavailable")
)
