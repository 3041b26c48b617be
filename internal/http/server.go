package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Vishal-43/smart-attendece-system/internal/auth"
	"github.com/Vishal-43/smart-attendece-system/internal/codes"
	"github.com/Vishal-43/smart-attendece-system/internal/config"
	"github.com/Vishal-43/smart-attendece-system/internal/model"
	"github.com/Vishal-43/smart-attendece-system/internal/validation"
)

type Server struct {
	cfg       config.Config
	validator *validation.Validator
	codes     *codes.Service
}

func NewServer(cfg config.Config, validator *validation.Validator, codeService *codes.Service) *Server {
	return &Server{
		cfg:       cfg,
		validator: validator,
		codes:     codeService,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(s.authMiddleware, requireRole("student")).Post("/attendance/validate", s.handleValidate)
		r.Route("/codes/{kind}", func(r chi.Router) {
			r.With(s.authMiddleware, requireRole("teacher", "admin")).Post("/generate/{timetableId}", s.handleGenerateCode)
			r.With(s.authMiddleware, requireRole("teacher", "admin")).Get("/current/{timetableId}", s.handleCurrentCode)
			r.With(s.authMiddleware, requireRole("student")).Post("/verify/{timetableId}", s.handleVerifyCode)
			r.With(s.authMiddleware, requireRole("teacher", "admin")).Post("/refresh/{timetableId}", s.handleRefreshCode)
		})
	})

	return r
}

// Auth

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFromContext(r.Context())
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "missing_token")
				return
			}
			for _, role := range roles {
				if claims.UserType == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "forbidden")
		})
	}
}

// Models

type validateRequest struct {
	DeviceID   string  `json:"deviceId"`
	LocationID string  `json:"locationId"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

type codeResponse struct {
	TimetableID int64  `json:"timetableId"`
	Kind        string `json:"kind"`
	Code        string `json:"code"`
	ExpiresAt   int64  `json:"expiresAt"`
	Validity    int64  `json:"validity"`
}

type verifyCodeRequest struct {
	Code string `json:"code"`
}

type refreshCodeRequest struct {
	OldCode string `json:"oldCode"`
}

// Handlers

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	var req validateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	claim := model.ValidationClaim{
		DeviceID:   strings.TrimSpace(req.DeviceID),
		StudentID:  claims.UserID,
		LocationID: strings.TrimSpace(req.LocationID),
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
	}
	result, err := s.validator.Validate(r.Context(), claim)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGenerateCode(w http.ResponseWriter, r *http.Request) {
	kind, timetableID, ok := codeParams(w, r)
	if !ok {
		return
	}
	code, err := s.codes.Generate(r.Context(), timetableID, kind)
	if err != nil {
		writeCodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapCode(code))
}

func (s *Server) handleCurrentCode(w http.ResponseWriter, r *http.Request) {
	kind, timetableID, ok := codeParams(w, r)
	if !ok {
		return
	}
	code, err := s.codes.Current(r.Context(), timetableID, kind)
	if err != nil {
		writeCodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapCode(code))
}

func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	kind, timetableID, ok := codeParams(w, r)
	if !ok {
		return
	}
	var req verifyCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "missing_code")
		return
	}
	if err := s.codes.Verify(r.Context(), timetableID, kind, strings.TrimSpace(req.Code)); err != nil {
		writeCodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (s *Server) handleRefreshCode(w http.ResponseWriter, r *http.Request) {
	kind, timetableID, ok := codeParams(w, r)
	if !ok {
		return
	}
	var req refreshCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.OldCode) == "" {
		writeError(w, http.StatusBadRequest, "missing_old_code")
		return
	}
	code, err := s.codes.Refresh(r.Context(), timetableID, kind, strings.TrimSpace(req.OldCode))
	if err != nil {
		writeCodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapCode(code))
}

func codeParams(w http.ResponseWriter, r *http.Request) (model.CodeKind, int64, bool) {
	kind, err := model.ParseCodeKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_code_kind")
		return "", 0, false
	}
	timetableID, err := strconv.ParseInt(chi.URLParam(r, "timetableId"), 10, 64)
	if err != nil || timetableID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_timetable_id")
		return "", 0, false
	}
	return kind, timetableID, true
}

func mapCode(code model.RotatingCode) codeResponse {
	return codeResponse{
		TimetableID: code.TimetableID,
		Kind:        string(code.Kind),
		Code:        code.Code,
		ExpiresAt:   code.ExpiresAt.Unix(),
		Validity:    int64(code.ExpiresAt.Sub(code.CreatedAt).Seconds()),
	}
}

func writeValidationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidClaim):
		writeError(w, http.StatusBadRequest, "invalid_claim")
	case errors.Is(err, model.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate_limited")
	case errors.Is(err, model.ErrLocationNotFound):
		writeError(w, http.StatusNotFound, "location_not_found")
	default:
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}

func writeCodeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrTimetableNotFound):
		writeError(w, http.StatusNotFound, "timetable_not_found")
	case errors.Is(err, model.ErrCodeNotFound):
		writeError(w, http.StatusNotFound, "code_not_found")
	case errors.Is(err, model.ErrCodeUsed):
		writeError(w, http.StatusConflict, "code_already_used")
	case errors.Is(err, model.ErrInvalidRefresh):
		writeError(w, http.StatusBadRequest, "invalid_refresh_token")
	default:
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}

// Helpers

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
