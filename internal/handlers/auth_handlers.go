package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/chemtrack/chemtrack/internal/middleware"
	"github.com/chemtrack/chemtrack/internal/models"
	"github.com/chemtrack/chemtrack/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// OTPService is the login-code flow the handlers drive.
type OTPService interface {
	Issue(ctx context.Context, phone string) (*service.IssueResult, error)
	Verify(ctx context.Context, phone, code string) (*models.User, error)
}

type AuthHandlers struct {
	otpService          OTPService
	jwtService          *service.JWTService
	refreshTokenService *service.RefreshTokenService
	validate            *validator.Validate
	logger              *logrus.Logger
}

func NewAuthHandlers(
	otpService OTPService,
	jwtService *service.JWTService,
	refreshTokenService *service.RefreshTokenService,
	logger *logrus.Logger,
) *AuthHandlers {
	return &AuthHandlers{
		otpService:          otpService,
		jwtService:          jwtService,
		refreshTokenService: refreshTokenService,
		validate:            validator.New(validator.WithRequiredStructEnabled()),
		logger:              logger,
	}
}

type SendOTPRequest struct {
	Phone string `json:"phone" validate:"required,max=32"`
}

type VerifyOTPRequest struct {
	Phone string `json:"phone" validate:"required,max=32"`
	Code  string `json:"code" validate:"required,max=16"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// decodeRequest reads a JSON body into T and validates it.
func decodeRequest[T any](r *http.Request, v *validator.Validate) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, false
	}
	return req, v.Struct(req) == nil
}

var invalidOTPRequest = OTPResponse{Code: "INVALID_REQUEST", Message: "Invalid request body"}

// writeOTPFailure renders a service error; only server-side failures are logged.
func (h *AuthHandlers) writeOTPFailure(w http.ResponseWriter, err error, action string) {
	status, resp := otpFailure(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"action":     action,
			"error_kind": resp.Code,
		}).Error("OTP request failed")
	}
	respondWithJSON(w, status, resp)
}

func (h *AuthHandlers) SendOTP(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest[SendOTPRequest](r, h.validate)
	if !ok {
		respondWithJSON(w, http.StatusBadRequest, invalidOTPRequest)
		return
	}

	result, err := h.otpService.Issue(r.Context(), req.Phone)
	if err != nil {
		h.writeOTPFailure(w, err, "send")
		return
	}

	respondWithJSON(w, http.StatusOK, OTPResponse{
		Success:   true,
		Message:   "OTP sent successfully",
		Phone:     result.Phone,
		ExpiresAt: &result.ExpiresAt,
	})
}

func (h *AuthHandlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest[VerifyOTPRequest](r, h.validate)
	if !ok {
		respondWithJSON(w, http.StatusBadRequest, invalidOTPRequest)
		return
	}

	user, err := h.otpService.Verify(r.Context(), req.Phone, strings.TrimSpace(req.Code))
	if err != nil {
		h.writeOTPFailure(w, err, "verify")
		return
	}

	tokens, err := h.issueTokens(r.Context(), service.IdentityOf(user), "")
	if err != nil {
		h.writeTokenFailure(w, err, "")
		return
	}

	respondWithJSON(w, http.StatusOK, OTPResponse{
		Success: true,
		Message: "OTP verification successful",
		User:    newUserResponse(user),
		Tokens:  tokens,
	})
}

func (h *AuthHandlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest[RefreshTokenRequest](r, h.validate)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "MISSING_TOKEN", "Refresh token is required")
		return
	}

	claims, detail := h.presentedRefreshToken(r.Context(), req.RefreshToken)
	if detail != nil {
		respondWithError(w, http.StatusUnauthorized, detail.Code, detail.Message)
		return
	}

	record, err := h.refreshTokenService.Consume(r.Context(), claims.ID)
	switch {
	case errors.Is(err, service.ErrRefreshTokenNotFound):
		h.logger.WithField("user_id", claims.Subject).Warn("Refresh token not tracked, rejecting rotation")
		respondWithError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid refresh token")
		return
	case errors.Is(err, service.ErrRefreshTokenRevoked):
		respondWithError(w, http.StatusUnauthorized, "TOKEN_REVOKED", "Refresh token has been revoked")
		return
	case err != nil:
		h.writeTokenFailure(w, err, "")
		return
	}

	tokens, err := h.issueTokens(r.Context(), claims.Identity(), record.FamilyID)
	if err != nil {
		h.writeTokenFailure(w, err, record.FamilyID)
		return
	}

	respondWithJSON(w, http.StatusOK, tokens)
}

// presentedRefreshToken verifies raw as an unrevoked refresh token.
func (h *AuthHandlers) presentedRefreshToken(ctx context.Context, raw string) (*service.Claims, *ErrorDetail) {
	claims, err := h.jwtService.VerifyToken(raw)
	if err != nil {
		return nil, &ErrorDetail{Code: "INVALID_TOKEN", Message: "Invalid refresh token"}
	}
	if claims.Type != service.TokenTypeRefresh {
		return nil, &ErrorDetail{Code: "INVALID_TOKEN_TYPE", Message: "Token is not a refresh token"}
	}
	if revoked, err := h.refreshTokenService.IsRevoked(ctx, claims.ID); err == nil && revoked {
		return nil, &ErrorDetail{Code: "TOKEN_REVOKED", Message: "Refresh token has been revoked"}
	}
	return claims, nil
}

func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
		return
	}

	// Body is optional; without a refresh token there is nothing to revoke.
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.RefreshToken != "" {
		refresh, err := h.jwtService.VerifyToken(req.RefreshToken)
		switch {
		case err != nil || refresh.Type != service.TokenTypeRefresh:
			// not a usable refresh token
		case refresh.Subject != caller.Subject:
			h.logger.WithField("user_id", caller.Subject).Warn("Logout presented another user's refresh token")
		default:
			if err := h.refreshTokenService.Revoke(r.Context(), refresh.ID); err != nil {
				h.logger.WithError(err).Debug("Refresh token not revoked on logout")
			}
		}
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out successfully",
	})
}

func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"id":    claims.Subject,
		"phone": claims.Phone,
		"role":  string(claims.Role),
	})
}

// issueTokens mints a pair and tracks its refresh half. An untracked refresh
// token could never be rotated, so a tracking failure fails the issue.
func (h *AuthHandlers) issueTokens(ctx context.Context, id service.Identity, familyID string) (*models.TokenPair, error) {
	tokens, familyID, err := h.jwtService.GenerateTokenPair(id, familyID)
	if err != nil {
		return nil, err
	}

	claims, err := h.jwtService.VerifyToken(tokens.RefreshToken)
	if err != nil {
		return nil, err
	}

	if err := h.refreshTokenService.Store(ctx, claims.ID, id, familyID, claims.ExpiresAt.Time); err != nil {
		return nil, err
	}

	return tokens, nil
}

func (h *AuthHandlers) writeTokenFailure(w http.ResponseWriter, err error, familyID string) {
	log := h.logger.WithError(err)
	if familyID != "" {
		log = log.WithField("family_id", familyID)
	}

	if errors.Is(err, service.ErrTokenStoreUnavailable) {
		log.Error("Token store unavailable")
		respondWithError(w, http.StatusServiceUnavailable, "TOKEN_STORE_UNAVAILABLE", "Token service temporarily unavailable. Please try again.")
		return
	}
	log.Error("Token generation failed")
	respondWithError(w, http.StatusInternalServerError, "TOKEN_GENERATION_FAILED", "Failed to generate tokens")
}
