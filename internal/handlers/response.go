package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/chemtrack/chemtrack/internal/models"
	"github.com/chemtrack/chemtrack/internal/service"
)

type OTPResponse struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Code       string            `json:"code,omitempty"`
	Phone      string            `json:"phone,omitempty"`
	RetryAfter string            `json:"retry_after,omitempty"`
	ExpiresAt  *time.Time        `json:"expires_at,omitempty"`
	User       *UserResponse     `json:"user,omitempty"`
	Tokens     *models.TokenPair `json:"tokens,omitempty"`
}

type UserResponse struct {
	ID          string      `json:"id"`
	PhoneNumber string      `json:"phone"`
	Email       string      `json:"email,omitempty"`
	FirstName   string      `json:"first_name,omitempty"`
	LastName    string      `json:"last_name,omitempty"`
	Role        models.Role `json:"role"`
	Approved    bool        `json:"is_approved"`
}

func newUserResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:          user.ID,
		PhoneNumber: user.PhoneNumber,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Role:        user.Role,
		Approved:    user.Approved,
	}
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// otpFailure maps a service error onto an HTTP status and a message that is
// safe to show the user. The cause itself is never echoed.
func otpFailure(err error) (int, OTPResponse) {
	resp := OTPResponse{Success: false, Code: service.ErrorKind(err)}

	var rateErr *service.RateLimitedError
	switch {
	case errors.Is(err, service.ErrInvalidPhoneFormat):
		return http.StatusBadRequest, withMessage(resp, "Invalid phone number format. Please use international format (e.g., +1234567890)")
	case errors.As(err, &rateErr):
		resp.RetryAfter = rateErr.RetryAfter
		if rateErr.Scope == service.ScopeDay {
			return http.StatusTooManyRequests, withMessage(resp, "Daily OTP limit exceeded. Please try again tomorrow.")
		}
		return http.StatusTooManyRequests, withMessage(resp, "Too many OTP requests. Please wait before requesting another OTP.")
	case errors.Is(err, service.ErrIdentityNotFound):
		return http.StatusNotFound, withMessage(resp, "No user found with this phone number")
	case errors.Is(err, service.ErrNotApproved):
		return http.StatusForbidden, withMessage(resp, "Account pending approval. Please contact administrator.")
	case errors.Is(err, service.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, withMessage(resp, "Failed to store OTP. Please try again.")
	case errors.Is(err, service.ErrDeliveryFailed):
		return http.StatusBadGateway, withMessage(resp, "Failed to send SMS. Please try again.")
	case errors.Is(err, service.ErrExpiredOrNotFound):
		resp.Code = service.ErrorKind(service.ErrExpiredOrNotFound)
		return http.StatusUnauthorized, withMessage(resp, "OTP expired or not found. Please request a new OTP.")
	case errors.Is(err, service.ErrTooManyAttempts):
		return http.StatusUnauthorized, withMessage(resp, "Too many failed attempts. Please request a new OTP.")
	case errors.Is(err, service.ErrInvalidCode):
		return http.StatusUnauthorized, withMessage(resp, "Invalid OTP code. Please try again.")
	default:
		return http.StatusInternalServerError, withMessage(resp, "Something went wrong. Please try again.")
	}
}

func withMessage(resp OTPResponse, message string) OTPResponse {
	resp.Message = message
	return resp
}

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, status int, code, message string) {
	respondWithJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
