package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/micronest/micronest-api/internal/api"
	"github.com/micronest/micronest-api/internal/token"
)

type SignupRequest struct {
	FullName     string `json:"full_name" binding:"required,max=100"`
	Email        string `json:"email" binding:"required,email,max=255"`
	Username     string `json:"username" binding:"required,min=3,max=32"`
	Password     string `json:"password" binding:"required,min=6,max=72"`
	Phone        string `json:"phone" binding:"required,max=20"`
	Address      string `json:"address" binding:"required,max=255"`
	ProfileImage string `json:"profile_image" binding:"omitempty,max=255"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type SendOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required,numeric,min=4,max=9"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	api.RegisterValidation()
	return &Handler{
		service: service,
		log:     log,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter, requireAuth gin.HandlerFunc) {
	group := r.Group(api.AuthGroup)
	group.POST(api.AuthSignup, h.Signup)
	group.POST(api.AuthRegister, h.Signup)
	group.POST(api.AuthLogin, h.Login)
	group.POST(api.AuthSendOTP, h.SendOTP)
	group.POST(api.AuthVerifyOTP, h.VerifyOTP)
	group.POST(api.AuthRefresh, h.Refresh)
	group.POST(api.AuthLogout, h.Logout)

	r.GET(api.Profile, requireAuth, h.Profile)
}

func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if !h.bind(c, &req) {
		return
	}

	h.log.Info("handling signup request", zap.String("username", req.Username))

	resp, err := h.service.Signup(c.Request.Context(), SignupInput{
		FullName:     req.FullName,
		Email:        req.Email,
		Username:     req.Username,
		Password:     req.Password,
		Phone:        req.Phone,
		Address:      req.Address,
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		h.respondError(c, "signup", err)
		return
	}

	api.Success(c, http.StatusCreated, "Account created successfully", resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, "login", err)
		return
	}

	api.Success(c, http.StatusOK, "Login successful", resp)
}

func (h *Handler) SendOTP(c *gin.Context) {
	var req SendOTPRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.service.SendOTP(c.Request.Context(), req.Email); err != nil {
		h.respondError(c, "send otp", err)
		return
	}

	api.Success(c, http.StatusOK, "OTP sent successfully", nil)
}

func (h *Handler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.service.VerifyOTP(c.Request.Context(), req.Email, req.OTP); err != nil {
		h.respondError(c, "verify otp", err)
		return
	}

	api.Success(c, http.StatusOK, "Email verified successfully", nil)
}

// Refresh takes the refresh token from the Authorization header, falling
// back to a refresh_token field in the body.
func (h *Handler) Refresh(c *gin.Context) {
	raw, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		var req RefreshRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				api.Error(c, http.StatusBadRequest, "Invalid request body")
				return
			}
		}
		raw = req.RefreshToken
	}
	if raw == "" {
		api.Error(c, http.StatusUnauthorized, "Refresh token required")
		return
	}

	resp, err := h.service.Refresh(c.Request.Context(), raw)
	if err != nil {
		h.respondError(c, "refresh", err)
		return
	}

	api.Success(c, http.StatusOK, "Token refreshed successfully", resp)
}

func (h *Handler) Logout(c *gin.Context) {
	raw, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		api.Error(c, http.StatusUnauthorized, "Authorization token required")
		return
	}

	if err := h.service.Logout(c.Request.Context(), raw); err != nil {
		h.respondError(c, "logout", err)
		return
	}

	api.Success(c, http.StatusOK, "Logged out successfully", nil)
}

func (h *Handler) Profile(c *gin.Context) {
	userID, err := GetUserFromContext(c.Request.Context())
	if err != nil {
		api.Error(c, http.StatusUnauthorized, "Authorization token required")
		return
	}

	user, err := h.service.Profile(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, "profile", err)
		return
	}

	api.Success(c, http.StatusOK, "Profile retrieved successfully", user)
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.log.Warn("invalid request",
			zap.String("path", c.Request.URL.Path),
			zap.String("error", err.Error()))
		api.Error(c, http.StatusBadRequest, api.ValidationMessage(err))
		return false
	}
	return true
}

func (h *Handler) respondError(c *gin.Context, op string, err error) {
	status, message := classifyError(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(op+" failed", zap.Error(err))
	} else {
		h.log.Warn(op+" rejected", zap.Error(err))
	}
	api.Error(c, status, message)
}

// classifyError maps service errors onto an HTTP status and a client-safe
// message. Anything unrecognised is reported as an internal error.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, validationDetail(err)
	case errors.Is(err, ErrDuplicateEmail):
		return http.StatusBadRequest, "Email already registered"
	case errors.Is(err, ErrDuplicateUsername):
		return http.StatusBadRequest, "Username already taken"
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, ErrEmailNotVerified):
		return http.StatusUnauthorized, "Please verify your email with OTP first"
	case errors.Is(err, ErrOTPAlreadyUsed):
		return http.StatusBadRequest, "OTP has already been used. Please request a new one."
	case errors.Is(err, ErrOTPExpired):
		return http.StatusBadRequest, "OTP has expired. Please request a new one."
	case errors.Is(err, ErrOTPInvalid):
		return http.StatusBadRequest, "Invalid OTP. Please check the code and try again."
	case errors.Is(err, token.ErrMalformedToken):
		return http.StatusUnauthorized, "Malformed token"
	case errors.Is(err, token.ErrInvalidSignature):
		return http.StatusUnauthorized, "Invalid token signature"
	case errors.Is(err, token.ErrWrongTokenType):
		return http.StatusUnauthorized, "Wrong token type"
	case errors.Is(err, token.ErrTokenExpired):
		return http.StatusUnauthorized, "Token has expired"
	case errors.Is(err, ErrSessionRevoked):
		return http.StatusUnauthorized, "Refresh token not found or expired"
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, ErrNotificationFailed):
		return http.StatusBadGateway, "Failed to send OTP email"
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusInternalServerError, "Service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func validationDetail(err error) string {
	detail := strings.TrimPrefix(err.Error(), ErrValidation.Error()+": ")
	if detail == err.Error() || detail == "" {
		return "Invalid request"
	}
	return strings.ToUpper(detail[:1]) + detail[1:]
}
