package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aichat/chat-gateway/internal/api/metrics"
	"github.com/aichat/chat-gateway/internal/core/domain"
	"github.com/aichat/chat-gateway/internal/pkg/sanitize"
)

// AuthHandler exposes the credential lifecycle of the caller's session
// context: login, signup, confirmation, password recovery, logout.
type AuthHandler struct{}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Credential domain.Credential `json:"credential"`
}

type signUpRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type signUpResponse struct {
	UserSub   string `json:"user_sub"`
	Confirmed bool   `json:"confirmed"`
}

type confirmRequest struct {
	Username string `json:"username" validate:"required"`
	Code     string `json:"code"     validate:"required"`
}

type forgotPasswordRequest struct {
	Username string `json:"username" validate:"required"`
}

type confirmForgotPasswordRequest struct {
	Username    string `json:"username"     validate:"required"`
	Code        string `json:"code"         validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// Login authenticates against the identity provider and installs the
// credential on the session context.
//
// @Summary      Log in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	sc, err := ctxSession(c)
	if err != nil {
		return err
	}

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	cred, err := sc.Credentials.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "error").Inc()
		return err
	}

	metrics.AuthAttemptsTotal.WithLabelValues("login", "ok").Inc()
	return c.JSON(http.StatusOK, loginResponse{Credential: cred})
}

// SignUp registers a new account; the account still needs email confirmation.
//
// @Summary      Sign up
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signUpRequest  true  "Registration details"
// @Success      201   {object}  signUpResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /auth/signup [post]
func (h *AuthHandler) SignUp(c echo.Context) error {
	sc, err := ctxSession(c)
	if err != nil {
		return err
	}

	var req signUpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// Fail fast locally before the provider round trip.
	if err := sanitize.Username(req.Username); err != nil {
		return err
	}
	if err := sanitize.Password(req.Password); err != nil {
		return err
	}

	res, err := sc.Credentials.SignUp(c.Request().Context(), req.Username, req.Email, req.Password)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("signup", "error").Inc()
		return err
	}

	metrics.AuthAttemptsTotal.WithLabelValues("signup", "ok").Inc()
	return c.JSON(http.StatusCreated, signUpResponse{UserSub: res.UserSub, Confirmed: res.Confirmed})
}

// Confirm completes registration with the emailed verification code.
//
// @Summary      Confirm sign up
// @Tags         auth
// @Accept       json
// @Param        body  body  confirmRequest  true  "Username and verification code"
// @Success      204
// @Failure      400   {object}  errorResponse
// @Router       /auth/confirm [post]
func (h *AuthHandler) Confirm(c echo.Context) error {
	sc, err := ctxSession(c)
	if err != nil {
		return err
	}

	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := sc.Credentials.ConfirmSignUp(c.Request().Context(), req.Username, req.Code); err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("confirm", "error").Inc()
		return err
	}

	metrics.AuthAttemptsTotal.WithLabelValues("confirm", "ok").Inc()
	return c.NoContent(http.StatusNoContent)
}

// ForgotPassword starts the password recovery flow.
//
// @Summary      Request a password reset
// @Tags         auth
// @Accept       json
// @Param        body  body  forgotPasswordRequest  true  "Username"
// @Success      202
// @Failure      400   {object}  errorResponse
// @Router       /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	sc, err := ctxSession(c)
	if err != nil {
		return err
	}

	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := sc.Credentials.ForgotPassword(c.Request().Context(), req.Username); err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("forgot_password", "error").Inc()
		return err
	}

	metrics.AuthAttemptsTotal.WithLabelValues("forgot_password", "ok").Inc()
	return c.NoContent(http.StatusAccepted)
}

// ConfirmForgotPassword completes password recovery with the emailed code.
//
// @Summary      Complete a password reset
// @Tags         auth
// @Accept       json
// @Param        body  body  confirmForgotPasswordRequest  true  "Username, code, and new password"
// @Success      204
// @Failure      400   {object}  errorResponse
// @Router       /auth/confirm-forgot-password [post]
func (h *AuthHandler) ConfirmForgotPassword(c echo.Context) error {
	sc, err := ctxSession(c)
	if err != nil {
		return err
	}

	var req confirmForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := sanitize.Password(req.NewPassword); err != nil {
		return err
	}

	if err := sc.Credentials.ConfirmForgotPassword(c.Request().Context(), req.Username, req.Code, req.NewPassword); err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("confirm_forgot_password", "error").Inc()
		return err
	}

	metrics.AuthAttemptsTotal.WithLabelValues("confirm_forgot_password", "ok").Inc()
	return c.NoContent(http.StatusNoContent)
}

// Logout clears the credential. The session context survives as guest.
//
// @Summary      Log out
// @Tags         auth
// @Success      204
// @Failure      401   {object}  errorResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	sc, err := ctxSession(c)
	if err != nil {
		return err
	}

	sc.Credentials.Logout()
	metrics.AuthAttemptsTotal.WithLabelValues("logout", "ok").Inc()
	return c.NoContent(http.StatusNoContent)
}
