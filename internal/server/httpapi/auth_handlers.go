package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/apikit/internal/common"
	"github.com/dmitrijs2005/apikit/internal/server/apierr"
	"github.com/dmitrijs2005/apikit/internal/server/envelope"
	"github.com/dmitrijs2005/apikit/internal/server/services"
	"github.com/gin-gonic/gin"
)

// AuthServicer is the part of *services.AuthService used by the handlers.
type AuthServicer interface {
	TokenAuthenticator
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Verify(ctx context.Context, token string) error
	Logout(ctx context.Context, refreshToken string) error
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ConfirmPasswordReset(ctx context.Context, in services.PasswordResetConfirm) error
	VerifyEmail(ctx context.Context, uid, token string) error
}

const (
	msgLoginMissing     = "Must include 'email' and 'password'."
	msgLoginInvalid     = "Unable to log in with provided credentials."
	msgLoginDisabled    = "User account is disabled."
	msgNoActiveAccount  = "No active account found with the given credentials"
	msgTokenBlacklisted = "Token is blacklisted"
	msgTokenWrongType   = "Token has wrong type"
	msgInvalidUID       = "Invalid UID"
	msgInvalidToken     = "Invalid token"
)

var authActions = actionTable{
	"login":         {permission: allowAny, input: func() any { return &LoginRequest{} }},
	"token_obtain":  {permission: allowAny, input: func() any { return &TokenObtainRequest{} }},
	"token_refresh": {permission: allowAny, input: func() any { return &RefreshRequest{} }},
	"token_verify":  {permission: allowAny, input: func() any { return &VerifyRequest{} }},
	"logout":        {permission: isAuthenticated, input: func() any { return &LogoutRequest{} }},
	"reset_request": {permission: allowAny, input: func() any { return &PasswordResetRequest{} }},
	"reset_confirm": {permission: allowAny, input: func() any { return &PasswordResetConfirmRequest{} }},
	"email_verify":  {permission: allowAny, input: func() any { return &EmailVerificationRequest{} }},
}

type AuthHandler struct {
	auth AuthServicer
}

func NewAuthHandler(a AuthServicer) *AuthHandler {
	return &AuthHandler{auth: a}
}

// routes returns the auth endpoints, relative to /auth.
func (h *AuthHandler) routes() []route {
	return []route{
		{http.MethodPost, "/login/", "login", h.Login},
		{http.MethodPost, "/token/", "token_obtain", h.ObtainToken},
		{http.MethodPost, "/token/refresh/", "token_refresh", h.RefreshToken},
		{http.MethodPost, "/token/verify/", "token_verify", h.VerifyToken},
		{http.MethodPost, "/logout/", "logout", h.Logout},
		{http.MethodPost, "/password/reset/", "reset_request", h.RequestPasswordReset},
		{http.MethodPost, "/password/reset/confirm/", "reset_confirm", h.ConfirmPasswordReset},
		{http.MethodPost, "/email/verify/", "email_verify", h.VerifyEmail},
	}
}

// sensitiveAuthActions sit behind the stricter credential throttle.
var sensitiveAuthActions = map[string]bool{
	"login":         true,
	"token_obtain":  true,
	"reset_request": true,
	"reset_confirm": true,
}

func (h *AuthHandler) Login(c *gin.Context) {
	req := validated[*LoginRequest](c)
	if req.Email == "" || req.Password == "" {
		c.Error(apierr.NonField(msgLoginMissing))
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorUnauthorized):
			c.Error(apierr.NonField(msgLoginInvalid))
		case errors.Is(err, common.ErrInactiveUser):
			c.Error(apierr.NonField(msgLoginDisabled))
		default:
			c.Error(err)
		}
		return
	}

	c.JSON(http.StatusOK, envelope.Success(loginResponse(res), "Login successful"))
}

// ObtainToken answers with the bare token body; the envelope is added by
// the response middleware.
func (h *AuthHandler) ObtainToken(c *gin.Context) {
	req := validated[*TokenObtainRequest](c)

	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) || errors.Is(err, common.ErrInactiveUser) {
			c.Error(apierr.New(http.StatusUnauthorized, msgNoActiveAccount))
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, loginResponse(res))
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	req := validated[*RefreshRequest](c)

	pair, err := h.auth.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		c.Error(tokenError(err))
		return
	}

	c.JSON(http.StatusOK, envelope.Success(TokenPairResponse{Refresh: pair.RefreshToken, Access: pair.AccessToken}, "Token refreshed successfully"))
}

func (h *AuthHandler) VerifyToken(c *gin.Context) {
	req := validated[*VerifyRequest](c)

	if err := h.auth.Verify(c.Request.Context(), req.Token); err != nil {
		c.Error(tokenError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	req := validated[*LogoutRequest](c)

	if err := h.auth.Logout(c.Request.Context(), req.Refresh); err != nil {
		c.Error(apierr.BadRequest(tokenMessage(err)))
		return
	}

	c.JSON(http.StatusOK, envelope.Success(nil, "Logout successful"))
}

func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	req := validated[*PasswordResetRequest](c)

	link, err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		c.Error(err)
		return
	}

	var data any
	if link != "" {
		data = gin.H{"reset_link": link}
	}
	c.JSON(http.StatusOK, envelope.Success(data, "Password reset email sent"))
}

func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	req := validated[*PasswordResetConfirmRequest](c)

	err := h.auth.ConfirmPasswordReset(c.Request.Context(), services.PasswordResetConfirm{
		UID:                req.UID,
		Token:              req.Token,
		NewPassword:        req.NewPassword,
		NewPasswordConfirm: req.NewPasswordConfirm,
	})
	if err != nil {
		c.Error(linkError(err))
		return
	}

	c.JSON(http.StatusOK, envelope.Success(nil, "Password reset successful"))
}

func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	req := validated[*EmailVerificationRequest](c)

	if err := h.auth.VerifyEmail(c.Request.Context(), req.UID, req.Token); err != nil {
		c.Error(linkError(err))
		return
	}

	c.JSON(http.StatusOK, envelope.Success(nil, "Email verified successfully"))
}

func loginResponse(res *services.LoginResult) LoginResponse {
	return LoginResponse{
		Refresh: res.Tokens.RefreshToken,
		Access:  res.Tokens.AccessToken,
		User:    newUserSummary(res.User),
	}
}

// tokenMessage is the client-facing text of a token failure.
func tokenMessage(err error) string {
	switch {
	case errors.Is(err, common.ErrTokenBlacklisted):
		return msgTokenBlacklisted
	case errors.Is(err, common.ErrWrongTokenType):
		return msgTokenWrongType
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		return apierr.InvalidToken().Detail
	case errors.Is(err, common.ErrInactiveUser):
		return "User is inactive"
	default:
		return err.Error()
	}
}

func tokenError(err error) error {
	switch {
	case errors.Is(err, common.ErrTokenBlacklisted),
		errors.Is(err, common.ErrWrongTokenType),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return apierr.InvalidToken(tokenMessage(err))
	case errors.Is(err, common.ErrInactiveUser):
		return authError(err)
	default:
		return err
	}
}

func linkError(err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidUID):
		return apierr.BadRequest(msgInvalidUID)
	case errors.Is(err, common.ErrInvalidToken):
		return apierr.BadRequest(msgInvalidToken)
	default:
		return err
	}
}
