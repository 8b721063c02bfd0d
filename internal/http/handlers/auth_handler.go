// Auth and profile HTTP handlers.
//
//   - POST /auth/signup      (register, sets session cookie)
//   - POST /auth/signin      (credentials, sets session cookie)
//   - POST /auth/signout     (revoke, always clears the cookie)
//   - POST /auth/refresh     (rotate the token)
//   - GET  /me               (current user profile)
//   - PUT  /me/profile       (update name/phone)
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/tributaria/internal/auth"
	"github.com/tbourn/tributaria/internal/domain"
	"github.com/tbourn/tributaria/internal/http/middleware"
)

// SignUpRequest is the registration payload.
type SignUpRequest struct {
	Email    string `json:"email"     binding:"required" example:"ana@example.com"`
	Password string `json:"password"  binding:"required" example:"Segredo123"`
	FullName string `json:"full_name" example:"Ana Souza"`
	Phone    string `json:"phone"     example:"(11) 98765-4321"`
}

// SignInRequest is the credentials payload.
type SignInRequest struct {
	Email    string `json:"email"    binding:"required" example:"ana@example.com"`
	Password string `json:"password" binding:"required" example:"Segredo123"`
}

// UpdateProfileRequest changes only the fields present.
type UpdateProfileRequest struct {
	FullName *string `json:"full_name" example:"Ana Clara Souza"`
	Phone    *string `json:"phone"     example:"(21) 3333-4444"`
}

// MeResponse describes the authenticated caller.
type MeResponse struct {
	UserID  string          `json:"user_id"`
	Profile *domain.Profile `json:"profile,omitempty"`
}

func (h *Handlers) setSessionCookie(c *gin.Context, s *auth.Session) {
	maxAge := int(time.Until(s.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, s.Token, maxAge, h.cookie.Path, "", h.cookie.Secure, true)
}

func (h *Handlers) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, h.cookie.Path, "", h.cookie.Secure, true)
}

// SignUp godoc
// @ID          signUp
// @Summary     Register an account
// @Description Creates the account and its profile, then signs in.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.SignUpRequest  true  "Registration"
// @Success     201  {object}  auth.Session
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     409  {object}  handlers.ErrorResponse  "Email already registered"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /auth/signup [post]
func (h *Handlers) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password required")
		return
	}
	s, err := h.authSvc.SignUp(c.Request.Context(), auth.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	h.setSessionCookie(c, s)
	ok(c, http.StatusCreated, s)
}

// SignIn godoc
// @ID          signIn
// @Summary     Sign in
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.SignInRequest  true  "Credentials"
// @Success     200  {object}  auth.Session
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid credentials"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /auth/signin [post]
func (h *Handlers) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password required")
		return
	}
	s, err := h.authSvc.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	h.setSessionCookie(c, s)
	ok(c, http.StatusOK, s)
}

// SignOut godoc
// @ID          signOut
// @Summary     Sign out
// @Description Revokes the current token. The cookie is cleared and 204 returned even when revocation fails.
// @Tags        Auth
// @Success     204  {string}  string  "No Content"
// @Router      /auth/signout [post]
func (h *Handlers) SignOut(c *gin.Context) {
	token := middleware.TokenFrom(c, h.cookie.Name)
	h.clearSessionCookie(c)
	if token != "" {
		if err := h.authSvc.SignOut(c.Request.Context(), token); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("sign out: revoke failed")
		}
	}
	noContent(c)
}

// Refresh godoc
// @ID          refreshToken
// @Summary     Rotate the session token
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  auth.Session
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid or expired session"
// @Router      /auth/refresh [post]
func (h *Handlers) Refresh(c *gin.Context) {
	token := middleware.TokenFrom(c, h.cookie.Name)
	if token == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}
	s, err := h.authSvc.Refresh(c.Request.Context(), token)
	if err != nil {
		writeError(c, err)
		return
	}
	h.setSessionCookie(c, s)
	ok(c, http.StatusOK, s)
}

// Me godoc
// @ID          me
// @Summary     Current user
// @Tags        Profile
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.MeResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /me [get]
func (h *Handlers) Me(c *gin.Context) {
	uid := middleware.UserID(c)
	p, err := h.authSvc.CurrentProfile(c.Request.Context(), uid)
	if err != nil && !errors.Is(err, auth.ErrProfileNotFound) {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, MeResponse{UserID: uid, Profile: p})
}

// UpdateProfile godoc
// @ID          updateProfile
// @Summary     Update the profile
// @Tags        Profile
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.UpdateProfileRequest  true  "Fields to change"
// @Success     200  {object}  domain.Profile
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     404  {object}  handlers.ErrorResponse  "Profile not found"
// @Router      /me/profile [put]
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.FullName == nil && req.Phone == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "nothing to update")
		return
	}
	p, err := h.authSvc.UpdateProfile(c.Request.Context(), middleware.UserID(c), auth.ProfileUpdate{
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}
