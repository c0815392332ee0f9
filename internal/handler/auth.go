package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shelfmark/backend/internal/model"
	"github.com/shelfmark/backend/internal/service"
)

const (
	oauthStateCookie = "shelfmark_oauth_state"
	oauthStateMaxAge = 600
)

type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Register godoc
// @Summary Register a new user
// @Description Role defaults to guest. Accepted roles: guest, admin, superadmin.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.RegisterRequest true "New user"
// @Success 201 {object} model.RegisterResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Failure 422 {object} model.ErrorResponse
// @Failure 429 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.svc.Register(c.Request.Context(), service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
		Country:   req.Country,
	})
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model.RegisterResponse{
		Message: "User registered successfully",
		User:    user.Summary(),
		Role:    user.Role,
	})
}

// Login godoc
// @Summary Login with username or email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "Username (or email) and password"
// @Success 200 {object} model.TokenResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 429 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request")
		return
	}

	pair, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.tokenResponse(pair))
}

// Refresh godoc
// @Summary Exchange a refresh token for a new token pair
// @Description The refresh token is sent as the bearer credential and can be used once.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.TokenResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	pair, err := h.svc.Refresh(c.Request.Context(), token)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.tokenResponse(pair))
}

// Logout godoc
// @Summary Revoke the presented access token
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.MessageResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.svc.Logout(c.Request.Context(), token); err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.MessageResponse{Message: "Access token has been revoked"})
}

// WhoAmI godoc
// @Summary Get the current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.UserSummary
// @Failure 401 {object} model.ErrorResponse
// @Router /auth/who-i-am [get]
func (h *AuthHandler) WhoAmI(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		writeError(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	c.JSON(http.StatusOK, user.Summary())
}

// GoogleLogin godoc
// @Summary Start Google sign-in
// @Tags auth
// @Success 302
// @Failure 404 {object} model.ErrorResponse
// @Router /auth/google/login [get]
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	if !h.svc.FederationEnabled() {
		writeAuthError(c, service.ErrFederationDisabled)
		return
	}

	state, err := newOAuthState()
	if err != nil {
		writeAuthError(c, err)
		return
	}

	url, err := h.svc.FederatedLoginURL(state)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, oauthStateMaxAge, "/auth/google", "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusFound, url)
}

// GoogleCallback godoc
// @Summary Finish Google sign-in
// @Description Creates a guest account on first sign-in with a verified email.
// @Tags auth
// @Produce json
// @Param state query string true "OAuth state"
// @Param code query string true "Authorization code"
// @Success 200 {object} model.TokenResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 422 {object} model.ErrorResponse
// @Failure 502 {object} model.ErrorResponse
// @Router /auth/google/callback [get]
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if !h.svc.FederationEnabled() {
		writeAuthError(c, service.ErrFederationDisabled)
		return
	}

	expected, err := c.Cookie(oauthStateCookie)
	state := c.Query("state")
	if err != nil || expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
		writeError(c, http.StatusBadRequest, "invalid oauth state")
		return
	}
	c.SetCookie(oauthStateCookie, "", -1, "/auth/google", "", c.Request.TLS != nil, true)

	if errParam := c.Query("error"); errParam != "" {
		writeError(c, http.StatusBadRequest, "authorization denied: "+errParam)
		return
	}

	pair, err := h.svc.CompleteFederatedLogin(c.Request.Context(), c.Query("code"))
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.tokenResponse(pair))
}

func (h *AuthHandler) tokenResponse(pair service.TokenPair) model.TokenResponse {
	return model.TokenResponse{
		AccessToken:  pair.Access.Token,
		RefreshToken: pair.Refresh.Token,
		TokenType:    "Bearer",
		ExpiresIn:    int64(h.svc.Tokens().AccessTTL().Seconds()),
	}
}

func newOAuthState() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
