package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/projexia/projexia/internal/api/middleware"
	"github.com/projexia/projexia/internal/core/domain"
	"github.com/projexia/projexia/internal/core/ports"
)

const (
	oauthStateCookie = "projexia_oauth_state"
	oauthCookiePath  = "/auth/google"
	oauthCookieTTL   = 10 * time.Minute
)

// OAuthHandler serves the browser redirect flow for Google sign-in. A nil
// OAuthService means the provider is not configured.
type OAuthHandler struct {
	oauth       ports.OAuthService
	auth        ports.AuthService
	frontendURL string
	log         zerolog.Logger
}

func NewOAuthHandler(oauth ports.OAuthService, auth ports.AuthService, frontendURL string, log zerolog.Logger) *OAuthHandler {
	return &OAuthHandler{
		oauth:       oauth,
		auth:        auth,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		log:         log,
	}
}

// Begin redirects the browser to the Google consent screen. The state is
// also pinned to the browser in an HttpOnly cookie checked by Callback.
//
// @Summary      Start Google sign-in
// @Tags         auth
// @Success      307
// @Failure      503  {object}  errorResponse
// @Router       /auth/google [get]
func (h *OAuthHandler) Begin(c echo.Context) error {
	if h.oauth == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "google sign-in is not configured")
	}
	target, state, err := h.oauth.Begin(c.Request().Context())
	if err != nil {
		return err
	}
	c.SetCookie(h.stateCookie(c, state, int(oauthCookieTTL.Seconds())))
	return c.Redirect(http.StatusTemporaryRedirect, target)
}

// Callback completes Google sign-in and hands the token to the frontend in
// the URL fragment.
//
// @Summary      Google sign-in callback
// @Tags         auth
// @Param        state  query  string  true  "OAuth state"
// @Param        code   query  string  true  "Authorization code"
// @Success      307
// @Router       /auth/google/callback [get]
func (h *OAuthHandler) Callback(c echo.Context) error {
	if h.oauth == nil {
		return h.loginRedirect(c, "oauth_disabled")
	}
	pinned, _ := c.Cookie(oauthStateCookie)
	c.SetCookie(h.stateCookie(c, "", -1))

	if reason := c.QueryParam("error"); reason != "" {
		return h.loginRedirect(c, reason)
	}

	state := c.QueryParam("state")
	if pinned == nil || pinned.Value == "" || subtle.ConstantTimeCompare([]byte(pinned.Value), []byte(state)) != 1 {
		h.log.Warn().Msg("google callback state does not match the browser cookie")
		return h.loginRedirect(c, "invalid_state")
	}

	res, err := h.oauth.Complete(c.Request().Context(), state, c.QueryParam("code"))
	if err != nil {
		reason := "oauth_failed"
		if errors.Is(err, domain.ErrInvalidCredentials) {
			reason = "invalid_state"
		} else {
			h.log.Error().Err(err).Msg("google sign-in failed")
		}
		return h.loginRedirect(c, reason)
	}

	fragment := url.Values{"token": {res.Token}}.Encode()
	return c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"/dashboard#"+fragment)
}

// Logout revokes the bearer token when one is present and sends the browser
// back to the login page.
//
// @Summary      Browser logout
// @Tags         auth
// @Success      307
// @Router       /auth/logout [get]
func (h *OAuthHandler) Logout(c echo.Context) error {
	if jti, exp := middleware.TokenFrom(c); jti != "" {
		if err := h.auth.Logout(c.Request().Context(), jti, exp); err != nil {
			h.log.Warn().Err(err).Msg("failed to revoke token on browser logout")
		}
	}
	return c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"/login")
}

// stateCookie builds the state cookie; maxAge < 0 deletes it.
func (h *OAuthHandler) stateCookie(c echo.Context, state string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     oauthCookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *OAuthHandler) loginRedirect(c echo.Context, reason string) error {
	q := url.Values{"error": {reason}}.Encode()
	return c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"/login?"+q)
}
