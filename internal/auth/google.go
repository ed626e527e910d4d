package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"ceramica-booking/internal/booking"
	"ceramica-booking/internal/logging"
)

const stateCookie = "oauth_state"

// ProfileFunc loads the signed-in user's profile with an access token.
type ProfileFunc func(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token) (booking.User, error)

// GoogleSignIn runs the OAuth2 authorization-code flow against Google and
// dispatches the resulting user to a HandlerSlot.
type GoogleSignIn struct {
	Config  *oauth2.Config
	Slot    *HandlerSlot
	Profile ProfileFunc
	Logger  *zap.Logger
}

// NewGoogleSignIn returns nil when credentials are missing.
func NewGoogleSignIn(clientID, clientSecret, redirectURL string, slot *HandlerSlot, logger *zap.Logger) *GoogleSignIn {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil
	}
	return &GoogleSignIn{
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				googleoauth2.UserinfoEmailScope,
				googleoauth2.UserinfoProfileScope,
			},
			Endpoint: google.Endpoint,
		},
		Slot:    slot,
		Profile: FetchGoogleProfile,
		Logger:  logging.OrNop(logger),
	}
}

// AuthHandler returns the Google consent URL and remembers the state.
func (g *GoogleSignIn) AuthHandler(c *gin.Context) {
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, 600, "/", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, gin.H{
		"auth_url": g.Config.AuthCodeURL(state),
		"state":    state,
	})
}

// CallbackHandler exchanges the code, loads the profile and hands the user to
// the registered sign-in handler.
func (g *GoogleSignIn) CallbackHandler(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code required"})
		return
	}
	expected, err := c.Cookie(stateCookie)
	if err != nil || expected == "" || expected != c.Query("state") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid state"})
		return
	}

	ctx := c.Request.Context()
	tok, err := g.Config.Exchange(ctx, code)
	if err != nil {
		g.Logger.Warn("google code exchange failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to exchange code for token"})
		return
	}
	user, err := g.Profile(ctx, g.Config, tok)
	if err != nil {
		g.Logger.Error("google profile fetch failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load google profile"})
		return
	}

	session, err := g.Slot.Dispatch(ctx, user)
	if err != nil {
		g.Logger.Error("sign-in handler failed", zap.Error(err), zap.String("email", user.Email))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sign-in unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": session,
		"user":  user,
	})
}

// FetchGoogleProfile reads the userinfo endpoint.
func FetchGoogleProfile(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token) (booking.User, error) {
	svc, err := googleoauth2.NewService(ctx, option.WithTokenSource(cfg.TokenSource(ctx, tok)))
	if err != nil {
		return booking.User{}, fmt.Errorf("auth: userinfo service: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return booking.User{}, fmt.Errorf("auth: userinfo: %w", err)
	}
	return NormalizeProfile(info.Name, info.GivenName, info.Email)
}

// NormalizeProfile reduces a provider profile to the one user shape the rest
// of the system accepts.
func NormalizeProfile(name, givenName, email string) (booking.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return booking.User{}, fmt.Errorf("auth: profile has no email")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(givenName)
	}
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	return booking.User{Name: name, Email: email}, nil
}
