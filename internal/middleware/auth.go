package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"phcportal/internal/model"
	"phcportal/internal/policy"
	"phcportal/internal/service"
	"phcportal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	actorKey = "actor"
)

// PrincipalSource loads the current role, status and PHC of an account.
type PrincipalSource interface {
	Principal(ctx context.Context, userID uuid.UUID) (policy.Actor, error)
}

// principalEntry is a cached principal with its expiry
type principalEntry struct {
	actor     policy.Actor
	expiresAt time.Time
}

// Authenticator validates access tokens and attaches the caller's current principal to the
// request. Tokens only identify the account; authorization always uses the stored state.
type Authenticator struct {
	secret        []byte
	principals    PrincipalSource
	policy        *policy.Policy
	secureCookies bool

	cache    sync.Map // uuid.UUID -> principalEntry
	cacheTTL time.Duration
	now      func() time.Time
}

func NewAuthenticator(secret []byte, principals PrincipalSource, pol *policy.Policy, secureCookies bool) *Authenticator {
	return &Authenticator{
		secret:        secret,
		principals:    principals,
		policy:        pol,
		secureCookies: secureCookies,
		cacheTTL:      30 * time.Second,
		now:           time.Now,
	}
}

// SetTokenCookies sets access_token and refresh_token as HttpOnly cookies
func (a *Authenticator) SetTokenCookies(c *gin.Context, accessToken, refreshToken string) {
	a.sameSite(c)
	c.SetCookie(AccessCookie, accessToken, int(service.AccessTokenTTL/time.Second), "/", "", a.secureCookies, true)
	c.SetCookie(RefreshCookie, refreshToken, int(service.RefreshTokenTTL/time.Second), "/", "", a.secureCookies, true)
}

// ClearTokenCookies removes access_token and refresh_token cookies
func (a *Authenticator) ClearTokenCookies(c *gin.Context) {
	a.sameSite(c)
	c.SetCookie(AccessCookie, "", -1, "/", "", a.secureCookies, true)
	c.SetCookie(RefreshCookie, "", -1, "/", "", a.secureCookies, true)
}

// Production (cross-origin) needs SameSite=None + Secure; local development uses Lax.
func (a *Authenticator) sameSite(c *gin.Context) {
	if a.secureCookies {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
}

// Forget drops the cached principal so the next request reloads it.
func (a *Authenticator) Forget(userID uuid.UUID) {
	a.cache.Delete(userID)
}

// tokenFrom tries the cookie first, then the Authorization header. Browsers cannot set
// headers on websocket handshakes, so those may pass ?token= instead.
func tokenFrom(c *gin.Context) (string, error) {
	if tok, err := c.Cookie(AccessCookie); err == nil && tok != "" {
		return tok, nil
	}
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", errors.New("Invalid authorization format. Expected 'Bearer <token>'")
		}
		return parts[1], nil
	}
	if c.IsWebsocket() {
		if tok := c.Query("token"); tok != "" {
			return tok, nil
		}
	}
	return "", errors.New("Authorization is missing")
}

func (a *Authenticator) subject(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return uuid.Nil, errors.New("Invalid or expired token")
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, errors.New("Invalid token claims")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, errors.New("Invalid token subject")
	}
	return id, nil
}

func (a *Authenticator) principal(ctx context.Context, id uuid.UUID) (policy.Actor, error) {
	if entry, ok := a.cache.Load(id); ok {
		cached := entry.(principalEntry)
		if a.now().Before(cached.expiresAt) {
			return cached.actor, nil
		}
	}
	actor, err := a.principals.Principal(ctx, id)
	if err != nil {
		return policy.Actor{}, err
	}
	a.cache.Store(id, principalEntry{actor: actor, expiresAt: a.now().Add(a.cacheTTL)})
	return actor, nil
}

// authenticate aborts the request and returns false when no valid principal can be found.
func (a *Authenticator) authenticate(c *gin.Context) (policy.Actor, bool) {
	tokenString, err := tokenFrom(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return policy.Actor{}, false
	}
	id, err := a.subject(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return policy.Actor{}, false
	}
	actor, err := a.principal(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return policy.Actor{}, false
		}
		log.Printf("[AUTH] failed to load principal %s: %v", id, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify account"))
		return policy.Actor{}, false
	}
	c.Set(actorKey, actor)
	return actor, true
}

// RequireAuth accepts any signed-in account, approved or not. Services decide what a
// pending account may do.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := a.authenticate(c); !ok {
			return
		}
		c.Next()
	}
}

// RequireView additionally checks the role matrix for the resource's read permission.
func (a *Authenticator) RequireView(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := a.authenticate(c)
		if !ok {
			return
		}
		if actor.Status != model.UserStatusApproved || !a.policy.CanView(actor.Role, resource) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}
		c.Next()
	}
}

// OptionalAuth attaches the principal when a valid token is present and never aborts.
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := tokenFrom(c)
		if err == nil {
			if id, err := a.subject(tokenString); err == nil {
				if actor, err := a.principal(c.Request.Context(), id); err == nil {
					c.Set(actorKey, actor)
				}
			}
		}
		c.Next()
	}
}

// CurrentActor returns the principal attached by one of the middlewares above.
func CurrentActor(c *gin.Context) (policy.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return policy.Actor{}, false
	}
	actor, ok := v.(policy.Actor)
	return actor, ok
}
