package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/erp/refunds/internal/infrastructure/auth"
	"github.com/erp/refunds/internal/infrastructure/logger"
	"github.com/erp/refunds/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Actor context keys and headers
const (
	JWTClaimsKey  = "jwt_claims"
	ActorIDKey    = "actor_id"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
	// UserIDHeader identifies the operator when bearer tokens are not required
	UserIDHeader = "X-User-ID"
)

// ActorConfig holds configuration for the actor middleware
type ActorConfig struct {
	// JWTService validates bearer tokens; nil rejects any bearer token
	JWTService *auth.JWTService
	// Required rejects requests without a valid bearer token
	Required bool
	// SkipPaths are paths that don't resolve an actor
	SkipPaths []string
	Logger    *zap.Logger
}

// Actor resolves the operator behind a request from a bearer token or, when tokens
// are optional, from the X-User-ID header. Requests without either pass through
// with no actor; handlers that mutate state reject them.
func Actor(cfg ActorConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip {
				c.Next()
				return
			}
		}

		authHeader := c.GetHeader(AuthHeaderKey)
		switch {
		case authHeader != "":
			claims, err := validateBearer(cfg.JWTService, authHeader)
			if err != nil {
				log.Warn("JWT authentication failed",
					zap.Error(err),
					zap.String("path", path),
					zap.String("request_id", GetRequestID(c)),
				)
				abortUnauthorized(c, err)
				return
			}
			actorID, _ := claims.UserUUID()
			c.Set(JWTClaimsKey, claims)
			setActor(c, actorID)

		case cfg.Required:
			abortUnauthorized(c, auth.ErrInvalidToken)
			return

		default:
			header := c.GetHeader(UserIDHeader)
			if header == "" {
				break
			}
			actorID, err := uuid.Parse(header)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
					dto.ErrCodeBadRequest, "Invalid X-User-ID header", GetRequestID(c)))
				return
			}
			setActor(c, actorID)
		}

		c.Next()
	}
}

func validateBearer(svc *auth.JWTService, header string) (*auth.Claims, error) {
	if !strings.HasPrefix(header, BearerPrefix) {
		return nil, auth.ErrInvalidToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	if token == "" || svc == nil {
		return nil, auth.ErrInvalidToken
	}
	return svc.ValidateToken(token)
}

func setActor(c *gin.Context, actorID uuid.UUID) {
	c.Set(ActorIDKey, actorID)
	ctx, _ := logger.WithActorID(c.Request.Context(), logger.FromContext(c.Request.Context()), actorID.String())
	c.Request = c.Request.WithContext(ctx)
}

func abortUnauthorized(c *gin.Context, err error) {
	code, message := dto.ErrCodeUnauthorized, "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, message = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		message = "Token is not yet valid"
	case errors.Is(err, auth.ErrMissingUserID), errors.Is(err, auth.ErrInvalidClaims):
		message = "Token does not identify a user"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}

// GetActorID returns the actor resolved for the request
func GetActorID(c *gin.Context) (uuid.UUID, bool) {
	if v, exists := c.Get(ActorIDKey); exists {
		if id, ok := v.(uuid.UUID); ok && id != uuid.Nil {
			return id, true
		}
	}
	return uuid.Nil, false
}

// GetJWTClaims retrieves JWT claims from gin.Context
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if claims, exists := c.Get(JWTClaimsKey); exists {
		if jwtClaims, ok := claims.(*auth.Claims); ok {
			return jwtClaims
		}
	}
	return nil
}
