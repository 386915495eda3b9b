package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/suraksha-labs/suraksha/backend/internal/auth"
	"github.com/suraksha-labs/suraksha/backend/internal/ratelimit"
	"github.com/suraksha-labs/suraksha/backend/internal/stories"
	"github.com/suraksha-labs/suraksha/backend/internal/users"
	"go.uber.org/zap"
)

const (
	userIDContextKey      = "suraksha_user_id"
	demographicContextKey = "suraksha_demographic"

	legacyTokenHeader = "X-Auth-Token"
)

var (
	errMissingTokenIssuer   = errors.New("token issuer dependency required")
	errMissingUsersService  = errors.New("users service dependency required")
	errMissingStoryService  = errors.New("stories service dependency required")
	errMissingLimiter       = errors.New("rate limiter dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// Dependencies wires the HTTP layer to the domain services.
type Dependencies struct {
	Tokens       *auth.TokenIssuer
	UsersService *users.Service
	StoryService *stories.Service
	Limiter      *ratelimit.Limiter
	ClientURL    string
	Production   bool
	Logger       *zap.Logger
}

// NewHTTPHandler builds the gin engine with middleware and all API routes.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Tokens == nil {
		return nil, errMissingTokenIssuer
	}
	if deps.UsersService == nil {
		return nil, errMissingUsersService
	}
	if deps.StoryService == nil {
		return nil, errMissingStoryService
	}
	if deps.Limiter == nil {
		return nil, errMissingLimiter
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(deps)))

	handler := &httpHandler{
		tokens:  deps.Tokens,
		users:   deps.UsersService,
		stories: deps.StoryService,
		limiter: deps.Limiter,
		logger:  logger,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/signup", handler.handleSignup)
	authGroup.POST("/login", handler.handleLogin)
	authGroup.GET("/me", handler.requireAuth, handler.handleMe)

	storyGroup := api.Group("/stories")
	storyGroup.GET("", handler.optionalAuth, handler.handleListStories)
	storyGroup.POST("", handler.requireAuth, handler.handleCreateStory)
	storyGroup.GET("/mine/list", handler.requireAuth, handler.handleMyStories)
	storyGroup.GET("/:id", handler.optionalAuth, handler.handleGetStory)
	storyGroup.POST("/:id/comments", handler.requireAuth, handler.handleAddComment)
	storyGroup.POST("/:id/upvote", handler.handleUpvoteStory)
	storyGroup.POST("/:id/react", handler.requireAuth, handler.handleReactStory)
	storyGroup.POST("/:id/share", handler.handleShareStory)
	storyGroup.POST("/comments/:id/upvote", handler.handleUpvoteComment)
	storyGroup.POST("/comments/:id/react", handler.requireAuth, handler.handleReactComment)

	return router, nil
}

// corsConfig pins origins to the configured client in production and stays
// permissive everywhere else so local frontends can develop against the API.
func corsConfig(deps Dependencies) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", legacyTokenHeader},
		MaxAge:       12 * time.Hour,
	}
	if deps.Production && deps.ClientURL != "" {
		cfg.AllowOrigins = []string{deps.ClientURL}
	} else {
		cfg.AllowOrigins = []string{"*"}
	}
	return cfg
}

type httpHandler struct {
	tokens  *auth.TokenIssuer
	users   *users.Service
	stories *stories.Service
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// bearerToken extracts the access token from the Authorization header or the
// legacy X-Auth-Token header still sent by older clients.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return strings.TrimSpace(c.GetHeader(legacyTokenHeader))
}

func (h *httpHandler) requireAuth(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	identity, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, identity.UserID)
	c.Set(demographicContextKey, identity.Demographic)
	c.Next()
}

// optionalAuth resolves the caller when a valid token accompanies the
// request; anything else falls through as an anonymous read.
func (h *httpHandler) optionalAuth(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.Next()
		return
	}
	identity, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Debug("ignoring invalid token on public route", zap.Error(err))
		c.Next()
		return
	}
	c.Set(userIDContextKey, identity.UserID)
	c.Set(demographicContextKey, identity.Demographic)
	c.Next()
}

// allow consults the limiter for the given policy, writing the 429 response
// itself when the caller is over budget.
func (h *httpHandler) allow(c *gin.Context, policy ratelimit.Policy, resource string) bool {
	key := policy.Key(c.ClientIP(), resource)
	allowed, err := h.limiter.Allow(c.Request.Context(), key, policy.Limit, policy.Window)
	if err != nil {
		h.logger.Error("rate limiter failure", zap.Error(err), zap.String("policy", policy.Name))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return false
	}
	if !allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, try again later"})
		return false
	}
	return true
}

// writeServiceError maps domain errors onto the HTTP surface.
func (h *httpHandler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, stories.ErrStoryTooShort):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Story must be at least 30 characters"})
	case errors.Is(err, stories.ErrCommentTooShort):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Comment must be at least 5 characters"})
	case errors.Is(err, stories.ErrInvalidReaction):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reaction"})
	case errors.Is(err, stories.ErrInvalidPlatform):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid share platform"})
	case errors.Is(err, stories.ErrInvalidTag):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tag"})
	case errors.Is(err, stories.ErrNotFound), errors.Is(err, users.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, users.ErrDuplicateEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email already registered"})
	case errors.Is(err, users.ErrMissingField):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name, email and password are required"})
	case errors.Is(err, users.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
