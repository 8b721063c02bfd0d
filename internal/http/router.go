// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, compression, security headers, authentication, idempotency, and rate
// limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/tributaria/internal/auth"
	"github.com/tbourn/tributaria/internal/config"
	"github.com/tbourn/tributaria/internal/docs"
	"github.com/tbourn/tributaria/internal/http/handlers"
	"github.com/tbourn/tributaria/internal/http/middleware"
	"github.com/tbourn/tributaria/internal/repo"
	"github.com/tbourn/tributaria/internal/reply"
	"github.com/tbourn/tributaria/internal/services"
	"github.com/tbourn/tributaria/internal/session"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// Option customizes RegisterRoutes.
type Option func(*options)

type options struct {
	replier reply.Replier
}

// WithReplier replaces the replier chosen from the webhook configuration.
func WithReplier(r reply.Replier) Option {
	return func(o *options) { o.replier = r }
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and returns a teardown that ends every live session.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. gzip (never the event stream)
//  8. CORS and security headers
//
// Inside the API, public auth routes are rate limited per IP. Authenticated
// routes run RequireAuth, then idempotency validation, then the per-user
// limiter, so a replayed append is not charged twice.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, opts ...Option) (teardown func(context.Context) error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	apiBase := cfg.APIBasePath
	if apiBase == "/" {
		apiBase = ""
	}
	eventsPath := apiBase + "/session/events"

	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderIdempotencyKey},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(limitBody(maxBodyBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics(middleware.MetricsOptions{Streaming: []string{eventsPath}}))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Compression; SSE frames must reach the client unbuffered
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{eventsPath, "/metrics"})))

	// Swagger UI ships inline scripts, so it is mounted before the CSP.
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// 8) CORS posture and security headers
	r.Use(corsMiddleware(cfg.CORS))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:            cfg.Security.EnableHSTS,
		HSTSMaxAge:            cfg.Security.HSTSMaxAge,
		EnablePolicy:          true,
		ContentSecurityPolicy: middleware.DefaultCSP,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}
	chatSvc := services.NewChatService(db, repo.ChatStore{})
	chatSvc.Location = loc
	if cfg.TitleMaxLen > 0 {
		chatSvc.TitleMaxLen = cfg.TitleMaxLen
	}
	msgSvc := services.NewMessageService(db)
	if cfg.MaxMessageRunes > 0 {
		msgSvc.MaxPromptRunes = cfg.MaxMessageRunes
	}
	if cfg.TitleMaxLen > 0 {
		msgSvc.TitleMaxLen = cfg.TitleMaxLen
	}
	planSvc := &services.SubscriptionService{DB: db}
	authSvc := auth.NewService(db, &auth.Tokens{Secret: []byte(cfg.Auth.Secret), TTL: cfg.Auth.TokenTTL})

	replier := o.replier
	if replier == nil {
		replier = newReplier(cfg.Webhook)
	}
	reg := session.NewRegistry(chatSvc, msgSvc, replier, session.Options{ReplyTimeout: cfg.Webhook.Timeout})
	unsubscribe := authSvc.OnSessionChange(reg.HandleSessionEvent)

	h := handlers.New(handlers.Deps{
		Chats:    chatSvc,
		Messages: msgSvc,
		Auth:     authSvc,
		Plans:    planSvc,
		Sessions: reg,
		Cookie: handlers.CookieOptions{
			Name:   cfg.Auth.CookieName,
			Secure: cfg.Auth.CookieSecure,
		},
		DB:             db,
		IdempotencyTTL: cfg.IdempotencyTTL,
	})

	api := groupWithPrefix(r, apiBase)

	// Public
	{
		ipLimit := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
		pub := api.Group("/auth", middleware.NoStoreMiddleware(), ipLimit.Handler())
		pub.POST("/signup", h.SignUp)
		pub.POST("/signin", h.SignIn)
		pub.POST("/signout", h.SignOut)
		pub.POST("/refresh", h.Refresh)

		api.GET("/plans", h.ListPlans)
	}

	// Authenticated
	userLimit := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	authed := api.Group("",
		middleware.RequireAuth(authSvc, cfg.Auth.CookieName),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, idempotencyLookup(db)),
		userLimit.Handler(),
	)
	{
		// Profile
		authed.GET("/me", middleware.NoStoreMiddleware(), h.Me)
		authed.PUT("/me/profile", middleware.NoStoreMiddleware(), h.UpdateProfile)
		authed.GET("/subscription", h.CurrentSubscription)

		// Chats
		authed.POST("/chats", h.CreateChat)
		authed.GET("/chats", h.ListChats)
		authed.PUT("/chats/:id/title", h.UpdateChatTitle)

		// Messages
		authed.GET("/chats/:id/messages", h.ListMessages)
		authed.POST("/chats/:id/messages", h.PostMessage)

		// Live session
		live := authed.Group("/session", middleware.NoStoreMiddleware())
		live.GET("", h.GetSession)
		live.POST("/conversations", h.StartConversation)
		live.PUT("/conversation/:id", h.SelectConversation)
		live.POST("/messages", h.SubmitMessage)
		live.GET("/events", h.SessionEvents)
	}

	return func(ctx context.Context) error {
		unsubscribe()
		return reg.Shutdown(ctx)
	}
}

// newReplier picks the offline responder or the HTTP webhook client.
func newReplier(w config.WebhookConfig) reply.Replier {
	if w.Simulated() {
		return reply.Simulated{Delay: 800 * time.Millisecond}
	}
	return reply.NewClient(w.URL, w.Timeout)
}

// idempotencyLookup reports whether key was already used for the chat.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, chatID, key string, now time.Time) (bool, error) {
		_, err := repo.GetIdempotency(ctx, db, userID, chatID, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}
}

// corsMiddleware allows any origin without credentials when no allowlist is
// configured. With an allowlist, credentials (the session cookie) are allowed.
func corsMiddleware(c config.CORSConfig) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID", middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{
			"X-Request-ID", "Content-Length", "ETag", "Retry-After", "Idempotency-Replayed",
		},
		MaxAge: 12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true // credentials must stay off
	} else {
		cc.AllowOrigins = c.AllowedOrigins
		cc.AllowCredentials = true
	}
	return cors.New(cc)
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
