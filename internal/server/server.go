package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/chew-z/workers-ai-proxy/internal/ai"
	"github.com/chew-z/workers-ai-proxy/internal/api"
	"github.com/chew-z/workers-ai-proxy/internal/blob"
	"github.com/chew-z/workers-ai-proxy/internal/config"
)

// Server represents the HTTP server
type Server struct {
	config *config.Config
	router *gin.Engine
	server *http.Server
	ai     ai.Runner
	lister ai.Lister
	store  blob.Store
}

// route is one entry of the ordered route table. Every route is registered
// both with and without the /v1 prefix.
type route struct {
	method  string
	path    string
	auth    bool
	handler gin.HandlerFunc
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, host string, port int) (*Server, error) {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.Debug {
		logPath := filepath.Join(os.TempDir(), "workers-ai-proxy.log")
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Printf("Warning: Could not create log file %s: %v", logPath, err)
		} else {
			gin.DefaultWriter = io.MultiWriter(logFile, os.Stdout)
			gin.DefaultErrorWriter = io.MultiWriter(logFile, os.Stderr)
			log.Printf("Logging to %s", logPath)
		}
	} else {
		gin.DisableConsoleColor()
	}

	router := gin.New()
	// Path normalization (and its 308) is owned by our middleware, not gin.
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error",
			"message": fmt.Sprintf("%v", recovered),
		})
	}))

	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Authorization", "Content-Type"},
	}))

	// Preflight never reaches the route table.
	router.Use(func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	router.Use(pathNormalizer())

	if cfg.Debug {
		router.Use(gin.Logger())
	}

	client := ai.NewClient(cfg.BaseURL, cfg.AccountID, cfg.APIToken)

	store, err := blob.New(context.Background(), cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("initialize blob store: %w", err)
	}

	srv := &http.Server{
		Addr:    getAddr(host, port),
		Handler: router,
	}

	server := &Server{
		config: cfg,
		router: router,
		server: srv,
		ai:     client,
		lister: client,
		store:  store,
	}

	server.setupRoutes()

	return server, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// CreateShutdownContext creates a context for graceful shutdown
func CreateShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// routes returns the ordered route table.
func (s *Server) routes() []route {
	return []route{
		{http.MethodGet, "/models", true, s.handleModels},
		{http.MethodPost, "/chat/completions", true, s.handleChatCompletions},
		{http.MethodPost, "/completions", true, s.handleCompletions},
		{http.MethodPost, "/embeddings", true, s.handleEmbeddings},
		{http.MethodPost, "/audio/transcriptions", true, s.handleTranscription},
		{http.MethodPost, "/audio/translations", true, s.handleTranslation},
		{http.MethodPost, "/images/generations", true, s.handleImageGeneration},
		{http.MethodGet, "/images/get/*name", false, s.handleGetImage},
		{http.MethodPost, "/responses", true, s.handleResponses},
	}
}

// setupRoutes registers the route table, each entry under both the bare path
// and the /v1 prefix.
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleRoot)

	for _, r := range s.routes() {
		var handlers []gin.HandlerFunc
		if r.auth {
			handlers = append(handlers, s.requireAuth)
		}
		handlers = append(handlers, r.handler)

		s.router.Handle(r.method, r.path, handlers...)
		s.router.Handle(r.method, "/v1"+r.path, handlers...)
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "Not Found")
	})
}

// requireAuth validates the bearer credential on protected routes. A missing
// header and a bad credential are distinct, machine-readable failures.
func (s *Server) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		se := api.ErrUnauthorized(api.CodeAuthNoHeader)
		c.AbortWithStatusJSON(se.StatusCode, se)
		return
	}

	scheme, token, _ := strings.Cut(header, " ")
	if scheme != "Bearer" || token != s.config.AccessToken {
		se := api.ErrForbidden(api.CodeAuthInvalidToken)
		c.AbortWithStatusJSON(se.StatusCode, se)
		return
	}

	c.Next()
}

// pathNormalizer redirects any request whose path changes under
// normalization, preserving the query string. Handlers always see a
// normalized path.
func pathNormalizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawPath := c.Request.URL.Path
		normalized := normalizePath(rawPath)
		if normalized != rawPath {
			location := normalized
			if query := c.Request.URL.RawQuery; query != "" {
				location += "?" + query
			}
			c.Redirect(http.StatusPermanentRedirect, location)
			c.Abort()
			return
		}
		c.Next()
	}
}

// normalizePath collapses runs of slashes and strips one trailing slash.
// It is idempotent and maps "/" to itself.
func normalizePath(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	for i := 0; i < len(p); i++ {
		if p[i] == '/' && i > 0 && p[i-1] == '/' {
			continue
		}
		b.WriteByte(p[i])
	}
	normalized := strings.TrimSuffix(b.String(), "/")
	if normalized == "" {
		return "/"
	}
	return normalized
}

// getAddr returns the address string from host and port
func getAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

// handleRoot is the liveness endpoint
func (s *Server) handleRoot(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
