package routes

import (
	"github.com/01moynul/starter-api/internal/handlers"
	"github.com/01moynul/starter-api/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Options carries the pipeline settings taken from configuration.
type Options struct {
	ClientURL string // the single origin allowed by CORS
	BodyLimit int64  // max request body size in bytes
}

// SetupRouter builds the engine: request id, logging, recovery, CORS and
// body parsing are installed for every route, then the built-in endpoints.
func SetupRouter(h *handlers.Handlers, opts Options) (*gin.Engine, error) {
	guard, err := middleware.CORS(opts.ClientURL)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(h.Log))
	router.Use(middleware.Recovery(h.Log))

	// --- APPLY THE CORS GUARD ---
	// Must run before anything that reads the body.
	router.Use(guard)
	router.Use(middleware.BodyParser(opts.BodyLimit))

	v1 := router.Group("/v1")
	{
		v1.GET("/ping", h.Ping)
		v1.GET("/health", h.Health)

		// --- Application routes (public) go here ---

		auth := v1.Group("/")
		auth.Use(middleware.Auth(h.Signer))
		{
			auth.GET("/session", h.Session)

			// --- Application routes (login required) go here ---
		}
	}

	return router, nil
}
