package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig builds a policy that admits exactly one browser origin.
// An empty origin admits none.
func CORSConfig(origin string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Content-Length", "Accept", "Accept-Encoding",
			"Authorization", "Cache-Control", "X-CSRF-Token", "X-Requested-With", RequestIDHeader,
		},
		ExposeHeaders:    []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		cfg.AllowOriginFunc = func(string) bool { return false }
	} else {
		cfg.AllowOrigins = []string{origin}
	}
	return cfg
}

// CORS returns the cross-origin guard for origin. Requests from any other
// origin are aborted with 403; allowed preflights are answered with 204.
func CORS(origin string) (gin.HandlerFunc, error) {
	cfg := CORSConfig(origin)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid CLIENT_URL %q: %w", origin, err)
	}
	return cors.New(cfg), nil
}
