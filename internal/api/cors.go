package api

import (
	"net/http"

	"github.com/go-chi/cors"
)

// allowAllCORS lets any origin call the API with any method and header.
// Credentials are allowed, so origins are echoed back rather than "*".
func allowAllCORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc:  func(r *http.Request, origin string) bool { return true },
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
