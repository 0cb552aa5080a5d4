package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2/middleware/cors"
)

// Response headers the web client reads after a mutation.
const (
	HeaderPersisted     = "X-Persisted"
	HeaderImageRejected = "X-Image-Rejected"
)

// CORSConfig allows the given origins; an empty list falls back to any origin
// without credentials.
func CORSConfig(origins []string) cors.Config {
	allow := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			allow = append(allow, o)
		}
	}
	if len(allow) == 0 {
		allow = []string{"*"}
	}

	return cors.Config{
		AllowOrigins:  strings.Join(allow, ","),
		AllowMethods:  "POST,GET,DELETE,PUT,OPTIONS",
		AllowHeaders:  "Content-Type,Authorization",
		ExposeHeaders: HeaderPersisted + "," + HeaderImageRejected,
	}
}
