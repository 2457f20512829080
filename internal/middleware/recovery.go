package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	apperrors "github.com/quickhop/quickhop/internal/errors"
	"github.com/quickhop/quickhop/pkg/utils"
)

// Recovery converts panics into a 500 response instead of tearing down
// the connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("panic on %s %s: %v\n%s", r.Method, r.URL.Path, err, debug.Stack())
				utils.Error(w, apperrors.InternalError("an unexpected error occurred"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
