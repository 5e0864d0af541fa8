// Package httputil provides small HTTP handler helpers.
package httputil

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/quickscribe/backend/libs/golog"
)

// JSONContentType is the content type for JSON responses.
const JSONContentType = "application/json"

// JSONResponse writes a JSON encoded response with the provided status code.
func JSONResponse(w http.ResponseWriter, statusCode int, res interface{}) {
	w.Header().Set("Content-Type", JSONContentType)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		golog.LogDepthf(1, golog.ERR, "Failed to encode JSON response: %s", err)
	}
}

// ParseBool is a forgiving version of strconv.ParseBool for query parameters.
func ParseBool(s string) bool {
	switch strings.ToLower(s) {
	case "yes", "1", "true":
		return true
	}
	return false
}

type supportedMethods struct {
	methods []string
	handler http.Handler
}

// SupportedMethods wraps an HTTP handler, and before a request is
// passed to the handler the method is checked against the list provided.
// If it does not match one of the expected methods then StatusMethodNotAllowed
// status is returned along with a list of allowed methods in the "Allow"
// HTTP header.
func SupportedMethods(h http.Handler, methods ...string) http.Handler {
	sort.Strings(methods)
	return &supportedMethods{
		methods: methods,
		handler: h,
	}
}

func (sm *supportedMethods) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for _, m := range sm.methods {
		if r.Method == m {
			sm.handler.ServeHTTP(w, r)
			return
		}
	}
	w.Header().Set("Allow", strings.Join(sm.methods, ", "))
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
	} else {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
