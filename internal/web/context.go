package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/payimport/internal/core"
)

// operator returns the authenticated operator. Requests that bypassed the
// auth middleware get an operator without import rights.
func operator(r *http.Request) core.Operator {
	op, _ := core.OperatorFromContext(r.Context())
	return op
}

// intParam parses a non-negative integer query parameter.
func intParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}

// int64URLParam parses a positive integer path parameter.
func int64URLParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
