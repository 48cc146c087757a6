package server

import "net/http"

// ReadOnlyMiddleware rejects mutating requests with 405. Enabled via
// server.read_only for public demo deployments where the API should be
// browsable but not writable.
func ReadOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			WriteProblem(w, Problem{
				Type:     ProblemTypeForbidden,
				Title:    "Read-Only Mode",
				Status:   http.StatusMethodNotAllowed,
				Detail:   "this instance is read-only; mutating requests are disabled",
				Instance: r.URL.Path,
			})
		}
	})
}
