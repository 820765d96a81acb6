package authz

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/zonegate/zonegate/internal/policy"
)

// ParsedRequest is the DNS operation a handler wants authorized, extracted
// from the HTTP request by the route layer.
type ParsedRequest struct {
	Hostname   string
	RecordType string
	Operation  policy.Operation
}

// ParseFunc extracts the DNS operation from an HTTP request.
type ParseFunc func(r *http.Request) (ParsedRequest, error)

// MiddlewareOptions controls the HTTP-facing behavior of the authorization
// middleware. The zero value is the safe default for a directly exposed
// listener.
type MiddlewareOptions struct {
	// TrustProxyHeaders makes the middleware take the client address from
	// X-Forwarded-For / X-Real-Ip instead of the socket peer. Enable only
	// when a trusted reverse proxy sets those headers; otherwise any client
	// can forge an address inside a token's IP allow-list.
	TrustProxyHeaders bool

	// VerboseDenials includes the verdict reason in denial response bodies.
	// Off by default so callers probing the policy learn nothing beyond
	// "denied"; the reason is always logged and counted server-side.
	VerboseDenials bool
}

// Middleware returns chi-compatible middleware that authorizes every request
// before it reaches the handler. parse maps the HTTP request to the DNS
// operation being attempted; the verdict is attached to the context for
// downstream logging.
func Middleware(svc *Service, parse ParseFunc, opts MiddlewareOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer := extractBearerToken(r)
			if bearer == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			req, err := parse(r)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, err.Error())
				return
			}

			verdict, err := svc.Authorize(r.Context(), bearer,
				req.Hostname, req.RecordType, string(req.Operation), clientIP(r, opts.TrustProxyHeaders))
			if !verdict.Allowed {
				status := statusForReason(verdict.Reason)
				if err != nil {
					// Storage failure: the reason is already InternalError.
					writeJSONError(w, status, "internal error")
					return
				}
				writeJSONError(w, status, deniedMessage(verdict.Reason, opts.VerboseDenials))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithVerdict(r.Context(), verdict)))
		})
	}
}

func statusForReason(reason policy.Reason) int {
	switch reason {
	case policy.ReasonInvalidToken:
		return http.StatusUnauthorized
	case policy.ReasonInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusForbidden
	}
}

func deniedMessage(reason policy.Reason, verbose bool) string {
	if reason == policy.ReasonInvalidToken {
		return "invalid token"
	}
	if verbose {
		return "permission denied: " + string(reason)
	}
	return "permission denied"
}

// extractBearerToken gets the token from "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// clientIP returns the address the IP allow-list check runs against. The
// socket peer is authoritative; the forwarding headers are client-supplied
// and consulted only when a trusted proxy in front of the listener sets
// them. The first X-Forwarded-For entry is the original client.
func clientIP(r *http.Request, trustProxyHeaders bool) string {
	if trustProxyHeaders {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if rip := r.Header.Get("X-Real-Ip"); rip != "" {
			return strings.TrimSpace(rip)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
