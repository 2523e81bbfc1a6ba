package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"cms-records/internal/logging"
	"cms-records/internal/principal"
)

// WorkspaceHeader lets an elevated caller act inside a draft environment
// other than the one on their token.
const WorkspaceHeader = "X-Workspace"

// AuthConfig controls bearer-token authentication.
type AuthConfig struct {
	// Required rejects requests without a valid token. When false,
	// unauthenticated requests act as the anonymous principal.
	Required bool
	// Secret is the HS256 signing secret tokens are verified against.
	Secret string
}

// AuthMiddleware resolves the acting principal from the Authorization header
// and attaches it to the request context.
func AuthMiddleware(cfg AuthConfig, logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r.Header.Get("Authorization"))

			var p principal.Principal
			if tokenString == "" {
				if cfg.Required {
					writeAuthError(w, http.StatusUnauthorized, "missing bearer token")
					return
				}
				p = principal.Anonymous()
			} else {
				claims, err := principal.FromToken(tokenString, []byte(cfg.Secret))
				if err != nil {
					logging.FromContext(r.Context()).Warn("token rejected", "error", err.Error())
					writeAuthError(w, http.StatusUnauthorized, "invalid bearer token")
					return
				}
				p = applyWorkspaceOverride(w, r, claims)
				if p == nil {
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(principal.WithPrincipal(r.Context(), p)))
		})
	}
}

// applyWorkspaceOverride honors the X-Workspace header for elevated callers.
// Non-elevated callers may not switch draft environments; the attempt is
// rejected rather than ignored. Returns nil after writing the response.
func applyWorkspaceOverride(w http.ResponseWriter, r *http.Request, claims *principal.Claims) principal.Principal {
	header := strings.TrimSpace(r.Header.Get(WorkspaceHeader))
	if header == "" {
		return claims
	}
	workspaceID, err := strconv.ParseInt(header, 10, 64)
	if err != nil || workspaceID < 0 {
		writeAuthError(w, http.StatusBadRequest, "invalid "+WorkspaceHeader+" header")
		return nil
	}
	if !claims.IsElevated() {
		writeAuthError(w, http.StatusForbidden, "workspace override requires elevated rights")
		return nil
	}
	override := *claims
	override.WorkspaceID = workspaceID
	return &override
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"kind": "access_denied", "message": message},
	})
}
