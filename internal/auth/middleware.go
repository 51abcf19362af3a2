package auth

import (
	"net/http"

	"github.com/odyssey-erp/po-console/internal/platform/httpx"
	"github.com/odyssey-erp/po-console/internal/shared"
)

// RequireTenant rejects requests whose session carries no upstream token
// and places the session tenant in the request context.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant, err := shared.TenantFromSession(shared.SessionFromContext(r.Context()))
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithTenant(r.Context(), tenant)))
	})
}
