package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/store"
)

// FamilyParam is the path wildcard naming the family in scoped routes.
const FamilyParam = "familyID"

// RequireFamily checks that the authenticated user belongs to the family named
// by the {familyID} path value. Non-members get the same 404 as a missing
// family. It must wrap individual routes so the path value is populated.
func RequireFamily(families *store.FamilyStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			familyID, err := strconv.ParseInt(r.PathValue(FamilyParam), 10, 64)
			if err != nil || familyID <= 0 {
				writeError(w, http.StatusNotFound, "family not found")
				return
			}

			ok, err := families.IsMember(familyID, auth.UserID(r.Context()))
			if err != nil {
				logger.Error("check family membership", "family_id", familyID, "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if !ok {
				writeError(w, http.StatusNotFound, "family not found")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithFamily(r.Context(), familyID)))
		})
	}
}
