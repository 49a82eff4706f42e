package websocket

import (
	"log/slog"
	"net/http"
	"strconv"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/allowance/internal/auth"
)

// MembershipChecker reports whether a user belongs to a family.
type MembershipChecker interface {
	IsMember(familyID, userID int64) (bool, error)
}

// HandleWebSocket upgrades an authenticated request for /ws?family_id=N and
// streams that family's change notifications until the connection closes.
func HandleWebSocket(hub *Hub, members MembershipChecker, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		familyID, err := strconv.ParseInt(r.URL.Query().Get("family_id"), 10, 64)
		if err != nil || familyID <= 0 {
			http.Error(w, "family_id is required", http.StatusBadRequest)
			return
		}
		ok, err := members.IsMember(familyID, auth.UserID(r.Context()))
		if err != nil {
			logger.Error("websocket membership", "family_id", familyID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "family not found", http.StatusNotFound)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, familyID)
		client.Run(r.Context())
	}
}
