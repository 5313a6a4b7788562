package httpx

import (
	"net/http"

	"github.com/blogi/relay/internal/service"
)

// ConsoleHandlers provides the HTTP handler for the admin console log.
type ConsoleHandlers struct {
	Svc *service.ConsoleService
}

// consoleResponse is the polling client's view: new lines plus the cursor to
// pass as ?after= on the next poll.
type consoleResponse struct {
	Entries []service.ConsoleEntry `json:"entries"`
	Cursor  int64                  `json:"cursor"`
}

// Tail handles HTTP requests for console lines after a cursor.
func (h *ConsoleHandlers) Tail(w http.ResponseWriter, r *http.Request) {
	after := parseInt64Query(r, "after", 0)
	entries, cursor := h.Svc.Tail(after)

	WriteJSON(w, http.StatusOK, consoleResponse{Entries: entries, Cursor: cursor})
}
