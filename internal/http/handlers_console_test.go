package httpx

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogi/relay/internal/service"
)

func TestConsoleTail(t *testing.T) {
	console := service.NewConsoleService(service.ConsoleServiceOptions{})
	console.Append("dispatching image job abc")
	console.Append("image job abc completed")

	h := &ConsoleHandlers{Svc: console}
	r := httptest.NewRequest(http.MethodGet, "/api/console", nil)
	w := httptest.NewRecorder()
	h.Tail(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[consoleResponse](t, w)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, int64(2), resp.Cursor)

	// Polling again with the cursor only returns newer lines.
	console.Append("dispatching voice job def")
	r = httptest.NewRequest(http.MethodGet, "/api/console?after="+strconv.FormatInt(resp.Cursor, 10), nil)
	w = httptest.NewRecorder()
	h.Tail(w, r)

	resp = decodeBody[consoleResponse](t, w)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "dispatching voice job def", resp.Entries[0].Line)
	assert.Equal(t, int64(3), resp.Cursor)
}

func TestConsoleTailIgnoresBadCursor(t *testing.T) {
	console := service.NewConsoleService(service.ConsoleServiceOptions{})
	console.Append("one line")

	h := &ConsoleHandlers{Svc: console}
	r := httptest.NewRequest(http.MethodGet, "/api/console?after=banana", nil)
	w := httptest.NewRecorder()
	h.Tail(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[consoleResponse](t, w)
	assert.Len(t, resp.Entries, 1)
}
