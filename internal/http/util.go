package httpx

import (
	"net/http"
	"strconv"
)

// parseInt64Query returns the int64 value of a query param or a default.
// It is tolerant of missing/invalid values.
func parseInt64Query(r *http.Request, key string, def int64) int64 {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}
