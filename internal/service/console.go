package service

import (
	"sync"
	"time"

	"github.com/blogi/relay/internal/core"
)

// defaultConsoleCapacity bounds the console ring. The admin page polls every
// couple of seconds, so a few hundred lines of history is plenty.
const defaultConsoleCapacity = 500

// ConsoleEntry is one line of the admin console log.
type ConsoleEntry struct {
	Seq  int64     `json:"seq"`
	Time time.Time `json:"time"`
	Line string    `json:"line"`
}

// ConsoleService keeps a bounded in-memory log of human-readable progress
// lines for the admin page's console. Entries carry monotonically increasing
// sequence numbers so a polling client can ask for "everything after N".
type ConsoleService struct {
	mu      sync.Mutex
	entries []ConsoleEntry
	seq     int64
	cap     int

	now func() time.Time
}

var _ core.ConsoleLog = (*ConsoleService)(nil)

// ConsoleServiceOptions configures a ConsoleService.
type ConsoleServiceOptions struct {
	// Capacity bounds retained history. Zero means the default.
	Capacity int
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewConsoleService constructs an empty console log.
func NewConsoleService(opts ConsoleServiceOptions) *ConsoleService {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = defaultConsoleCapacity
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &ConsoleService{
		entries: make([]ConsoleEntry, 0, capacity),
		cap:     capacity,
		now:     now,
	}
}

// Append records a console line, evicting the oldest line when full.
func (s *ConsoleService) Append(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	entry := ConsoleEntry{
		Seq:  s.seq,
		Time: s.now().UTC(),
		Line: line,
	}

	if len(s.entries) == s.cap {
		copy(s.entries, s.entries[1:])
		s.entries[len(s.entries)-1] = entry
		return
	}
	s.entries = append(s.entries, entry)
}

// Tail returns all entries with a sequence number greater than after, plus
// the latest sequence number for the client's next cursor.
func (s *ConsoleService) Tail(after int64) ([]ConsoleEntry, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Oldest retained entry may already be past the cursor after eviction.
	idx := len(s.entries)
	for i, e := range s.entries {
		if e.Seq > after {
			idx = i
			break
		}
	}

	out := make([]ConsoleEntry, len(s.entries)-idx)
	copy(out, s.entries[idx:])
	return out, s.seq
}
