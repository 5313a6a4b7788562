package service

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleAppendAndTail(t *testing.T) {
	console := NewConsoleService(ConsoleServiceOptions{})

	console.Append("dispatching image job abc")
	console.Append("webhook completed job abc")

	entries, latest := console.Tail(0)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), latest)
	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Equal(t, "dispatching image job abc", entries[0].Line)
	assert.Equal(t, "webhook completed job abc", entries[1].Line)

	// Cursor past everything returns nothing new.
	entries, latest = console.Tail(latest)
	assert.Empty(t, entries)
	assert.Equal(t, int64(2), latest)
}

func TestConsoleTailAfterCursor(t *testing.T) {
	console := NewConsoleService(ConsoleServiceOptions{})
	for i := 1; i <= 5; i++ {
		console.Append(fmt.Sprintf("line %d", i))
	}

	entries, latest := console.Tail(3)
	require.Len(t, entries, 2)
	assert.Equal(t, "line 4", entries[0].Line)
	assert.Equal(t, "line 5", entries[1].Line)
	assert.Equal(t, int64(5), latest)
}

func TestConsoleEviction(t *testing.T) {
	console := NewConsoleService(ConsoleServiceOptions{Capacity: 3})
	for i := 1; i <= 5; i++ {
		console.Append(fmt.Sprintf("line %d", i))
	}

	entries, latest := console.Tail(0)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(5), latest)
	assert.Equal(t, "line 3", entries[0].Line)
	assert.Equal(t, "line 5", entries[2].Line)

	// Sequence numbers survive eviction.
	assert.Equal(t, int64(3), entries[0].Seq)
}

func TestConsoleConcurrentAppend(t *testing.T) {
	console := NewConsoleService(ConsoleServiceOptions{Capacity: 1000})

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			console.Append(fmt.Sprintf("line %d", n))
		}(i)
	}
	wg.Wait()

	entries, latest := console.Tail(0)
	assert.Len(t, entries, 100)
	assert.Equal(t, int64(100), latest)

	// Sequence numbers are unique and increasing.
	for i := 1; i < len(entries); i++ {
		assert.Greater(t, entries[i].Seq, entries[i-1].Seq)
	}
}
