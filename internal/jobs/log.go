package jobs

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber
// that falls this far behind starts losing lines rather than stalling
// the producer.
const subscriberBuffer = 256

// logBuffer accumulates the full log of one job and fans new lines out
// to live subscribers. Late subscribers get a replay of everything so
// far, then the stream.
type logBuffer struct {
	mu          sync.Mutex
	lines       []string
	subscribers map[string]chan string
	closed      bool
}

func newLogBuffer() *logBuffer {
	return &logBuffer{subscribers: make(map[string]chan string)}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Append records a line and pushes it to every subscriber. A full
// subscriber channel is skipped so as not to block the producer.
func (b *logBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.lines = append(b.lines, line)
	for _, ch := range b.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}

// Subscribe returns the lines logged so far plus a channel carrying
// subsequent lines. The channel is closed when the job finishes.
func (b *logBuffer) Subscribe() (string, []string, chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	replay := make([]string, len(b.lines))
	copy(replay, b.lines)

	ch := make(chan string, subscriberBuffer)
	if b.closed {
		close(ch)
		return "", replay, ch
	}
	id := randomID()
	b.subscribers[id] = ch
	return id, replay, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *logBuffer) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// CloseAll marks the buffer finished and closes every subscriber
// channel. Replays of the accumulated lines keep working afterwards.
func (b *logBuffer) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Lines returns a copy of everything logged so far.
func (b *logBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}
