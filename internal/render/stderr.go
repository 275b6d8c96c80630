package render

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"
)

// DiagnosticLimit is the maximum number of characters kept from stderr.
const DiagnosticLimit = 4000

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// truncateDiagnostic keeps the last limit characters of s. The tail is where
// ffmpeg reports the error that ended the run.
func truncateDiagnostic(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[len(runes)-limit:])
}

// timeoutDiagnostic prefixes the stderr tail with the timeout notice. The
// tail is shortened so the notice always survives the limit.
func timeoutDiagnostic(timeout time.Duration, tail string) string {
	prefix := fmt.Sprintf("encoder killed after %s timeout\n", timeout)
	room := DiagnosticLimit - utf8.RuneCountInString(prefix)
	if room < 0 {
		room = 0
	}
	return prefix + truncateDiagnostic(tail, room)
}
