// Package logging implements the diagnostic log channel.
package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const stampLayout = "2006-01-02 15:04:05"

// RingBuffer keeps the most recent log lines and tees every line to an
// output stream. It is safe for concurrent use.
type RingBuffer struct {
	mu    sync.Mutex
	out   io.Writer
	lines []string
	total int // lines ever logged; the write cursor is total modulo capacity
}

// NewRingBuffer returns a pointer to a new [RingBuffer] holding size lines.
func NewRingBuffer(size int, out io.Writer) *RingBuffer {
	if size < 1 {
		size = 1
	}

	return &RingBuffer{
		out:   out,
		lines: make([]string, size),
	}
}

// Size returns the line capacity.
func (b *RingBuffer) Size() int {
	return len(b.lines)
}

// Lines returns a copy of the retained lines, oldest first.
func (b *RingBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := min(b.total, len(b.lines))
	out := make([]string, 0, n)
	for i := b.total - n; i < b.total; i++ {
		out = append(out, b.lines[i%len(b.lines)])
	}

	return out
}

// Reset drops all retained lines.
func (b *RingBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.lines)
	b.total = 0
}

// Printf formats a message into the buffer and tees it to the output stream.
func (b *RingBuffer) Printf(format string, args ...any) {
	b.append(fmt.Sprintf(format, args...))
}

// Println joins a message into the buffer and tees it to the output stream.
func (b *RingBuffer) Println(args ...any) {
	b.append(fmt.Sprintln(args...))
}

// append stamps a message, retains it and tees it to the output stream.
// The stream write happens outside the lock; a slow stream consumer does
// not stall the retained tail.
func (b *RingBuffer) append(msg string) {
	stamped := time.Now().Format(stampLayout) + " " + msg

	b.mu.Lock()
	b.lines[b.total%len(b.lines)] = strings.TrimSuffix(stamped, "\n")
	b.total++
	b.mu.Unlock()

	fmt.Fprintf(b.out, "%s", stamped)
}
