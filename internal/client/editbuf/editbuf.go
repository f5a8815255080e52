// Package editbuf turns the stream of fine-grained content callbacks coming
// from an editing surface into one debounced commit per pause in typing.
//
// The buffer owns the "last committed value" for exactly one open note at a
// time. Switching notes requires a new Buffer (or Reset); state never carries
// over between notes.
package editbuf

import (
	"strings"
	"sync"
	"time"

	"github.com/mkuzmins/homeboard/internal/common"
)

const (
	// DefaultDebounce is the quiet period after the last edit before the
	// content is considered settled.
	DefaultDebounce = 300 * time.Millisecond
	// DefaultGuard is how long local changes are ignored after external
	// content is applied. Must exceed the debounce window so the editing
	// surface's own normalization echo is absorbed.
	DefaultGuard = 400 * time.Millisecond
)

// Config configures a Buffer. Zero durations fall back to the defaults, a
// zero MaxLen falls back to common.MaxNoteContentLength.
type Config struct {
	Debounce time.Duration
	Guard    time.Duration
	MaxLen   int

	// Commit receives the normalized settled content. It must not block for
	// long; storage writes belong to the caller. Commit is never invoked
	// concurrently with itself.
	Commit func(content string)
}

// Buffer is the per-note debounced edit aggregator.
type Buffer struct {
	cfg Config

	mu            sync.Mutex
	timer         *time.Timer
	current       string
	lastCommitted string
	dirty         bool
	guardUntil    time.Time
	closed        bool
}

// New creates a Buffer whose committed baseline is initial (the content the
// surface was loaded with).
func New(cfg Config, initial string) *Buffer {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Guard <= 0 {
		cfg.Guard = DefaultGuard
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = common.MaxNoteContentLength
	}
	return &Buffer{
		cfg:           cfg,
		current:       initial,
		lastCommitted: normalize(initial),
	}
}

// OnLocalChange records an edit and (re)starts the debounce timer. Calls
// made during the guard window after SetExternalContent are ignored: they
// are the surface echoing the programmatic reset, not user input.
func (b *Buffer) OnLocalChange(raw string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || time.Now().Before(b.guardUntil) {
		return
	}

	b.current = raw
	b.dirty = true

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.cfg.Debounce, b.settle)
}

// SetExternalContent replaces the buffer's content with an authoritative
// value (a remote update arrived) and opens the guard window. Any in-flight
// debounce is abandoned: the remote value wins.
func (b *Buffer) SetExternalContent(content string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.current = content
	b.lastCommitted = normalize(content)
	b.dirty = false
	b.guardUntil = time.Now().Add(b.cfg.Guard)
}

// Close flushes an uncommitted edit synchronously and shuts the buffer down.
// Edits must never be silently lost on navigation. A buffer inside the guard
// window has nothing of the user's to flush and closes without committing.
func (b *Buffer) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	inGuard := time.Now().Before(b.guardUntil)
	content, ok := b.takeSettledLocked()
	b.mu.Unlock()

	if ok && !inGuard {
		b.cfg.Commit(content)
	}
}

// settle runs on debounce expiry.
func (b *Buffer) settle() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	content, ok := b.takeSettledLocked()
	b.mu.Unlock()

	if ok {
		b.cfg.Commit(content)
	}
}

// takeSettledLocked normalizes the pending content and decides whether it is
// worth committing. Over-length content is never committed; surfacing the
// length warning is the caller's job.
func (b *Buffer) takeSettledLocked() (string, bool) {
	if !b.dirty {
		return "", false
	}
	b.dirty = false

	content := normalize(b.current)
	if content == b.lastCommitted {
		return "", false
	}
	if len([]rune(content)) > b.cfg.MaxLen {
		return "", false
	}
	b.lastCommitted = content
	return content, true
}

// normalize trims the trailing whitespace artifacts rich-text surfaces
// generate. Leading whitespace is user content and is preserved.
func normalize(content string) string {
	return strings.TrimRight(content, " \t\r\n")
}
