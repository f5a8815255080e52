package editbuf

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type commitRecorder struct {
	mu      sync.Mutex
	commits []string
}

func (r *commitRecorder) commit(content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, content)
}

func (r *commitRecorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commits...)
}

func newTestBuffer(rec *commitRecorder, initial string) *Buffer {
	return New(Config{
		Debounce: 20 * time.Millisecond,
		Guard:    40 * time.Millisecond,
		Commit:   rec.commit,
	}, initial)
}

func TestDebounceCoalescing(t *testing.T) {
	rec := &commitRecorder{}
	b := newTestBuffer(rec, "")

	for _, s := range []string{"h", "he", "hel", "hell", "hello"} {
		b.OnLocalChange(s)
		time.Sleep(5 * time.Millisecond) // below the debounce window
	}

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, []string{"hello"}, rec.list())
}

func TestSeparatePausesCommitSeparately(t *testing.T) {
	rec := &commitRecorder{}
	b := newTestBuffer(rec, "")

	b.OnLocalChange("first")
	time.Sleep(50 * time.Millisecond)
	b.OnLocalChange("second")
	time.Sleep(50 * time.Millisecond)

	require.Equal(t, []string{"first", "second"}, rec.list())
}

func TestGuardWindowSuppressesEcho(t *testing.T) {
	rec := &commitRecorder{}
	b := newTestBuffer(rec, "old")

	b.SetExternalContent("remote value")
	b.OnLocalChange("remote value\n") // the surface normalizing the reset

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, rec.list())
}

func TestGuardWindowExpires(t *testing.T) {
	rec := &commitRecorder{}
	b := newTestBuffer(rec, "old")

	b.SetExternalContent("remote value")
	time.Sleep(50 * time.Millisecond) // past the guard

	b.OnLocalChange("user edit")
	time.Sleep(40 * time.Millisecond)
	require.Equal(t, []string{"user edit"}, rec.list())
}

func TestCloseFlushesPendingEdit(t *testing.T) {
	rec := &commitRecorder{}
	b := newTestBuffer(rec, "")

	b.OnLocalChange("unsaved")
	b.Close()

	require.Equal(t, []string{"unsaved"}, rec.list())

	// Close is idempotent and late timers are no-ops.
	b.Close()
	time.Sleep(40 * time.Millisecond)
	require.Equal(t, []string{"unsaved"}, rec.list())
}

func TestCloseDuringGuardDoesNotCommit(t *testing.T) {
	rec := &commitRecorder{}
	b := newTestBuffer(rec, "old")

	b.SetExternalContent("remote")
	b.Close()

	assert.Empty(t, rec.list())
}

func TestUnchangedContentNotRecommitted(t *testing.T) {
	rec := &commitRecorder{}
	b := newTestBuffer(rec, "same")

	b.OnLocalChange("same   ") // trailing whitespace is insignificant
	time.Sleep(40 * time.Millisecond)

	assert.Empty(t, rec.list())
}

func TestOverLengthContentSkipped(t *testing.T) {
	rec := &commitRecorder{}
	b := New(Config{
		Debounce: 20 * time.Millisecond,
		Guard:    40 * time.Millisecond,
		MaxLen:   5,
		Commit:   rec.commit,
	}, "")

	b.OnLocalChange("this is way too long")
	time.Sleep(40 * time.Millisecond)
	assert.Empty(t, rec.list())

	// Shortening it back under the limit commits normally.
	b.OnLocalChange("ok")
	time.Sleep(40 * time.Millisecond)
	require.Equal(t, []string{"ok"}, rec.list())
}

func TestCommitNormalizesTrailingWhitespace(t *testing.T) {
	rec := &commitRecorder{}
	b := newTestBuffer(rec, "")

	b.OnLocalChange("  hello world\n\t ")
	time.Sleep(40 * time.Millisecond)

	require.Equal(t, []string{"  hello world"}, rec.list())
}
