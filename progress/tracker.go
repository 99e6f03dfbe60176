package progress

import (
	"io"
	"sync"
)

// Publisher is anything that accepts progress events.
type Publisher interface {
	Publish(Event)
}

// Tracker maps the phases of one upload onto 0..100 and only publishes when
// the integer percentage moves forward.
type Tracker struct {
	pub Publisher

	mu   sync.Mutex
	last int
}

func NewTracker(pub Publisher) *Tracker {
	return &Tracker{pub: pub, last: -1}
}

// Set publishes pct if it is ahead of the last published value. Values are
// capped at 99; only Complete reports 100.
func (t *Tracker) Set(pct int) {
	pct = max(0, min(pct, 99))

	t.mu.Lock()
	defer t.mu.Unlock()
	if pct <= t.last {
		return
	}
	t.last = pct
	t.pub.Publish(Event{Progress: pct})
}

// Phase reports done/total of a phase that spans [from, to).
func (t *Tracker) Phase(from, to, done, total int) {
	if total <= 0 {
		t.Set(from)
		return
	}
	t.Set(from + (to-from)*done/total)
}

// Last returns the last published percentage, or 0.
func (t *Tracker) Last() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return max(t.last, 0)
}

func (t *Tracker) Complete() {
	t.pub.Publish(Finished())
}

func (t *Tracker) Fail(code string) {
	t.pub.Publish(Failed(t.Last(), code))
}

// Reader reports bytes read from r as the [from, to) phase of t. total is
// the expected size; with total <= 0 nothing is reported.
func (t *Tracker) Reader(r io.Reader, total int64, from, to int) io.Reader {
	return &countingReader{r: r, t: t, total: total, from: from, to: to}
}

type countingReader struct {
	r        io.Reader
	t        *Tracker
	total    int64
	received int64
	from, to int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.received += int64(n)
	if c.total > 0 && n > 0 {
		c.t.Set(c.from + int(int64(c.to-c.from)*min(c.received, c.total)/c.total))
	}
	return n, err
}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}
