package transcript

import (
	"log"
	"sync"

	"github.com/crystal-mush/mudlink/pkg/events"
)

// Writer is an event bus subscriber that records decoded text segments to
// the transcript store.
type Writer struct {
	store   *Store
	session string
	mu      sync.Mutex
	closed  bool
}

// NewWriter creates a writer recording under the given session name and
// registers it on the bus.
func NewWriter(store *Store, session string, bus *events.Bus) *Writer {
	w := &Writer{store: store, session: session}
	bus.Subscribe(w)
	log.Printf("transcript: recording session %q", session)
	return w
}

// Receive implements events.Subscriber. Only text events are stored.
func (w *Writer) Receive(ev events.Event) {
	if ev.Kind != events.KindText {
		return
	}
	if err := w.store.Append(w.session, ev.Text); err != nil {
		log.Printf("transcript: append error: %v", err)
	}
}

// Closed implements events.Subscriber.
func (w *Writer) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Close marks the writer as closed so the bus stops delivering events.
func (w *Writer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}
