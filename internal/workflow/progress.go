package workflow

import (
	"sync"

	"github.com/google/uuid"
)

// Progress event kinds.
const (
	EventStage    = "stage"
	EventJob      = "job"
	EventRun      = "run"
	EventComplete = "complete"
)

// ProgressEvent represents a progress update during a run
type ProgressEvent struct {
	Kind    string `json:"kind"`
	RunID   string `json:"run_id"`
	JobID   string `json:"job_id,omitempty"`
	Stage   string `json:"stage,omitempty"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Content any    `json:"content,omitempty"`
}

// ProgressCallback is called when run progress occurs
type ProgressCallback func(event ProgressEvent)

// subscriberBuffer bounds how far a slow subscriber may fall behind before
// events are dropped for it.
const subscriberBuffer = 64

// Broadcaster fans progress events out to per-run subscribers.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[string]map[chan ProgressEvent]struct{}
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]map[chan ProgressEvent]struct{})}
}

// Subscribe returns a channel of events for runID and a function that
// unsubscribes and closes the channel.
func (b *Broadcaster) Subscribe(runID uuid.UUID) (<-chan ProgressEvent, func()) {
	key := runID.String()
	ch := make(chan ProgressEvent, subscriberBuffer)

	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = make(map[chan ProgressEvent]struct{})
	}
	b.subs[key][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if set, ok := b.subs[key]; ok {
				if _, live := set[ch]; live {
					delete(set, ch)
					close(ch)
				}
				if len(set) == 0 {
					delete(b.subs, key)
				}
			}
		})
	}
}

// Publish delivers event to the run's subscribers without blocking. A
// complete event closes every subscription for the run.
func (b *Broadcaster) Publish(event ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.subs[event.RunID]
	for ch := range set {
		select {
		case ch <- event:
		default:
		}
	}
	if event.Kind == EventComplete {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, event.RunID)
	}
}

// Subscribers returns the number of live subscriptions for runID.
func (b *Broadcaster) Subscribers(runID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[runID.String()])
}
