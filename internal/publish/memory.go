package publish

import "sync"

// Event is a captured publication, kept for assertions in tests.
type Event struct {
	StudentID string
	Valid     bool
}

// MemoryPublisher records events in-process. It doubles as the publisher
// for deployments running without Redis.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(studentID string, valid bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, Event{StudentID: studentID, Valid: valid})
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}
