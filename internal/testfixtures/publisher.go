package testfixtures

import (
	"sync"

	"safe-pickup-api-server/internal/models"
)

// Publisher ghi lại mọi sự kiện được phát, theo thứ tự.
type Publisher struct {
	mu     sync.Mutex
	events []models.Event
}

func (p *Publisher) Publish(ev models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *Publisher) Events() []models.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Event(nil), p.events...)
}

// OfType returns the recorded events with the given type.
func (p *Publisher) OfType(t models.EventType) []models.Event {
	var out []models.Event
	for _, ev := range p.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (p *Publisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
