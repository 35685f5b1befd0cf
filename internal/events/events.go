// Package events fans translation progress out to listeners such as the panel
// websocket and the CLI progress printer.
package events

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
)

const (
	ActionSectionComplete     = "translationSectionComplete"
	ActionTranslationComplete = "translationComplete"
	ActionTranslationFailed   = "translationFailed"
)

const subscriberBuffer = 100

// ErrNoListener is returned by Publish when nobody is subscribed. Callers
// treat it as informational.
var ErrNoListener = errors.New("no listener for event")

// SectionProgress describes one finished section.
type SectionProgress struct {
	SectionIndex      int
	TotalSections     int
	TranslatedContent string
	Heading           string
	HasHeading        bool
	Percentage        int
	UsedFallback      bool
}

// Event is one message on the bus. Progress is set for section events,
// TranslatedMarkdown for completion and Error/ErrorKind for failure.
type Event struct {
	Action             string
	ArticleID          int64
	Progress           *SectionProgress
	TranslatedMarkdown string
	Error              string
	ErrorKind          string
}

func (e Event) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"action":    e.Action,
		"articleId": e.ArticleID,
	}

	switch e.Action {
	case ActionSectionComplete:
		if p := e.Progress; p != nil {
			out["sectionIndex"] = p.SectionIndex
			out["totalSections"] = p.TotalSections
			out["translatedContent"] = p.TranslatedContent
			out["percentage"] = p.Percentage
			out["usedFallback"] = p.UsedFallback
			if p.HasHeading {
				out["heading"] = p.Heading
			} else {
				out["heading"] = nil
			}
		}
	case ActionTranslationComplete:
		out["translatedMarkdown"] = e.TranslatedMarkdown
	case ActionTranslationFailed:
		out["error"] = e.Error
		out["errorKind"] = e.ErrorKind
	}

	return json.Marshal(out)
}

// Bus delivers events to buffered subscriber channels without blocking the
// publisher. A full subscriber misses the event.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	dropped     atomic.Int64
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]chan Event)}
}

// Subscribe registers name and returns its channel plus a cancel func that
// unsubscribes and closes the channel. Subscribing an existing name replaces
// the previous subscriber.
func (b *Bus) Subscribe(name string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if old, ok := b.subscribers[name]; ok {
		close(old)
	}
	b.subscribers[name] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if current, ok := b.subscribers[name]; ok && current == ch {
				delete(b.subscribers, name)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Publish sends event to every subscriber.
func (b *Bus) Publish(event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.subscribers) == 0 {
		return ErrNoListener
	}
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Dropped returns how many deliveries were skipped because a subscriber was
// full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
