// Package kb is the spacecraft arena: the owning registry of every
// spacecraft's dynamics, addressed by stable integer id. Other parts of
// the simulation hold ids rather than references and learn about
// removals through events.
package kb

import (
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/spacecraft-simulator/core/dynamics"
	"github.com/signalsfoundry/spacecraft-simulator/model"
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventSpacecraftAdded EventType = iota
	EventSpacecraftRemoved
)

func (t EventType) String() string {
	switch t {
	case EventSpacecraftAdded:
		return "added"
	case EventSpacecraftRemoved:
		return "removed"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is emitted to subscribers after the registry has changed.
type Event struct {
	Type EventType
	ID   int
	Name string
}

type entry struct {
	name  string
	state dynamics.State
}

// KnowledgeBase is an in-memory, thread-safe spacecraft registry.
type KnowledgeBase struct {
	mu sync.RWMutex

	spacecraft map[int]entry

	nextSub int
	subs    map[int]func(Event)
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		spacecraft: make(map[int]entry),
		subs:       make(map[int]func(Event)),
	}
}

// AddSpacecraft registers the dynamics of spacecraft id.
func (kb *KnowledgeBase) AddSpacecraft(id int, name string, s dynamics.State) error {
	if s == nil {
		return fmt.Errorf("kb: spacecraft %d has no dynamics: %w", id, model.ErrInvalidConfiguration)
	}
	kb.mu.Lock()
	if _, exists := kb.spacecraft[id]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("kb: spacecraft %d already exists: %w", id, model.ErrInvalidConfiguration)
	}
	kb.spacecraft[id] = entry{name: name, state: s}
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, Event{Type: EventSpacecraftAdded, ID: id, Name: name})
	return nil
}

// RemoveSpacecraft drops spacecraft id and notifies subscribers.
func (kb *KnowledgeBase) RemoveSpacecraft(id int) error {
	kb.mu.Lock()
	e, ok := kb.spacecraft[id]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("kb: spacecraft %d not found: %w", id, model.ErrUnknownEntity)
	}
	delete(kb.spacecraft, id)
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	notify(subs, Event{Type: EventSpacecraftRemoved, ID: id, Name: e.name})
	return nil
}

// Spacecraft returns the dynamics of id.
func (kb *KnowledgeBase) Spacecraft(id int) (dynamics.State, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	e, ok := kb.spacecraft[id]
	return e.state, ok
}

// Name returns the registered name of id.
func (kb *KnowledgeBase) Name(id int) string {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.spacecraft[id].name
}

// IDs returns every registered id in ascending order.
func (kb *KnowledgeBase) IDs() []int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	ids := make([]int, 0, len(kb.spacecraft))
	for id := range kb.spacecraft {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Len returns the number of registered spacecraft.
func (kb *KnowledgeBase) Len() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.spacecraft)
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextSub
	kb.nextSub++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}

// subscribersLocked returns subscribers in subscription order.
func (kb *KnowledgeBase) subscribersLocked() []func(Event) {
	keys := make([]int, 0, len(kb.subs))
	for k := range kb.subs {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]func(Event), 0, len(keys))
	for _, k := range keys {
		out = append(out, kb.subs[k])
	}
	return out
}

func notify(subs []func(Event), e Event) {
	for _, sub := range subs {
		sub(e)
	}
}
