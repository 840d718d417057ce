// Package notify fans playback notifications out to listeners.
package notify

import (
	"sync"

	"PlayDeck/model"
)

// Listener receives notifications synchronously on the emitting goroutine.
// Listeners must not call back into the emitter's owner.
type Listener func(model.Event)

// Emitter keeps an ordered set of listeners.
type Emitter struct {
	mu        sync.RWMutex
	nextID    int
	order     []int
	listeners map[int]Listener
}

// Subscribe registers l and returns a function that removes it.
func (e *Emitter) Subscribe(l Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[int]Listener)
	}
	id := e.nextID
	e.nextID++
	e.listeners[id] = l
	e.order = append(e.order, id)

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
		for i, v := range e.order {
			if v == id {
				e.order = append(e.order[:i], e.order[i+1:]...)
				break
			}
		}
	}
}

// Emit delivers ev to every listener in subscription order.
func (e *Emitter) Emit(ev model.Event) {
	e.mu.RLock()
	ls := make([]Listener, 0, len(e.order))
	for _, id := range e.order {
		ls = append(ls, e.listeners[id])
	}
	e.mu.RUnlock()

	for _, l := range ls {
		l(ev)
	}
}
