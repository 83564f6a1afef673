package session

import "sync"

// Emitter fans session events out to registered listeners. Providers embed it
// to implement OnSessionEvent.
type Emitter struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(Event, *Session)
}

func (e *Emitter) OnSessionEvent(fn func(event Event, session *Session)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = map[int]func(Event, *Session){}
	}

	id := e.nextID
	e.nextID++
	e.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.listeners, id)
		})
	}
}

// Emit calls every listener outside the lock, so listeners may query the
// provider again.
func (e *Emitter) Emit(event Event, s *Session) {
	e.mu.Lock()
	listeners := make([]func(Event, *Session), 0, len(e.listeners))
	for _, fn := range e.listeners {
		listeners = append(listeners, fn)
	}
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(event, s)
	}
}
