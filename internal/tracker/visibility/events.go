package visibility

import "sync"

// KeyEscape is the key name of the Escape key.
const KeyEscape = "Escape"

// PointerEvent is a pointer-down anywhere in the document.
type PointerEvent struct {
	Target string `json:"target"`
}

// KeyEvent is a key-down anywhere in the document.
type KeyEvent struct {
	Key string `json:"key"`
}

// EventSource registers document-level listeners. The returned function detaches the listener.
type EventSource interface {
	OnPointerDown(func(PointerEvent)) (detach func())
	OnKeyDown(func(KeyEvent)) (detach func())
}

// EventBus is an in-memory EventSource fed by the presentation layer.
type EventBus struct {
	mu      sync.Mutex
	nextID  uint64
	pointer map[uint64]func(PointerEvent)
	keys    map[uint64]func(KeyEvent)
}

// NewEventBus creates an EventBus with no listeners.
func NewEventBus() *EventBus {
	return &EventBus{
		pointer: make(map[uint64]func(PointerEvent)),
		keys:    make(map[uint64]func(KeyEvent)),
	}
}

func (b *EventBus) OnPointerDown(fn func(PointerEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.pointer[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.pointer, id)
	}
}

func (b *EventBus) OnKeyDown(fn func(KeyEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.keys[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.keys, id)
	}
}

// PointerDown delivers a pointer-down event to the attached listeners.
func (b *EventBus) PointerDown(ev PointerEvent) {
	b.mu.Lock()
	handlers := make([]func(PointerEvent), 0, len(b.pointer))
	for _, fn := range b.pointer {
		handlers = append(handlers, fn)
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// KeyDown delivers a key-down event to the attached listeners.
func (b *EventBus) KeyDown(ev KeyEvent) {
	b.mu.Lock()
	handlers := make([]func(KeyEvent), 0, len(b.keys))
	for _, fn := range b.keys {
		handlers = append(handlers, fn)
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// Listeners returns the number of attached listeners.
func (b *EventBus) Listeners() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pointer) + len(b.keys)
}
