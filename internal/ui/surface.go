package ui

import (
	"sync"
)

// Node is the rendered, serializable form of a widget tree.
type Node struct {
	Kind     Kind              `json:"kind"`
	Key      string            `json:"key,omitempty"`
	Props    map[string]any    `json:"props,omitempty"`
	Style    map[string]string `json:"style,omitempty"`
	Children []Node            `json:"children,omitempty"`
}

// Surface is the single clearable output region a router renders into.
type Surface interface {
	Clear()
	Display(n Node)
}

// Screen is a snapshot of an Output. Root is nil while the output is cleared.
type Screen struct {
	Version uint64 `json:"version"`
	Root    *Node  `json:"root"`
}

// Output is an in-memory Surface holding the latest screen. It can be read
// and subscribed to from any goroutine.
type Output struct {
	mu     sync.Mutex
	screen Screen
	nextID int
	subs   map[int]chan Screen
}

func NewOutput() *Output {
	return &Output{subs: make(map[int]chan Screen)}
}

func (o *Output) Clear() {
	o.update(nil)
}

func (o *Output) Display(n Node) {
	o.update(&n)
}

func (o *Output) update(root *Node) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.screen = Screen{Version: o.screen.Version + 1, Root: root}
	for _, c := range o.subs {
		// Subscribers only care about the latest screen: replace what they have not read yet.
		select {
		case <-c:
		default:
		}
		c <- o.screen
	}
}

func (o *Output) Snapshot() Screen {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.screen
}

// Subscribe returns a channel receiving the current screen and then every
// later one. Slow readers skip intermediate screens.
func (o *Output) Subscribe() (screens <-chan Screen, cancel func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	c := make(chan Screen, 1)
	c <- o.screen
	o.nextID++
	id := o.nextID
	o.subs[id] = c

	return c, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subs, id)
	}
}
