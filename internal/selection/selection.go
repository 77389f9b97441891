// Package selection holds the single selected node shared by every view of a query.
package selection

import (
	"sync"
)

// State is a snapshot of the selection slot.
type State struct {
	NodeID   int
	Selected bool
}

// Listener observes selection changes.
type Listener func(State)

type subscriber struct {
	id int
	fn Listener
}

// Coordinator is a single-slot selection. It is safe for concurrent use.
type Coordinator struct {
	mu     sync.Mutex
	state  State
	subs   []subscriber
	nextID int
}

// New returns an unselected coordinator.
func New() *Coordinator {
	return &Coordinator{}
}

// Select marks nodeID as selected. Selecting the current node does nothing.
func (c *Coordinator) Select(nodeID int) {
	c.set(State{NodeID: nodeID, Selected: true})
}

// Clear drops the selection.
func (c *Coordinator) Clear() {
	c.set(State{})
}

// QueryChanged drops the selection because the active query changed.
func (c *Coordinator) QueryChanged() {
	c.set(State{})
}

// Current returns the selected node, if any.
func (c *Coordinator) Current() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.NodeID, c.state.Selected
}

// State returns the current snapshot.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsSelected reports whether nodeID is the selected node.
func (c *Coordinator) IsSelected(nodeID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Selected && c.state.NodeID == nodeID
}

// Subscribe registers fn for every change. Listeners run synchronously in
// registration order, after the change and without the lock held.
// The returned func removes the listener.
func (c *Coordinator) Subscribe(fn Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, sub := range c.subs {
			if sub.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

func (c *Coordinator) set(next State) {
	c.mu.Lock()
	if c.state == next {
		c.mu.Unlock()
		return
	}
	c.state = next
	subs := append([]subscriber(nil), c.subs...)
	c.mu.Unlock()

	for _, sub := range subs {
		sub.fn(next)
	}
}
