package selection_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mickamy/planlens/internal/selection"
)

func TestSelectThenClear(t *testing.T) {
	c := selection.New()

	c.Select(5)
	c.Select(7)
	id, ok := c.Current()
	assert.True(t, ok)
	assert.Equal(t, 7, id)
	assert.True(t, c.IsSelected(7))
	assert.False(t, c.IsSelected(5))

	c.Clear()
	_, ok = c.Current()
	assert.False(t, ok)
}

func TestQueryChangedAlwaysUnselects(t *testing.T) {
	c := selection.New()
	c.QueryChanged()
	assert.Equal(t, selection.State{}, c.State())

	c.Select(3)
	c.QueryChanged()
	assert.Equal(t, selection.State{}, c.State())
}

func TestSelectingNodeZero(t *testing.T) {
	c := selection.New()
	c.Select(0)
	assert.True(t, c.IsSelected(0))
	assert.Equal(t, selection.State{NodeID: 0, Selected: true}, c.State())
}

func TestReselectDoesNotNotify(t *testing.T) {
	c := selection.New()
	var got []selection.State
	c.Subscribe(func(s selection.State) { got = append(got, s) })

	c.Select(4)
	c.Select(4)
	c.Clear()
	c.Clear()

	assert.Equal(t, []selection.State{
		{NodeID: 4, Selected: true},
		{},
	}, got)
}

func TestListenersRunInOrderAndSeeNewState(t *testing.T) {
	c := selection.New()
	var order []string
	c.Subscribe(func(s selection.State) {
		// reading back must not deadlock and must see the new value
		id, _ := c.Current()
		assert.Equal(t, s.NodeID, id)
		order = append(order, "bar")
	})
	c.Subscribe(func(selection.State) { order = append(order, "graph") })
	c.Subscribe(func(selection.State) { order = append(order, "table") })

	c.Select(9)

	assert.Equal(t, []string{"bar", "graph", "table"}, order)
}

func TestUnsubscribe(t *testing.T) {
	c := selection.New()
	calls := 0
	stop := c.Subscribe(func(selection.State) { calls++ })

	c.Select(1)
	stop()
	stop()
	c.Select(2)

	assert.Equal(t, 1, calls)
}

func TestConcurrentSelect(t *testing.T) {
	c := selection.New()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.Select(id)
			_ = c.IsSelected(id)
		}(i)
	}
	wg.Wait()

	id, ok := c.Current()
	assert.True(t, ok)
	assert.GreaterOrEqual(t, id, 0)
	assert.Less(t, id, 32)
}
