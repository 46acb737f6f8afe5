package cas

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timewinder-dev/onelane/bridge"
)

func TestMemoryCASDeduplicates(t *testing.T) {
	c := NewMemoryCAS()

	h1, err := c.Put(snapshotWithLoad(2))
	require.NoError(t, err)
	h2, err := c.Put(snapshotWithLoad(2))
	require.NoError(t, err)
	h3, err := c.Put(snapshotWithLoad(3))
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "equal snapshots hash equal")
	assert.NotEqual(t, h1, h3)
	assert.Equal(t, 2, c.Len())
}

func TestMemoryCASRetrieve(t *testing.T) {
	c := NewMemoryCAS()
	in := snapshotWithLoad(3)
	in.Seq = 42
	in.Event = bridge.Event{Kind: bridge.Admitted, Vehicle: 2, Direction: bridge.TowardA}
	in.Signaled = bridge.TowardB
	in.Waiting[bridge.TowardB] = []int{7, 9}
	in.WaitingCount[bridge.TowardB] = 2

	h, err := c.Put(in)
	require.NoError(t, err)

	out, err := Retrieve[bridge.Snapshot](c, h)
	require.NoError(t, err)
	assert.Equal(t, *in, *out)

	_, err = Retrieve[bridge.Snapshot](c, Hash(1))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCASConcurrentPut(t *testing.T) {
	c := NewMemoryCAS()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := c.Put(snapshotWithLoad(j % 5))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, c.Len())
}
