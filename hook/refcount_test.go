package hook

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInDetourCounting(t *testing.T) {
	r := &record{}
	require.Zero(t, loadInDetour(r))

	incInDetour(r)
	incInDetour(r)
	require.Equal(t, int32(2), loadInDetour(r))

	decInDetour(r)
	require.Equal(t, int32(1), loadInDetour(r))

	decInDetour(r)
	require.Zero(t, loadInDetour(r))
}

func TestInDetourConcurrent(t *testing.T) {
	r := &record{}
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			incInDetour(r)
			decInDetour(r)
		}()
	}
	wg.Wait()
	require.Zero(t, loadInDetour(r))
}
