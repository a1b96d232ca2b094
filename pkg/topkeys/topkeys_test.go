package topkeys

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupUntouchedKeyIsZero(t *testing.T) {
	table := New()
	assert.Equal(t, Snapshot{}, table.Lookup("never-touched"))
}

func TestCountersAccumulatePerKey(t *testing.T) {
	table := New()
	table.IncrCmdGet("k")
	table.IncrCmdGet("k")
	table.IncrCmdSet("k")
	table.IncrRetry("k")
	table.IncrTmpFail("k")

	snap := table.Lookup("k")
	assert.Equal(t, Snapshot{Get: 2, Set: 1, Retry: 1, TmpFail: 1}, snap)
}

func TestCountersAreIsolatedPerKey(t *testing.T) {
	table := New()
	table.IncrCmdGet("a")
	table.IncrCmdSet("b")

	assert.Equal(t, uint64(1), table.Lookup("a").Get)
	assert.Equal(t, uint64(0), table.Lookup("a").Set)
	assert.Equal(t, uint64(1), table.Lookup("b").Set)
	assert.Equal(t, uint64(0), table.Lookup("b").Get)
}

func TestConcurrentIncrementsAreNotLost(t *testing.T) {
	table := New()
	const goroutines = 50
	const perGoroutine = 200

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				table.IncrCmdGet("hot-key")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(goroutines*perGoroutine), table.Lookup("hot-key").Get)
}

func TestShardingDistributesManyKeysWithoutLosingCounts(t *testing.T) {
	table := New()
	for i := 0; i < 500; i++ {
		table.IncrCmdSet(fmt.Sprintf("key-%d", i))
	}
	for i := 0; i < 500; i++ {
		assert.Equal(t, uint64(1), table.Lookup(fmt.Sprintf("key-%d", i)).Set)
	}
}
