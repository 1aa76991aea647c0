package orchestrator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockTable_SerializesSameID(t *testing.T) {
	table := newLockTable()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			table.Lock("corr-1")
			counter++
			table.Unlock("corr-1")
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
	assert.Equal(t, 0, table.Len())
}

func TestLockTable_DifferentIDsDoNotBlock(t *testing.T) {
	table := newLockTable()

	table.Lock("corr-a")
	done := make(chan struct{})
	go func() {
		table.Lock("corr-b")
		table.Unlock("corr-b")
		close(done)
	}()

	// corr-b must proceed while corr-a is held.
	<-done
	table.Unlock("corr-a")
	assert.Equal(t, 0, table.Len())
}

func TestLockTable_DropsEntriesWhenReleased(t *testing.T) {
	table := newLockTable()

	table.Lock("corr-1")
	table.Lock("corr-2")
	assert.Equal(t, 2, table.Len())

	table.Unlock("corr-1")
	assert.Equal(t, 1, table.Len())

	table.Unlock("corr-2")
	assert.Equal(t, 0, table.Len())
}
