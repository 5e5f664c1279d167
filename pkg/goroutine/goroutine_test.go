package goroutine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	a := RegisterGoroutine("device 10.0.0.1:22")
	b := RegisterGoroutine("device 10.0.0.2:22")

	names := ActiveNames()
	assert.Contains(t, names, "device 10.0.0.1:22")
	assert.Contains(t, names, "device 10.0.0.2:22")

	DeregisterGoroutine(a)
	assert.NotContains(t, ActiveNames(), "device 10.0.0.1:22")
	DeregisterGoroutine(b)
	assert.NotContains(t, ActiveNames(), "device 10.0.0.2:22")
}

func TestRegistryConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := RegisterGoroutine("worker")
			DeregisterGoroutine(id)
		}()
	}
	wg.Wait()
	for _, w := range Active() {
		assert.NotEqual(t, "worker", w.Name)
	}
}
