// Package goroutine keeps a registry of named worker goroutines so an interrupted run can report
// what was still in flight.
package goroutine

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Worker struct {
	ID      uint64
	Name    string
	Started time.Time
}

var (
	goroutineCounter uint64
	goroutineMap     sync.Map
)

// RegisterGoroutine records a running goroutine and returns its ID for DeregisterGoroutine.
func RegisterGoroutine(name string) uint64 {
	id := atomic.AddUint64(&goroutineCounter, 1)
	goroutineMap.Store(id, Worker{ID: id, Name: name, Started: time.Now()})
	return id
}

func DeregisterGoroutine(id uint64) {
	goroutineMap.Delete(id)
}

// Active returns the registered goroutines, oldest first.
func Active() []Worker {
	var workers []Worker
	goroutineMap.Range(func(_, value interface{}) bool {
		if w, ok := value.(Worker); ok {
			workers = append(workers, w)
		}
		return true
	})
	sort.Slice(workers, func(i, j int) bool { return workers[i].ID < workers[j].ID })
	return workers
}

// ActiveNames returns the names of Active.
func ActiveNames() []string {
	workers := Active()
	names := make([]string, 0, len(workers))
	for _, w := range workers {
		names = append(names, w.Name)
	}
	return names
}
