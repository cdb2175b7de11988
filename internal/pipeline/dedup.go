package pipeline

import (
	"container/list"
	"sync"

	"github.com/google/uuid"
)

// dedupSet remembers the most recent event ids it has seen so a
// redelivered event (the ingest layer's retry path, or a GoldSrc
// server resending a log line) is processed at most once. Bounded by
// capacity; oldest ids are evicted first.
type dedupSet struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	index    map[uuid.UUID]*list.Element
}

func newDedupSet(capacity int) *dedupSet {
	if capacity < 1 {
		capacity = 1
	}
	return &dedupSet{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[uuid.UUID]*list.Element),
	}
}

// seen reports whether id was already recorded, recording it if not.
func (d *dedupSet) seen(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.index[id]; ok {
		return true
	}

	elem := d.order.PushBack(id)
	d.index[id] = elem

	if d.order.Len() > d.capacity {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.index, oldest.Value.(uuid.UUID))
	}
	return false
}
