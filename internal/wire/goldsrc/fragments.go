package goldsrc

import (
	"sort"
	"time"
)

// fragmentExpiry is the deadline from first-fragment arrival after which
// an incomplete bucket is dropped without completion (§3, §8 property 4).
const fragmentExpiry = 2 * time.Second

type bucket struct {
	total    int
	payloads map[int][]byte
	deadline time.Time
}

// FragmentAssembler owns every in-flight fragment bucket for a single
// GoldSrc connection. It is never shared across connections (§5 mutual
// exclusion: "owned exclusively by the codec instance inside one
// connection").
type FragmentAssembler struct {
	buckets map[int32]*bucket
	now     func() time.Time
}

// NewFragmentAssembler builds an assembler. now defaults to time.Now;
// tests may override it to exercise expiry deterministically.
func NewFragmentAssembler() *FragmentAssembler {
	return &FragmentAssembler{
		buckets: make(map[int32]*bucket),
		now:     time.Now,
	}
}

// Feed records one fragment. When all indices 0..total-1 for its
// packet-id have arrived, it returns the assembled, classified Frame
// and forgets the bucket. Feed also evicts any bucket whose deadline
// has passed, regardless of packet-id, so the map never grows unbounded
// from abandoned servers.
func (a *FragmentAssembler) Feed(packetID int32, total, index int, payload []byte) (Frame, bool) {
	now := a.now()
	a.evictExpired(now)

	b, ok := a.buckets[packetID]
	if !ok {
		buf := make([]byte, len(payload))
		copy(buf, payload)
		b = &bucket{
			total:    total,
			payloads: map[int][]byte{index: buf},
			deadline: now.Add(fragmentExpiry),
		}
		a.buckets[packetID] = b
	} else {
		buf := make([]byte, len(payload))
		copy(buf, payload)
		b.payloads[index] = buf
		if total > b.total {
			b.total = total
		}
	}

	if len(b.payloads) < b.total {
		return Frame{}, false
	}

	indices := make([]int, 0, len(b.payloads))
	for idx := range b.payloads {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	ordered := make([][]byte, 0, len(indices))
	for _, idx := range indices {
		ordered = append(ordered, b.payloads[idx])
	}

	delete(a.buckets, packetID)
	return AssembleBody(ordered), true
}

// evictExpired drops any bucket whose 2s deadline from first-fragment
// arrival has passed without completing.
func (a *FragmentAssembler) evictExpired(now time.Time) {
	for id, b := range a.buckets {
		if now.After(b.deadline) {
			delete(a.buckets, id)
		}
	}
}

// Pending reports how many fragment buckets are currently in flight;
// used by tests and metrics.
func (a *FragmentAssembler) Pending() int {
	return len(a.buckets)
}
