package webhook

import "sync"

// Slack redelivers events it considers unacknowledged; remembering the
// most recent keys is enough to absorb retries without unbounded growth.
const dedupCapacity = 1000

// dedupSet is a fixed-capacity set of recently seen event keys. When
// full, the oldest key is evicted.
type dedupSet struct {
	mu    sync.Mutex
	keys  map[string]struct{}
	order []string
	cap   int
}

func newDedupSet(capacity int) *dedupSet {
	return &dedupSet{
		keys: make(map[string]struct{}, capacity),
		cap:  capacity,
	}
}

// Seen reports whether key was already recorded, recording it if not.
func (d *dedupSet) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.keys[key]; ok {
		return true
	}
	if len(d.order) >= d.cap {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.keys, oldest)
	}
	d.keys[key] = struct{}{}
	d.order = append(d.order, key)
	return false
}
