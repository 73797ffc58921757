// Package lru implements the bounded, insertion-ordered recent-acquaintances
// window kept per observer (spec §4.2 source 1). It is grounded on the
// original's LinkedHashMap-backed LRU, but implements the capacity the spec
// calls for: size never exceeds K, rather than K-1 (see design notes on the
// off-by-one in the source's removeEldestEntry check).
package lru

import (
	"container/list"

	"github.com/zidek-labs/bellrock/internal/model"
)

// Cache is a bounded, most-recently-touched-first collection of UIDs with no
// duplicates. It is not safe for concurrent use; callers serialize access
// per observer.
type Cache struct {
	capacity int
	order    *list.List // front = most recent
	index    map[model.UID]*list.Element
}

// New returns an empty cache with the given capacity. Capacity <= 0 is not a
// supported configuration: every touched entry is evicted at once, so the
// window stays empty.
func New(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[model.UID]*list.Element),
	}
}

// Touch records uid as the most recently resolved user, moving it to the
// front if already present, evicting the least-recently-touched entry if
// the cache is at capacity.
func (c *Cache) Touch(uid model.UID) {
	if el, ok := c.index[uid]; ok {
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(uid)
	c.index[uid] = el
	for c.order.Len() > c.capacity {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.order.Remove(back)
		delete(c.index, back.Value.(model.UID))
	}
}

// Contains reports whether uid is currently in the window.
func (c *Cache) Contains(uid model.UID) bool {
	_, ok := c.index[uid]
	return ok
}

// Len returns the current number of entries.
func (c *Cache) Len() int { return c.order.Len() }

// Items returns the window contents, most-recently-touched first.
func (c *Cache) Items() []model.UID {
	out := make([]model.UID, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(model.UID))
	}
	return out
}
