package mailbox

import "sync"

// SeenCache remembers, per student, the message ids already fetched by this
// process. It is never persisted.
type SeenCache struct {
	mu  sync.Mutex
	ids map[string]map[string]struct{}
}

// NewSeenCache returns an empty cache.
func NewSeenCache() *SeenCache {
	return &SeenCache{ids: make(map[string]map[string]struct{})}
}

// Seen reports whether id was already fetched for studentID.
func (c *SeenCache) Seen(studentID, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.ids[studentID][id]
	return ok
}

// Add records id as fetched for studentID.
func (c *SeenCache) Add(studentID, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.ids[studentID]
	if !ok {
		set = make(map[string]struct{})
		c.ids[studentID] = set
	}
	set[id] = struct{}{}
}

// Len returns how many ids are cached for studentID.
func (c *SeenCache) Len(studentID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids[studentID])
}
