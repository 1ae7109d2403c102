package engage

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cooldown remembers when each account was last analyzed.
type Cooldown struct {
	window time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

func NewCooldown(window time.Duration) *Cooldown {
	return &Cooldown{window: window, last: make(map[string]time.Time)}
}

// IsOnCooldown reports whether accountID was recorded less than one window before now.
func (c *Cooldown) IsOnCooldown(accountID string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.last[accountID]
	return ok && now.Before(t.Add(c.window))
}

// Record overwrites the last analysis time for accountID.
// Call it only after the reply for that analysis was posted.
func (c *Cooldown) Record(accountID string, now time.Time) {
	c.mu.Lock()
	c.last[accountID] = now
	c.mu.Unlock()
}

// Sweep drops entries whose window has elapsed and returns how many were removed.
// A dropped entry would report "not on cooldown" anyway.
func (c *Cooldown) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, t := range c.last {
		if !now.Before(t.Add(c.window)) {
			delete(c.last, id)
			n++
		}
	}
	return n
}

func (c *Cooldown) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.last)
}

// Processed is the set of trigger tweet ids already handled,
// bounded to the most recent capacity ids.
type Processed struct {
	ids *lru.Cache[string, struct{}]
}

func NewProcessed(capacity int) (*Processed, error) {
	c, err := lru.New[string, struct{}](capacity)
	if err != nil {
		return nil, err
	}
	return &Processed{ids: c}, nil
}

func (p *Processed) Add(id string)           { p.ids.Add(id, struct{}{}) }
func (p *Processed) Contains(id string) bool { return p.ids.Contains(id) }
func (p *Processed) Len() int                { return p.ids.Len() }
