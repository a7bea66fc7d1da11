package slack

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/zbigniewsiwiec/slack-intel/pkg/model"
)

// UserCache is a process-lifetime map of user_id to user record. Lookups of
// an unknown id coalesce into one remote fetch; all waiters get the same
// result or the same error. Entries are never evicted during a run.
type UserCache struct {
	mtx   sync.RWMutex
	users map[string]*model.User
	group singleflight.Group
}

func NewUserCache() *UserCache {
	return &UserCache{users: make(map[string]*model.User)}
}

// Get returns the cached record for id, if any.
func (c *UserCache) Get(id string) (*model.User, bool) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	u, ok := c.users[id]
	return u, ok
}

// Put stores a record, replacing any previous one.
func (c *UserCache) Put(u *model.User) {
	if u == nil || u.ID == "" {
		return
	}
	c.mtx.Lock()
	c.users[u.ID] = u
	c.mtx.Unlock()
}

// GetOrFetch returns the cached record for id, fetching it at most once
// across concurrent callers. Fetch errors are not cached.
func (c *UserCache) GetOrFetch(ctx context.Context, id string, fetch func(ctx context.Context) (*model.User, error)) (*model.User, error) {
	if u, ok := c.Get(id); ok {
		return u, nil
	}

	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		// Re-check under the flight: another caller may have stored it
		// between the miss and the flight starting.
		if u, ok := c.Get(id); ok {
			return u, nil
		}
		u, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.Put(u)
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.User), nil
}

// Len reports the number of cached users.
func (c *UserCache) Len() int {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return len(c.users)
}

// Snapshot copies the cache for external readers, so internal locks are
// never exposed.
func (c *UserCache) Snapshot() map[string]*model.User {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	out := make(map[string]*model.User, len(c.users))
	for id, u := range c.users {
		cp := *u
		out[id] = &cp
	}
	return out
}
