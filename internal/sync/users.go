package sync

import (
	"context"
	"log"
	"sync"

	"github.com/dbvcapital/statusboard/internal/notion"
)

// Labels used when an author cannot be named.
const (
	UnknownAuthor = "Alguém"
	UnnamedUser   = "Usuário"
)

// UserLookup fetches a workspace member.
type UserLookup interface {
	RetrieveUser(ctx context.Context, userID string) (*notion.User, error)
}

// UserCache resolves user ids to display names, fetching each id at most
// once. Failed lookups are not cached, so a later call may succeed.
type UserCache struct {
	users  UserLookup
	logger *log.Logger

	mu    sync.Mutex
	names map[string]string
}

// NewUserCache creates an empty cache.
func NewUserCache(users UserLookup, logger *log.Logger) *UserCache {
	if logger == nil {
		logger = defaultLogger()
	}
	return &UserCache{users: users, logger: logger, names: make(map[string]string)}
}

// Name returns the display name of userID.
func (c *UserCache) Name(ctx context.Context, userID string) string {
	if userID == "" {
		return UnknownAuthor
	}

	c.mu.Lock()
	name, ok := c.names[userID]
	c.mu.Unlock()
	if ok {
		return name
	}

	u, err := c.users.RetrieveUser(ctx, userID)
	if err != nil {
		c.logger.Printf("WARNING: failed to look up user %s: %v", userID, err)
		return UnknownAuthor
	}
	name = u.Name
	if name == "" {
		name = UnnamedUser
	}

	c.mu.Lock()
	c.names[userID] = name
	c.mu.Unlock()
	return name
}

// Len returns the number of cached names.
func (c *UserCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.names)
}
