// Package identity tracks the current user context. Every local collection
// key is namespaced by the current identity, and the sync engine only moves
// data for authenticated (non-guest) identities.
package identity

import (
	"context"
	"sync"
)

// Guest is the sentinel identity for anonymous use. Guest data is local-only
// and never leaves the device.
const Guest = "guest-user"

// TokenSource supplies a currently valid bearer token for the REST remote
// transport. Token acquisition and refresh belong to the external auth
// collaborator; the core only consumes tokens.
type TokenSource interface {
	IDToken(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed token. Used in tests and by
// callers that refresh out of band.
type StaticToken string

// IDToken implements TokenSource.
func (t StaticToken) IDToken(ctx context.Context) (string, error) {
	return string(t), nil
}

// Context holds the current identity and notifies observers on transitions.
// The auth collaborator calls SetIdentity on every sign-in, sign-out and
// guest transition.
type Context struct {
	mu        sync.RWMutex
	id        string
	observers []func(previous, current string)
}

// NewContext creates an identity context starting as guest.
func NewContext() *Context {
	return &Context{id: Guest}
}

// Current returns the active identity, Guest when signed out.
func (c *Context) Current() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// IsGuest reports whether the active identity is the guest sentinel.
func (c *Context) IsGuest() bool {
	return c.Current() == Guest
}

// SetIdentity switches the active identity. An empty id means guest.
// Observers run synchronously, outside the lock, only on actual transitions.
func (c *Context) SetIdentity(id string) {
	if id == "" {
		id = Guest
	}
	c.mu.Lock()
	previous := c.id
	if previous == id {
		c.mu.Unlock()
		return
	}
	c.id = id
	observers := make([]func(string, string), len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(previous, id)
	}
}

// OnChange registers an observer for identity transitions.
func (c *Context) OnChange(fn func(previous, current string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}
