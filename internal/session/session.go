// Package session carries the identity of whoever is using the app: a guest or a user
// authenticated by the external identity provider.
package session

import (
	"context"
	"sync"
)

// Identity is the current session owner. The zero value is the guest.
type Identity struct {
	UserID string
}

// Guest is the unauthenticated identity.
var Guest = Identity{}

// User returns the identity of an authenticated user.
func User(id string) Identity {
	return Identity{UserID: id}
}

// Authenticated reports whether the identity belongs to a signed-in user.
func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

// String is the identity as it appears in logs.
func (i Identity) String() string {
	if !i.Authenticated() {
		return "guest"
	}
	return i.UserID
}

type ctxKey struct{}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity attached to ctx, or Guest.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(ctxKey{}).(Identity); ok {
		return id
	}
	return Guest
}

// Tracker holds the identity of a single client session and notifies subscribers on every
// sign-in or sign-out.
type Tracker struct {
	mu        sync.Mutex
	current   Identity
	listeners []func(Identity)
}

// NewTracker starts as guest.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Current returns the tracked identity.
func (t *Tracker) Current() Identity {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Context attaches the tracked identity to ctx.
func (t *Tracker) Context(ctx context.Context) context.Context {
	return WithIdentity(ctx, t.Current())
}

// Subscribe registers fn for identity transitions.
func (t *Tracker) Subscribe(fn func(Identity)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// SignIn switches to the given user.
func (t *Tracker) SignIn(userID string) {
	t.set(User(userID))
}

// SignOut switches back to guest.
func (t *Tracker) SignOut() {
	t.set(Guest)
}

func (t *Tracker) set(id Identity) {
	t.mu.Lock()
	if t.current == id {
		t.mu.Unlock()
		return
	}
	t.current = id
	listeners := append([]func(Identity){}, t.listeners...)
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(id)
	}
}
