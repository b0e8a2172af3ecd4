// Package events describes assignment changes fanned out to subscribers.
package events

import (
	"context"
	"time"
)

type Kind string

const (
	KindAttached Kind = "attached"
	KindSynced   Kind = "synced"
	KindUpdated  Kind = "updated"
	KindDetached Kind = "detached"
	KindRestored Kind = "restored"
)

// Change is one successful mutation of a project's assignments. Id lists hold
// member ids.
type Change struct {
	ProjectID   uint      `json:"project_id"`
	ProjectName string    `json:"project_name"`
	Kind        Kind      `json:"kind"`
	Attached    []uint    `json:"attached"`
	Detached    []uint    `json:"detached"`
	Updated     []uint    `json:"updated"`
	Restored    []uint    `json:"restored"`
	Actor       string    `json:"actor"`
	At          time.Time `json:"at"`
}

func (c Change) Empty() bool {
	return len(c.Attached) == 0 && len(c.Detached) == 0 && len(c.Updated) == 0 && len(c.Restored) == 0
}

// Publisher receives changes after they are committed. Implementations must
// not block the caller on slow subscribers and report failures themselves.
type Publisher interface {
	Publish(ctx context.Context, change Change)
}
