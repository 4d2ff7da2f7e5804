// Package engagement keeps a client-side view of likes and comments in sync
// with the likes and comments services.
//
// Mutations are optimistic: the Cache is updated and subscribers notified
// before the remote call, and the change is rolled back from a snapshot when
// the call fails. Reads are read-through with per-item staleness and a global
// throttle for batch refreshes.
package engagement

import (
	"strings"
	"time"
)

// TempIDPrefix marks comments that exist only locally while their submission
// is in flight. Server ids are UUIDs and never carry it.
const TempIDPrefix = "temp-"

// Identity is the signed-in user as reported by the identity provider.
// It is passed through opaquely.
type Identity struct {
	UserID      string
	DisplayName string
}

type LikeState struct {
	Count int
	Liked bool
}

// toggled flips Liked and moves Count by one, never below zero
func (s LikeState) toggled() LikeState {
	next := LikeState{Liked: !s.Liked, Count: s.Count}
	if next.Liked {
		next.Count++
	} else {
		next.Count--
	}
	if next.Count < 0 {
		next.Count = 0
	}
	return next
}

type Comment struct {
	ID         string
	ItemID     string
	AuthorID   string
	AuthorName string
	Body       string
	CreatedAt  time.Time
}

// IsTemporary reports whether the comment is a local placeholder
func (c Comment) IsTemporary() bool {
	return strings.HasPrefix(c.ID, TempIDPrefix)
}

// Phase is the like-toggle state of one item.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseCommitted
	PhaseRolledBack
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseCommitted:
		return "committed"
	case PhaseRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Entry is the cached like state of one item.
type Entry struct {
	LikeState
	// Phase is PhasePending while a toggle is in flight, PhaseIdle otherwise.
	Phase Phase
	// LastOutcome is PhaseCommitted or PhaseRolledBack after the first toggle completes.
	LastOutcome Phase
	// LastFetchedAt is stamped only by confirmed remote reads.
	LastFetchedAt time.Time
}

// Result is what the view layer sees from any mutation.
type Result struct {
	Success bool
	Message string
	// Retryable is false for validation and ownership failures.
	Retryable bool
	// Ignored is set when a toggle was dropped by the pending guard.
	Ignored bool
}
