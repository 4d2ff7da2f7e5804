package engagement

import (
	"sort"
	"sync"
	"time"
)

// Cache is the process-wide engagement state shared by every view. Construct
// one per session and pass it to a Coordinator. All methods are safe for
// concurrent use; subscriber callbacks run on the mutating goroutine after the
// lock is released.
type Cache struct {
	mu  sync.Mutex
	now func() time.Time

	likes       map[string]*likeEntry
	comments    map[string][]Comment
	lastBatchAt time.Time
	// gen counts identity changes; reads begun under an older gen are dropped
	gen uint64

	loadSeq    uint64
	tombstones map[string]map[string]tombstone

	nextSub     int
	likeSubs    map[string]map[int]func(Entry)
	commentSubs map[string]map[int]func([]Comment)
}

type likeEntry struct {
	Entry
	// snapshot is the state captured when the item entered PhasePending
	snapshot LikeState
	// unverified means Liked was reset by an identity change and has not
	// been read for the new identity yet
	unverified bool
	// orphaned marks a toggle that was pending across an identity change
	orphaned bool
}

func (e *likeEntry) resetIdentity() {
	e.Liked = false
	e.LastFetchedAt = time.Time{}
	e.unverified = true
	e.orphaned = false
}

// tombstone hides a deleted comment from list reads that may predate the
// delete. loadSeq is the newest load started before the delete was confirmed.
type tombstone struct {
	confirmed bool
	loadSeq   uint64
}

type CacheOption func(*Cache)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		now:         time.Now,
		likes:       make(map[string]*likeEntry),
		comments:    make(map[string][]Comment),
		likeSubs:    make(map[string]map[int]func(Entry)),
		commentSubs: make(map[string]map[int]func([]Comment)),
		tombstones:  make(map[string]map[string]tombstone),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now returns the cache clock.
func (c *Cache) Now() time.Time { return c.now() }

func (c *Cache) Get(itemID string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.likes[itemID]
	if !ok {
		return Entry{}, false
	}
	return e.Entry, true
}

// entryLocked returns the entry for itemID, creating it lazily
func (c *Cache) entryLocked(itemID string) *likeEntry {
	e, ok := c.likes[itemID]
	if !ok {
		e = &likeEntry{}
		c.likes[itemID] = e
	}
	return e
}

// Generation identifies the current identity epoch. Capture it before a
// status fetch and hand it to ApplyRemoteAt.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// ApplyRemote stores a confirmed server read for the current generation.
func (c *Cache) ApplyRemote(itemID string, st LikeState) bool {
	return c.ApplyRemoteAt(c.Generation(), itemID, st)
}

// ApplyRemoteAt stores a confirmed server read and stamps LastFetchedAt. It is
// refused while a toggle is pending so a late refresh cannot clobber the
// optimistic value, and when gen is older than the current generation.
func (c *Cache) ApplyRemoteAt(gen uint64, itemID string, st LikeState) bool {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false
	}
	e := c.entryLocked(itemID)
	if e.Phase == PhasePending {
		c.mu.Unlock()
		return false
	}
	e.LikeState = st
	e.LastFetchedAt = c.now()
	e.unverified = false
	snap, subs := e.Entry, c.likeSubsLocked(itemID)
	c.mu.Unlock()

	notifyLike(subs, snap)
	return true
}

// ApplyLocal stores a value that has not been confirmed by the server.
// LastFetchedAt is left alone.
func (c *Cache) ApplyLocal(itemID string, st LikeState) {
	c.mu.Lock()
	e := c.entryLocked(itemID)
	e.LikeState = st
	snap, subs := e.Entry, c.likeSubsLocked(itemID)
	c.mu.Unlock()

	notifyLike(subs, snap)
}

// IsStale is true when the item was never fetched or its last confirmed read
// is older than maxAge.
func (c *Cache) IsStale(itemID string, maxAge time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.likes[itemID]
	if !ok || e.LastFetchedAt.IsZero() {
		return true
	}
	return c.now().Sub(e.LastFetchedAt) > maxAge
}

// BeginBatch gates batch refreshes. It returns false when the previous batch
// started less than minInterval ago; otherwise it records now and returns true.
func (c *Cache) BeginBatch(minInterval time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if !c.lastBatchAt.IsZero() && now.Sub(c.lastBatchAt) < minInterval {
		return false
	}
	c.lastBatchAt = now
	return true
}

// Invalidate is called when the signed-in identity changes. Liked is per
// user, so every idle entry drops it and becomes stale; a pending toggle is
// reset the same way once it settles. Counts are kept. Reads begun before
// the call are refused afterwards and the batch throttle is cleared.
func (c *Cache) Invalidate() {
	type change struct {
		subs []func(Entry)
		e    Entry
	}
	var changes []change

	c.mu.Lock()
	c.gen++
	for itemID, e := range c.likes {
		if e.Phase == PhasePending {
			e.orphaned = true
			continue
		}
		e.resetIdentity()
		changes = append(changes, change{c.likeSubsLocked(itemID), e.Entry})
	}
	c.lastBatchAt = time.Time{}
	c.mu.Unlock()

	for _, ch := range changes {
		notifyLike(ch.subs, ch.e)
	}
}

// NeedsIdentityRead reports whether Liked for itemID was reset by an
// identity change and not read since. A toggle must not be built on it.
func (c *Cache) NeedsIdentityRead(itemID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.likes[itemID]
	return ok && e.unverified && e.Phase != PhasePending
}

// BeginToggle moves the item from Idle to Pending. Reading the current state,
// computing the flipped one and writing it happen under one lock, so two
// back-to-back toggles cannot both start. ok is false when a toggle is
// already pending; the caller must drop the request.
func (c *Cache) BeginToggle(itemID string) (optimistic, snapshot LikeState, ok bool) {
	c.mu.Lock()
	e := c.entryLocked(itemID)
	if e.Phase == PhasePending {
		c.mu.Unlock()
		return LikeState{}, LikeState{}, false
	}
	e.snapshot = e.LikeState
	e.LikeState = e.LikeState.toggled()
	e.Phase = PhasePending
	snap, subs := e.Entry, c.likeSubsLocked(itemID)
	optimistic, snapshot = e.LikeState, e.snapshot
	c.mu.Unlock()

	notifyLike(subs, snap)
	return optimistic, snapshot, true
}

// CommitToggle ends a pending toggle successfully. A non-nil authoritative
// state from the server replaces the optimistic one and counts as a fresh read.
func (c *Cache) CommitToggle(itemID string, authoritative *LikeState) {
	c.mu.Lock()
	e := c.entryLocked(itemID)
	if e.Phase != PhasePending {
		c.mu.Unlock()
		return
	}
	switch {
	case e.orphaned:
		if authoritative != nil {
			e.Count = authoritative.Count
		}
		e.resetIdentity()
	case authoritative != nil:
		e.LikeState = *authoritative
		e.LastFetchedAt = c.now()
	}
	e.Phase = PhaseIdle
	e.LastOutcome = PhaseCommitted
	e.snapshot = LikeState{}
	snap, subs := e.Entry, c.likeSubsLocked(itemID)
	c.mu.Unlock()

	notifyLike(subs, snap)
}

// RollbackToggle restores the snapshot captured by BeginToggle.
func (c *Cache) RollbackToggle(itemID string) {
	c.mu.Lock()
	e := c.entryLocked(itemID)
	if e.Phase != PhasePending {
		c.mu.Unlock()
		return
	}
	e.LikeState = e.snapshot
	if e.orphaned {
		e.resetIdentity()
	}
	e.Phase = PhaseIdle
	e.LastOutcome = PhaseRolledBack
	e.snapshot = LikeState{}
	snap, subs := e.Entry, c.likeSubsLocked(itemID)
	c.mu.Unlock()

	notifyLike(subs, snap)
}

// Comments returns a copy of the cached list, newest first.
func (c *Cache) Comments(itemID string) ([]Comment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list, ok := c.comments[itemID]
	if !ok {
		return nil, false
	}
	return append([]Comment(nil), list...), true
}

// CommentCount is derived from the cached list.
func (c *Cache) CommentCount(itemID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.comments[itemID])
}

// SetComments replaces the list with a server read, sorted newest first.
func (c *Cache) SetComments(itemID string, list []Comment) {
	sorted := append([]Comment(nil), list...)
	SortNewestFirst(sorted)
	c.mutateComments(itemID, func([]Comment) []Comment { return sorted })
}

func (c *Cache) PrependComment(itemID string, cm Comment) {
	c.mutateComments(itemID, func(list []Comment) []Comment {
		return append([]Comment{cm}, list...)
	})
}

// ReplaceComment swaps the placeholder oldID for saved. It reports false when
// oldID is no longer in the list (a full refetch displaced it).
func (c *Cache) ReplaceComment(itemID, oldID string, saved Comment) bool {
	replaced := false
	c.mutateComments(itemID, func(list []Comment) []Comment {
		idx := indexOf(list, oldID)
		if idx < 0 {
			return list
		}
		replaced = true
		if indexOf(list, saved.ID) >= 0 {
			return append(list[:idx:idx], list[idx+1:]...)
		}
		out := append([]Comment(nil), list...)
		out[idx] = saved
		return out
	})
	return replaced
}

// RemoveComment drops id and returns what was removed and where, so a failed
// delete can put it back.
func (c *Cache) RemoveComment(itemID, id string) (removed Comment, index int, ok bool) {
	index = -1
	c.mutateComments(itemID, func(list []Comment) []Comment {
		idx := indexOf(list, id)
		if idx < 0 {
			return list
		}
		removed, index, ok = list[idx], idx, true
		return append(list[:idx:idx], list[idx+1:]...)
	})
	return removed, index, ok
}

// InsertCommentAt puts cm back at index, clamped to the list bounds.
func (c *Cache) InsertCommentAt(itemID string, index int, cm Comment) {
	c.mutateComments(itemID, func(list []Comment) []Comment {
		return insertAt(list, index, cm)
	})
}

// BeginCommentLoad numbers a comment fetch that is about to start. Pass the
// result to MergeComments once the fetch returns.
func (c *Cache) BeginCommentLoad() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadSeq++
	return c.loadSeq
}

// MergeComments installs a server read taken by load seq. Placeholders still
// in the list stay on top and comments with an unsettled or newer delete are
// left out. Everything happens under one lock, so a submit or delete settling
// concurrently is either fully before or fully after the merge.
func (c *Cache) MergeComments(itemID string, fetched []Comment, seq uint64) []Comment {
	var merged []Comment
	c.mutateComments(itemID, func(current []Comment) []Comment {
		tombs := c.tombstones[itemID]
		for id, t := range tombs {
			if t.confirmed && t.loadSeq < seq {
				delete(tombs, id)
			}
		}
		if len(tombs) == 0 {
			delete(c.tombstones, itemID)
		}

		next := make([]Comment, 0, len(fetched)+1)
		for _, cm := range current {
			if cm.IsTemporary() {
				next = append(next, cm)
			}
		}
		server := make([]Comment, 0, len(fetched))
		for _, cm := range fetched {
			if _, hidden := tombs[cm.ID]; !hidden {
				server = append(server, cm)
			}
		}
		SortNewestFirst(server)
		merged = append(next, server...)
		return merged
	})
	return append([]Comment(nil), merged...)
}

// BeginDelete removes id like RemoveComment and keeps it out of merged reads
// until ConfirmDelete or AbortDelete.
func (c *Cache) BeginDelete(itemID, id string) (removed Comment, index int, ok bool) {
	index = -1
	c.mutateComments(itemID, func(list []Comment) []Comment {
		if c.tombstones[itemID] == nil {
			c.tombstones[itemID] = make(map[string]tombstone)
		}
		c.tombstones[itemID][id] = tombstone{}
		idx := indexOf(list, id)
		if idx < 0 {
			return list
		}
		removed, index, ok = list[idx], idx, true
		return append(list[:idx:idx], list[idx+1:]...)
	})
	return removed, index, ok
}

// ConfirmDelete records that the server deleted id. Loads started before
// this point may still return it and keep hiding it; later ones prune the
// tombstone.
func (c *Cache) ConfirmDelete(itemID, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tombstones[itemID][id]; ok {
		c.tombstones[itemID][id] = tombstone{confirmed: true, loadSeq: c.loadSeq}
	}
}

// AbortDelete undoes BeginDelete. When the comment was listed it goes back at
// index.
func (c *Cache) AbortDelete(itemID, id string, index int, cm Comment, listed bool) {
	c.mutateComments(itemID, func(list []Comment) []Comment {
		delete(c.tombstones[itemID], id)
		if len(c.tombstones[itemID]) == 0 {
			delete(c.tombstones, itemID)
		}
		if !listed {
			return list
		}
		return insertAt(list, index, cm)
	})
}

func (c *Cache) mutateComments(itemID string, fn func([]Comment) []Comment) {
	c.mu.Lock()
	next := fn(c.comments[itemID])
	c.comments[itemID] = next
	snap := append([]Comment(nil), next...)
	subs := make([]func([]Comment), 0, len(c.commentSubs[itemID]))
	for _, sub := range c.commentSubs[itemID] {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		sub(snap)
	}
}

// SubscribeLikes registers fn for changes to itemID's like entry. The returned
// func unsubscribes.
func (c *Cache) SubscribeLikes(itemID string, fn func(Entry)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	if c.likeSubs[itemID] == nil {
		c.likeSubs[itemID] = make(map[int]func(Entry))
	}
	c.likeSubs[itemID][id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.likeSubs[itemID], id)
	}
}

// SubscribeComments registers fn for changes to itemID's comment list.
func (c *Cache) SubscribeComments(itemID string, fn func([]Comment)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	if c.commentSubs[itemID] == nil {
		c.commentSubs[itemID] = make(map[int]func([]Comment))
	}
	c.commentSubs[itemID][id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.commentSubs[itemID], id)
	}
}

func (c *Cache) likeSubsLocked(itemID string) []func(Entry) {
	subs := make([]func(Entry), 0, len(c.likeSubs[itemID]))
	for _, fn := range c.likeSubs[itemID] {
		subs = append(subs, fn)
	}
	return subs
}

func notifyLike(subs []func(Entry), e Entry) {
	for _, fn := range subs {
		fn(e)
	}
}

func insertAt(list []Comment, index int, cm Comment) []Comment {
	if indexOf(list, cm.ID) >= 0 {
		return list
	}
	index = max(0, min(index, len(list)))
	out := make([]Comment, 0, len(list)+1)
	out = append(out, list[:index]...)
	out = append(out, cm)
	return append(out, list[index:]...)
}

func indexOf(list []Comment, id string) int {
	for i, cm := range list {
		if cm.ID == id {
			return i
		}
	}
	return -1
}

// SortNewestFirst orders by CreatedAt descending, ties by id for stability.
func SortNewestFirst(list []Comment) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
}
