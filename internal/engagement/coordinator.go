package engagement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// StaleAfter is the per-item freshness window for like status.
	StaleAfter time.Duration
	// BatchInterval is the minimum gap between two batch refreshes.
	BatchInterval time.Duration
	// FanOut caps concurrent status fetches in one batch.
	FanOut int
	// RemoteTimeout bounds every remote call. A timeout is a failure.
	RemoteTimeout time.Duration
	// DefaultLabel is shown for authors nothing is known about.
	DefaultLabel string
}

func DefaultOptions() Options {
	return Options{
		StaleAfter:    30 * time.Second,
		BatchInterval: 30 * time.Second,
		FanOut:        8,
		RemoteTimeout: 10 * time.Second,
		DefaultLabel:  DefaultAuthorLabel,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.StaleAfter <= 0 {
		o.StaleAfter = d.StaleAfter
	}
	if o.BatchInterval <= 0 {
		o.BatchInterval = d.BatchInterval
	}
	if o.FanOut <= 0 {
		o.FanOut = d.FanOut
	}
	if o.RemoteTimeout <= 0 {
		o.RemoteTimeout = d.RemoteTimeout
	}
	if o.DefaultLabel == "" {
		o.DefaultLabel = d.DefaultLabel
	}
	return o
}

// Coordinator applies optimistic mutations to a Cache and reconciles them
// with a Remote. Failures never escape as errors; every mutation returns a
// Result.
type Coordinator struct {
	cache  *Cache
	remote Remote
	logger *slog.Logger
	opts   Options

	mu       sync.Mutex
	userID   string
	observed bool
	inflight map[string]string // temp comment id -> item id
}

func NewCoordinator(cache *Cache, remote Remote, logger *slog.Logger, opts Options) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cache:    cache,
		remote:   remote,
		logger:   logger,
		opts:     opts.withDefaults(),
		inflight: make(map[string]string),
	}
}

func (c *Coordinator) Cache() *Cache { return c.cache }

func (c *Coordinator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opts.RemoteTimeout)
}

// observe records the identity in use and invalidates cached like state when
// it changed after the first call.
func (c *Coordinator) observe(id Identity) {
	c.mu.Lock()
	changed := c.observed && c.userID != id.UserID
	c.userID = id.UserID
	c.observed = true
	c.mu.Unlock()
	if changed {
		c.cache.Invalidate()
	}
}

// ToggleLike flips the like state of itemID for id. The cache and its
// subscribers see the optimistic value before the remote call starts. A
// second call while the first is pending is dropped and reported as Ignored.
func (c *Coordinator) ToggleLike(ctx context.Context, id Identity, itemID string) Result {
	if itemID == "" || id.UserID == "" {
		return failure(validationError("toggle like", "sign in to like images"))
	}
	c.observe(id)
	// Liked was dropped on an identity switch; learn this user's state first
	// so the request does not carry the previous user's.
	if c.cache.NeedsIdentityRead(itemID) {
		c.fetchStatus(ctx, id, itemID)
	}

	optimistic, snapshot, ok := c.cache.BeginToggle(itemID)
	if !ok {
		c.logger.Debug("Like toggle already pending, dropped", "item_id", itemID)
		return Result{Ignored: true, Message: "like is already being updated"}
	}

	rctx, cancel := c.withTimeout(ctx)
	defer cancel()
	out, err := c.remote.ToggleLike(rctx, ToggleRequest{
		ItemID:         itemID,
		UserID:         id.UserID,
		CurrentlyLiked: snapshot.Liked,
		DisplayName:    id.DisplayName,
	})
	if err != nil {
		c.cache.RollbackToggle(itemID)
		c.logger.Warn("Like toggle failed, rolled back",
			"item_id", itemID,
			"restored_count", snapshot.Count,
			"restored_liked", snapshot.Liked,
			"error", err,
		)
		return failure(err)
	}

	var authoritative *LikeState
	if out.HasCount {
		authoritative = &LikeState{Count: max(out.Count, 0), Liked: out.Liked}
	}
	c.cache.CommitToggle(itemID, authoritative)
	c.logger.Debug("Like toggle committed",
		"item_id", itemID,
		"optimistic_count", optimistic.Count,
		"server_count", out.Count,
		"server_count_known", out.HasCount,
	)
	return Result{Success: true}
}

// LikeStatus is a single read-through. Fresh or pending entries are served
// from the cache; a failed fetch falls back to the cached value, or zero.
func (c *Coordinator) LikeStatus(ctx context.Context, id Identity, itemID string) LikeState {
	c.observe(id)
	if e, ok := c.cache.Get(itemID); ok && (e.Phase == PhasePending || !c.cache.IsStale(itemID, c.opts.StaleAfter)) {
		return e.LikeState
	}
	c.fetchStatus(ctx, id, itemID)
	e, _ := c.cache.Get(itemID)
	return e.LikeState
}

// RefreshLikes is the batch read-through for a set of visible items. Inside
// the batch interval nothing is fetched. Otherwise stale items are fetched
// concurrently, at most FanOut at a time; one item failing leaves the others
// unaffected.
func (c *Coordinator) RefreshLikes(ctx context.Context, id Identity, itemIDs []string) map[string]LikeState {
	c.observe(id)
	items := dedupe(itemIDs)

	if c.cache.BeginBatch(c.opts.BatchInterval) {
		var g errgroup.Group
		g.SetLimit(c.opts.FanOut)
		for _, itemID := range items {
			if e, ok := c.cache.Get(itemID); ok && e.Phase == PhasePending {
				continue
			}
			if !c.cache.IsStale(itemID, c.opts.StaleAfter) {
				continue
			}
			g.Go(func() error {
				c.fetchStatus(ctx, id, itemID)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		c.logger.Debug("Batch refresh throttled", "items", len(items))
	}

	out := make(map[string]LikeState, len(items))
	for _, itemID := range items {
		e, _ := c.cache.Get(itemID)
		out[itemID] = e.LikeState
	}
	return out
}

func (c *Coordinator) fetchStatus(ctx context.Context, id Identity, itemID string) {
	gen := c.cache.Generation()
	rctx, cancel := c.withTimeout(ctx)
	defer cancel()
	st, err := c.remote.FetchLikeStatus(rctx, itemID, id.UserID)
	if err != nil {
		c.logger.Warn("Like status fetch failed, serving cached value", "item_id", itemID, "error", err)
		return
	}
	if !c.cache.ApplyRemoteAt(gen, itemID, st) {
		c.logger.Debug("Like status ignored, toggle pending or identity changed", "item_id", itemID)
	}
}

// LoadComments fetches the list for itemID, newest first. Comments still
// being submitted stay at the top and comments being deleted stay hidden. On
// failure the cached list is returned with an unsuccessful Result.
func (c *Coordinator) LoadComments(ctx context.Context, itemID string) ([]Comment, Result) {
	if itemID == "" {
		return nil, failure(validationError("load comments", "item id is required"))
	}
	seq := c.cache.BeginCommentLoad()
	rctx, cancel := c.withTimeout(ctx)
	defer cancel()
	list, err := c.remote.FetchComments(rctx, itemID)
	if err != nil {
		c.logger.Warn("Comment fetch failed, serving cached list", "item_id", itemID, "error", err)
		cached, _ := c.cache.Comments(itemID)
		return cached, failure(err)
	}
	return c.cache.MergeComments(itemID, list, seq), Result{Success: true}
}

func (c *Coordinator) newTempID() string {
	return fmt.Sprintf("%s%d-%s", TempIDPrefix, c.cache.Now().UnixMilli(), uuid.NewString()[:8])
}

// SubmitComment posts body as id. A placeholder is prepended right away and
// replaced by the server's comment on success, or removed on failure.
func (c *Coordinator) SubmitComment(ctx context.Context, id Identity, itemID, body string) (Comment, Result) {
	const op = "submit comment"
	text := strings.TrimSpace(body)
	switch {
	case id.UserID == "":
		return Comment{}, failure(validationError(op, "sign in to comment"))
	case itemID == "":
		return Comment{}, failure(validationError(op, "item id is required"))
	case text == "":
		return Comment{}, failure(validationError(op, "comment cannot be empty"))
	}

	temp := Comment{
		ID:         c.newTempID(),
		ItemID:     itemID,
		AuthorID:   id.UserID,
		AuthorName: id.DisplayName,
		Body:       text,
		CreatedAt:  c.cache.Now(),
	}
	c.mu.Lock()
	c.inflight[temp.ID] = itemID
	c.mu.Unlock()
	// Released only after the placeholder is replaced or removed
	defer func() {
		c.mu.Lock()
		delete(c.inflight, temp.ID)
		c.mu.Unlock()
	}()
	c.cache.PrependComment(itemID, temp)

	rctx, cancel := c.withTimeout(ctx)
	defer cancel()
	saved, err := c.remote.SubmitComment(rctx, SubmitRequest{
		ItemID:      itemID,
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
		Body:        text,
	})
	if err != nil {
		c.cache.RemoveComment(itemID, temp.ID)
		c.logger.Warn("Comment submit failed, placeholder removed", "item_id", itemID, "error", err)
		return Comment{}, failure(err)
	}

	if !c.cache.ReplaceComment(itemID, temp.ID, saved) {
		c.logger.Debug("Comment placeholder already displaced", "item_id", itemID, "temp_id", temp.ID)
	}
	return saved, Result{Success: true}
}

// DeleteComment removes commentID optimistically and restores it at the same
// position if the server refuses. A placeholder id is refused while its
// submit is in flight and unknown after it settles; the list then carries
// the server id.
func (c *Coordinator) DeleteComment(ctx context.Context, id Identity, itemID, commentID string) Result {
	const op = "delete comment"
	if id.UserID == "" || itemID == "" || commentID == "" {
		return failure(validationError(op, "comment and user are required"))
	}

	if strings.HasPrefix(commentID, TempIDPrefix) {
		c.mu.Lock()
		_, pending := c.inflight[commentID]
		c.mu.Unlock()
		if pending {
			return failure(validationError(op, "comment is still being posted"))
		}
		return failure(validationError(op, "comment not found"))
	}

	removed, idx, had := c.cache.BeginDelete(itemID, commentID)

	rctx, cancel := c.withTimeout(ctx)
	defer cancel()
	err := c.remote.DeleteComment(rctx, commentID, id.UserID)
	if err != nil && !isNotFound(err) {
		c.cache.AbortDelete(itemID, commentID, idx, removed, had)
		c.logger.Warn("Comment delete failed, restored",
			"item_id", itemID,
			"comment_id", commentID,
			"forbidden", errors.Is(err, ErrForbidden),
			"error", err,
		)
		return failure(err)
	}
	c.cache.ConfirmDelete(itemID, commentID)
	return Result{Success: true}
}

// AuthorLabel renders the author of cm for the signed-in session. The session
// name only stands in for the author's own comments.
func (c *Coordinator) AuthorLabel(cm Comment, session Identity) string {
	var sessionName string
	if session.UserID != "" && cm.AuthorID == session.UserID {
		sessionName = session.DisplayName
	}
	return ResolveDisplayName(cm.AuthorName, sessionName, c.opts.DefaultLabel)
}

// CanDelete is a UX hint only; the server enforces ownership.
func (c *Coordinator) CanDelete(cm Comment, session Identity) bool {
	if session.UserID == "" || cm.AuthorID != session.UserID {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, pending := c.inflight[cm.ID]
	return !pending
}

func isNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == http.StatusNotFound
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
