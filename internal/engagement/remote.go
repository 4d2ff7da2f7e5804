package engagement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Remote is the persistence API as seen by the coordinator.
type Remote interface {
	FetchLikeStatus(ctx context.Context, itemID, userID string) (LikeState, error)
	ToggleLike(ctx context.Context, in ToggleRequest) (ToggleOutcome, error)
	FetchComments(ctx context.Context, itemID string) ([]Comment, error)
	SubmitComment(ctx context.Context, in SubmitRequest) (Comment, error)
	DeleteComment(ctx context.Context, commentID, userID string) error
}

type ToggleRequest struct {
	ItemID         string
	UserID         string
	CurrentlyLiked bool
	DisplayName    string
}

// ToggleOutcome carries the server's view after a toggle. HasCount is false
// when the response did not include a count.
type ToggleOutcome struct {
	Liked    bool
	Count    int
	HasCount bool
}

type SubmitRequest struct {
	ItemID      string
	UserID      string
	DisplayName string
	Body        string
}

const maxResponseBytes = 1 << 20

// HTTPRemote talks to the likes and comments services, directly or through
// the gateway.
type HTTPRemote struct {
	baseURL *url.URL
	client  *http.Client
	cookie  *http.Cookie
}

type RemoteOption func(*HTTPRemote)

func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *HTTPRemote) { r.client = c }
}

// WithSessionCookie attaches the gateway session cookie to every request.
func WithSessionCookie(name, value string) RemoteOption {
	return func(r *HTTPRemote) {
		if value != "" {
			r.cookie = &http.Cookie{Name: name, Value: value}
		}
	}
}

func NewHTTPRemote(baseURL string, opts ...RemoteOption) (*HTTPRemote, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host required", baseURL)
	}
	r := &HTTPRemote{
		baseURL: u,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *HTTPRemote) FetchLikeStatus(ctx context.Context, itemID, userID string) (LikeState, error) {
	const op = "fetch like status"
	if itemID == "" {
		return LikeState{}, validationError(op, "item id is required")
	}
	q := url.Values{"itemId": {itemID}}
	if userID != "" {
		q.Set("userId", userID)
	}
	_, raw, err := r.do(ctx, op, http.MethodGet, "/likes/status", q, nil)
	if err != nil {
		return LikeState{}, err
	}
	st, err := normalizeLikeStatus(raw)
	if err != nil {
		return LikeState{}, &Error{Kind: KindServer, Op: op, Err: err}
	}
	return st.LikeState, nil
}

func (r *HTTPRemote) ToggleLike(ctx context.Context, in ToggleRequest) (ToggleOutcome, error) {
	const op = "toggle like"
	if in.ItemID == "" || in.UserID == "" {
		return ToggleOutcome{}, validationError(op, "item id and user id are required")
	}
	body := map[string]any{
		"itemId":      in.ItemID,
		"userId":      in.UserID,
		"isLiked":     in.CurrentlyLiked,
		"displayName": in.DisplayName,
	}
	_, raw, err := r.do(ctx, op, http.MethodPost, "/likes", nil, body)
	if err != nil {
		return ToggleOutcome{}, err
	}
	st, err := normalizeLikeStatus(raw)
	if err != nil {
		return ToggleOutcome{}, &Error{Kind: KindServer, Op: op, Err: err}
	}
	out := ToggleOutcome{Liked: !in.CurrentlyLiked, Count: st.Count, HasCount: st.hasCount}
	if st.hasLiked {
		out.Liked = st.Liked
	}
	return out, nil
}

func (r *HTTPRemote) FetchComments(ctx context.Context, itemID string) ([]Comment, error) {
	const op = "fetch comments"
	if itemID == "" {
		return nil, validationError(op, "item id is required")
	}
	env, _, err := r.do(ctx, op, http.MethodGet, "/comments", url.Values{"itemId": {itemID}}, nil)
	if err != nil {
		return nil, err
	}
	list, err := normalizeComments(env.Data)
	if err != nil {
		return nil, &Error{Kind: KindServer, Op: op, Err: err}
	}
	SortNewestFirst(list)
	return list, nil
}

func (r *HTTPRemote) SubmitComment(ctx context.Context, in SubmitRequest) (Comment, error) {
	const op = "submit comment"
	body := strings.TrimSpace(in.Body)
	switch {
	case in.ItemID == "" || in.UserID == "":
		return Comment{}, validationError(op, "item id and user id are required")
	case body == "":
		return Comment{}, validationError(op, "comment cannot be empty")
	}
	payload := map[string]any{
		"itemId":      in.ItemID,
		"userId":      in.UserID,
		"displayName": in.DisplayName,
		"text":        body,
	}
	env, _, err := r.do(ctx, op, http.MethodPost, "/comments", nil, payload)
	if err != nil {
		return Comment{}, err
	}
	list, err := normalizeComments(env.Data)
	if err != nil {
		return Comment{}, &Error{Kind: KindServer, Op: op, Err: err}
	}
	if len(list) == 0 {
		return Comment{}, &Error{Kind: KindServer, Op: op, Message: "response carried no comment"}
	}
	c := list[0]
	if c.ItemID == "" {
		c.ItemID = in.ItemID
	}
	return c, nil
}

func (r *HTTPRemote) DeleteComment(ctx context.Context, commentID, userID string) error {
	const op = "delete comment"
	if commentID == "" || userID == "" {
		return validationError(op, "comment id and user id are required")
	}
	_, _, err := r.do(ctx, op, http.MethodDelete, "/comments/"+url.PathEscape(commentID), nil,
		map[string]any{"userId": userID})
	return err
}

// do issues the request and unwraps the {success, ...} envelope. raw is the
// whole body so callers can read top-level fields.
func (r *HTTPRemote) do(ctx context.Context, op, method, path string, q url.Values, body any) (envelope, []byte, error) {
	u := *r.baseURL
	u.Path = r.baseURL.Path + path
	if q != nil {
		u.RawQuery = q.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return envelope{}, nil, validationError(op, err.Error())
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return envelope{}, nil, networkError(op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.cookie != nil {
		req.AddCookie(r.cookie)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return envelope{}, nil, networkError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return envelope{}, nil, networkError(op, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return envelope{}, nil, statusError(op, resp.StatusCode, env.text())
	}
	if decodeErr != nil {
		return envelope{}, nil, &Error{Kind: KindServer, Op: op, Status: resp.StatusCode, Err: decodeErr}
	}
	if env.failed() {
		msg := env.text()
		if msg == "" {
			msg = "request was not successful"
		}
		return envelope{}, nil, &Error{Kind: KindServer, Op: op, Status: resp.StatusCode, Message: msg}
	}
	return env, raw, nil
}
