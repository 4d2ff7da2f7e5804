package engagement

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Payloads from the persistence API come in both snake_case and camelCase
// depending on which service (or which era of it) produced them. Everything
// here funnels into the canonical types; nothing else in the package sees
// wire shapes.

// flexString accepts a JSON string or number
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %s", b)
	}
	*f = flexString(n.String())
	return nil
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func (e envelope) failed() bool { return e.Success != nil && !*e.Success }

func (e envelope) text() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

type wireLikeStatus struct {
	IsLiked         *bool `json:"isLiked"`
	IsLikedSnake    *bool `json:"is_liked"`
	LikesCount      *int  `json:"likesCount"`
	LikesCountSnake *int  `json:"likes_count"`
	Count           *int  `json:"count"`
}

type likeStatus struct {
	LikeState
	hasLiked bool
	hasCount bool
}

func normalizeLikeStatus(raw []byte) (likeStatus, error) {
	var w wireLikeStatus
	if err := json.Unmarshal(raw, &w); err != nil {
		return likeStatus{}, fmt.Errorf("decode like status: %w", err)
	}
	var st likeStatus
	if b := firstBool(w.IsLiked, w.IsLikedSnake); b != nil {
		st.Liked, st.hasLiked = *b, true
	}
	if n := firstInt(w.LikesCount, w.LikesCountSnake, w.Count); n != nil {
		st.Count, st.hasCount = max(*n, 0), true
	}
	return st, nil
}

type wireComment struct {
	ID flexString `json:"id"`

	ItemID       flexString `json:"itemId"`
	ItemIDSnake  flexString `json:"item_id"`
	ImageID      flexString `json:"imageId"`
	ImageIDSnake flexString `json:"image_id"`

	UserID      flexString `json:"userId"`
	UserIDSnake flexString `json:"user_id"`

	UserName         string `json:"userName"`
	UserNameSnake    string `json:"user_name"`
	DisplayName      string `json:"displayName"`
	DisplayNameSnake string `json:"display_name"`

	Text string `json:"text"`
	Body string `json:"body"`

	CreatedAt      string `json:"createdAt"`
	CreatedAtSnake string `json:"created_at"`
}

func (w wireComment) canonical() (Comment, error) {
	c := Comment{
		ID:         string(w.ID),
		ItemID:     firstString(string(w.ItemID), string(w.ItemIDSnake), string(w.ImageID), string(w.ImageIDSnake)),
		AuthorID:   firstString(string(w.UserID), string(w.UserIDSnake)),
		AuthorName: firstString(w.UserName, w.UserNameSnake, w.DisplayName, w.DisplayNameSnake),
		Body:       firstString(w.Text, w.Body),
	}
	if c.ID == "" {
		return Comment{}, fmt.Errorf("comment without id")
	}
	if ts := firstString(w.CreatedAt, w.CreatedAtSnake); ts != "" {
		t, err := parseTimestamp(ts)
		if err != nil {
			return Comment{}, fmt.Errorf("comment %s: %w", c.ID, err)
		}
		c.CreatedAt = t
	}
	return c, nil
}

// normalizeComments accepts a JSON array or a single object
func normalizeComments(raw []byte) ([]Comment, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []Comment{}, nil
	}
	var ws []wireComment
	if raw[0] == '{' {
		var one wireComment
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, fmt.Errorf("decode comment: %w", err)
		}
		ws = []wireComment{one}
	} else if err := json.Unmarshal(raw, &ws); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}

	out := make([]Comment, 0, len(ws))
	for _, w := range ws {
		c, err := w.canonical()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05.999999",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstBool(vals ...*bool) *bool {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstInt(vals ...*int) *int {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
