package comments

import "time"

// PageSize caps list responses
const PageSize = 100

type Comment struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateInput struct {
	ItemID      string
	UserID      string
	DisplayName string
	Text        string
}

type CreateCommentRequest struct {
	ItemID      string `json:"itemId" binding:"required"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Text        string `json:"text" binding:"required"`
}

type DeleteCommentRequest struct {
	UserID string `json:"userId"`
}

type ListResponse struct {
	Success bool      `json:"success"`
	Data    []Comment `json:"data"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
