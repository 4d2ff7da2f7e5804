package likes

import "time"

type Like struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	CreatedAt time.Time `json:"created_at"`
}

// Status is the authoritative like state of one item for one user
type Status struct {
	Count int64
	Liked bool
}

// ToggleInput carries the caller's current view; CurrentlyLiked=true means "unlike"
type ToggleInput struct {
	ItemID         string
	UserID         string
	DisplayName    string
	CurrentlyLiked bool
}

type ToggleRequest struct {
	ItemID      string `json:"itemId" binding:"required"`
	UserID      string `json:"userId"`
	IsLiked     bool   `json:"isLiked"`
	DisplayName string `json:"displayName"`
}

type StatusResponse struct {
	Success    bool  `json:"success"`
	IsLiked    bool  `json:"isLiked"`
	LikesCount int64 `json:"likesCount"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
