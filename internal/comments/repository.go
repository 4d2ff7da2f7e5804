package comments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gallery/internal/database"
)

type Repository interface {
	Create(ctx context.Context, c *Comment) error
	ListByItem(ctx context.Context, itemID string, limit int) ([]Comment, error)
	Get(ctx context.Context, id string) (*Comment, error)
	Delete(ctx context.Context, id, userID string) (bool, error)
}

type pgRepository struct {
	db database.Service
}

func NewRepository(db database.Service) Repository {
	return &pgRepository{db: db}
}

func (r *pgRepository) Create(ctx context.Context, c *Comment) error {
	const q = `
		INSERT INTO comments (id, item_id, user_id, user_name, text, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`
	if err := r.db.QueryRow(ctx, q, c.ID, c.ItemID, c.UserID, c.UserName, c.Text, c.CreatedAt).
		Scan(&c.CreatedAt); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (r *pgRepository) ListByItem(ctx context.Context, itemID string, limit int) ([]Comment, error) {
	const q = `
		SELECT id, item_id, user_id, user_name, text, created_at
		FROM comments
		WHERE item_id=$1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, q, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	out := []Comment{}
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.ItemID, &c.UserID, &c.UserName, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *pgRepository) Get(ctx context.Context, id string) (*Comment, error) {
	const q = `
		SELECT id, item_id, user_id, user_name, text, created_at
		FROM comments
		WHERE id=$1
	`
	var c Comment
	err := r.db.QueryRow(ctx, q, id).Scan(&c.ID, &c.ItemID, &c.UserID, &c.UserName, &c.Text, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &c, nil
}

func (r *pgRepository) Delete(ctx context.Context, id, userID string) (bool, error) {
	const q = `DELETE FROM comments WHERE id=$1 AND user_id=$2`
	res, err := r.db.Exec(ctx, q, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete comment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete comment: %w", err)
	}
	return n > 0, nil
}
