package likes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gallery/internal/database"
)

// Repository persists like rows. (item_id, user_id) is unique, so Insert is
// safe to retry.
type Repository interface {
	Insert(ctx context.Context, l *Like) (bool, error)
	Delete(ctx context.Context, itemID, userID string) (bool, error)
	Count(ctx context.Context, itemID string) (int64, error)
	Exists(ctx context.Context, itemID, userID string) (bool, error)
}

type pgRepository struct {
	db database.Service
}

func NewRepository(db database.Service) Repository {
	return &pgRepository{db: db}
}

func (r *pgRepository) Insert(ctx context.Context, l *Like) (bool, error) {
	const q = `
		INSERT INTO likes (id, item_id, user_id, user_name, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (item_id, user_id) DO NOTHING
	`
	res, err := r.db.Exec(ctx, q, l.ID, l.ItemID, l.UserID, l.UserName, l.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert like: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert like: %w", err)
	}
	return n > 0, nil
}

func (r *pgRepository) Delete(ctx context.Context, itemID, userID string) (bool, error) {
	const q = `DELETE FROM likes WHERE item_id=$1 AND user_id=$2`
	res, err := r.db.Exec(ctx, q, itemID, userID)
	if err != nil {
		return false, fmt.Errorf("delete like: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete like: %w", err)
	}
	return n > 0, nil
}

func (r *pgRepository) Count(ctx context.Context, itemID string) (int64, error) {
	const q = `SELECT COUNT(*) FROM likes WHERE item_id=$1`
	var cnt int64
	if err := r.db.QueryRow(ctx, q, itemID).Scan(&cnt); err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return cnt, nil
}

func (r *pgRepository) Exists(ctx context.Context, itemID, userID string) (bool, error) {
	const q = `SELECT 1 FROM likes WHERE item_id=$1 AND user_id=$2 LIMIT 1`
	var one int
	err := r.db.QueryRow(ctx, q, itemID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup like: %w", err)
	}
	return true, nil
}
