package notifications

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Notification struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	OrderID   string    `json:"order_id,omitempty"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Insert(ctx context.Context, n *Notification) error {
	return r.DB.QueryRow(ctx, `
		INSERT INTO notifications(user_id, order_id, title, body)
		VALUES ($1,$2,$3,$4) RETURNING id, created_at`,
		n.UserID, n.OrderID, n.Title, n.Body).Scan(&n.ID, &n.CreatedAt)
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Notification, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, order_id, title, body, read, created_at
		FROM notifications WHERE user_id=$1 ORDER BY created_at DESC LIMIT 100`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.OrderID, &n.Title, &n.Body, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *Repo) MarkRead(ctx context.Context, id int64, userID string) error {
	_, err := r.DB.Exec(ctx,
		`UPDATE notifications SET read=true WHERE id=$1 AND user_id=$2`, id, userID)
	return err
}
