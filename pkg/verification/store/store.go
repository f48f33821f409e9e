package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Status string

const (
	StatusPending   = Status("PENDING")
	StatusCompleted = Status("COMPLETED")
	StatusFailed    = Status("FAILED")
	StatusExpired   = Status("EXPIRED")
	StatusCancelled = Status("CANCELLED")
)

type Verification struct {
	ID          string
	UserID      string
	ExternalRef string
	Status      Status
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Create(ctx context.Context, v *Verification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO verifications (id, user_id, external_ref, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, v.ID, v.UserID, v.ExternalRef, string(v.Status), v.CreatedAt, v.ExpiresAt)
	return err
}

func (s *Store) Get(ctx context.Context, id string) (*Verification, error) {
	v := &Verification{}
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, external_ref, status, created_at, expires_at
		FROM verifications WHERE id = $1
	`, id).Scan(&v.ID, &v.UserID, &v.ExternalRef, &status, &v.CreatedAt, &v.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v.Status = Status(status)
	return v, nil
}

// ScanPending returns PENDING rows old enough for the webhook to have had its
// chance and young enough not to be presumed abandoned.
func (s *Store) ScanPending(ctx context.Context, grace, maxAge time.Duration, offset, limit int32) ([]*Verification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, external_ref, status, created_at, expires_at
		FROM verifications
		WHERE status = $1
		  AND created_at < now() - $2::interval
		  AND created_at > now() - $3::interval
		ORDER BY created_at
		OFFSET $4 LIMIT $5
	`, string(StatusPending), grace.String(), maxAge.String(), offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	verifications := []*Verification{}
	for rows.Next() {
		v := &Verification{}
		var status string
		if err := rows.Scan(&v.ID, &v.UserID, &v.ExternalRef, &status, &v.CreatedAt, &v.ExpiresAt); err != nil {
			return nil, err
		}
		v.Status = Status(status)
		verifications = append(verifications, v)
	}
	return verifications, rows.Err()
}

// ExpireAged terminalizes PENDING rows past the age ceiling. These rows left
// the poller's scan set already; this sweep keeps the table from accreting
// abandoned requests.
func (s *Store) ExpireAged(ctx context.Context, maxAge time.Duration) ([]*Verification, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE verifications SET status = $2
		WHERE status = $1 AND created_at <= now() - $3::interval
		RETURNING id, user_id, external_ref, status, created_at, expires_at
	`, string(StatusPending), string(StatusExpired), maxAge.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expired := []*Verification{}
	for rows.Next() {
		v := &Verification{}
		var status string
		if err := rows.Scan(&v.ID, &v.UserID, &v.ExternalRef, &status, &v.CreatedAt, &v.ExpiresAt); err != nil {
			return nil, err
		}
		v.Status = Status(status)
		expired = append(expired, v)
	}
	return expired, rows.Err()
}

// UpdateFromPending transitions a row out of PENDING. Returns false when the
// row already left PENDING, e.g. because the webhook landed concurrently.
func (s *Store) UpdateFromPending(ctx context.Context, id string, to Status) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE verifications SET status = $2
		WHERE id = $1 AND status = $3
	`, id, string(to), string(StatusPending))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
