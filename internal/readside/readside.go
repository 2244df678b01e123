// Package readside wraps the external collaborators the Notification
// Aggregator reads from but never writes to (spec.md §1, §6): the post
// and user tables owned by the rest of the application. They're
// modeled as narrow interfaces so the aggregator depends only on what
// it needs, not on a generic repository.
package readside

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostStore answers the two read-only questions the aggregator asks
// about a post: who owns it, and what does it look like as a preview.
type PostStore interface {
	// OwnerOf returns the post's owner. found is false if the post has
	// been deleted (spec.md §4.5.1).
	OwnerOf(ctx context.Context, postID string) (ownerID string, found bool, err error)
	// Snippet returns the post's stored Markdown body.
	Snippet(ctx context.Context, postID string) (markdown string, found bool, err error)
}

// UserStore answers the aggregator's one question about a user.
type UserStore interface {
	Nickname(ctx context.Context, userID string) (nickname string, found bool, err error)
}

// PgPostStore reads posts from the shared Postgres database.
type PgPostStore struct {
	pool *pgxpool.Pool
}

// NewPgPostStore constructs a PgPostStore.
func NewPgPostStore(pool *pgxpool.Pool) *PgPostStore {
	return &PgPostStore{pool: pool}
}

// OwnerOf implements PostStore.
func (s *PgPostStore) OwnerOf(ctx context.Context, postID string) (string, bool, error) {
	var ownerID string
	err := s.pool.QueryRow(ctx, `SELECT owned_by FROM posts WHERE id = $1`, postID).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("readside: owner_of: %w", err)
	}
	return ownerID, true, nil
}

// Snippet implements PostStore.
func (s *PgPostStore) Snippet(ctx context.Context, postID string) (string, bool, error) {
	var body string
	err := s.pool.QueryRow(ctx, `SELECT snippet FROM posts WHERE id = $1`, postID).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("readside: snippet: %w", err)
	}
	return body, true, nil
}

// PgUserStore reads users from the shared Postgres database.
type PgUserStore struct {
	pool *pgxpool.Pool
}

// NewPgUserStore constructs a PgUserStore.
func NewPgUserStore(pool *pgxpool.Pool) *PgUserStore {
	return &PgUserStore{pool: pool}
}

// Nickname implements UserStore.
func (s *PgUserStore) Nickname(ctx context.Context, userID string) (string, bool, error) {
	var nickname string
	err := s.pool.QueryRow(ctx, `SELECT nickname FROM users WHERE id = $1`, userID).Scan(&nickname)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("readside: nickname: %w", err)
	}
	return nickname, true, nil
}
