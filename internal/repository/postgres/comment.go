package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/quillboard/quillboard/internal/domain"
)

// ErrCommentNotFound is returned when a comment id does not exist.
var ErrCommentNotFound = errors.New("comment not found")

// CommentRepo persists comments and reports. This is the thin caller-side
// store the ingestion flow writes its decisions into; moderation CRUD beyond
// status changes lives elsewhere.
type CommentRepo struct{ db *sql.DB }

// NewCommentRepo creates a Postgres-backed comment repository.
func NewCommentRepo(db *sql.DB) *CommentRepo { return &CommentRepo{db: db} }

func (r *CommentRepo) Create(ctx context.Context, c *domain.Comment) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO comments (id, site_id, thread_id, thread_identifier, author_name,
			author_email, author_ip, content, status, spam_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, c.ID, c.SiteID, c.ThreadID, c.ThreadIdentifier, c.AuthorName,
		c.AuthorEmail, c.AuthorIP, c.Content, c.Status, c.SpamScore, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

func (r *CommentRepo) Get(ctx context.Context, id string) (*domain.Comment, error) {
	var (
		c         domain.Comment
		email     sql.NullString
		ip        sql.NullString
		deletedBy sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, site_id, thread_id, thread_identifier, author_name, author_email,
			author_ip, content, status, spam_score, deleted_by, created_at
		FROM comments WHERE id = $1
	`, id).Scan(&c.ID, &c.SiteID, &c.ThreadID, &c.ThreadIdentifier, &c.AuthorName,
		&email, &ip, &c.Content, &c.Status, &c.SpamScore, &deletedBy, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	c.AuthorEmail = email.String
	c.AuthorIP = ip.String
	c.DeletedBy = deletedBy.String
	return &c, nil
}

func (r *CommentRepo) UpdateStatus(ctx context.Context, id string, status domain.CommentStatus, deletedBy string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE comments
		SET status = $2,
		    deleted_by = NULLIF($3, ''),
		    updated_at = NOW()
		WHERE id = $1
	`, id, status, deletedBy)
	if err != nil {
		return fmt.Errorf("update comment status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrCommentNotFound
	}
	return nil
}

func (r *CommentRepo) CreateReport(ctx context.Context, rep *domain.Report) error {
	if rep.ID == "" {
		rep.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reports (id, site_id, comment_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rep.ID, rep.SiteID, rep.CommentID, rep.Reason, rep.CreatedAt)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}
