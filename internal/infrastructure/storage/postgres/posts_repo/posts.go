// Package posts_repo provides the PostgreSQL repository of the posts module.
package posts_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"ytsoob/internal/core/apperror"
	"ytsoob/internal/infrastructure/storage/postgres"
	"ytsoob/internal/modules/posts"
)

var _ posts.Repository = (*Repo)(nil)

var (
	postCols         = postgres.ExtractDBColumns[posts.Post]()
	commentCols      = postgres.ExtractDBColumns[posts.Comment]()
	subscriptionCols = postgres.ExtractDBColumns[posts.Subscription]()
)

// Repo reads posts, comments and subscriptions.
type Repo struct {
	txManager *postgres.TxManager
}

// New creates the repository.
func New(txManager *postgres.TxManager) *Repo {
	return &Repo{txManager: txManager}
}

func byIDQuery(table string, cols []string, entityID int64, liveOnly bool) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select(cols...).
		From(table).
		Where(squirrel.Eq{"id": entityID}).
		Limit(1)
	if liveOnly {
		q = q.Where(squirrel.Eq{"is_deleted": false})
	}
	return q
}

func getOne[T any](ctx context.Context, r *Repo, q squirrel.SelectBuilder, table string, entityID int64) (*T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	dst := new(T)
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), dst, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(table, entityID)
		}
		return nil, fmt.Errorf("get %s: %w", table, err)
	}
	return dst, nil
}

// GetPost implements posts.Repository.
func (r *Repo) GetPost(ctx context.Context, postID int64) (*posts.Post, error) {
	return getOne[posts.Post](ctx, r, byIDQuery(posts.PostsTable, postCols, postID, true), posts.PostsTable, postID)
}

// GetComment implements posts.Repository.
func (r *Repo) GetComment(ctx context.Context, commentID int64) (*posts.Comment, error) {
	return getOne[posts.Comment](ctx, r, byIDQuery(posts.CommentsTable, commentCols, commentID, true), posts.CommentsTable, commentID)
}

// GetSubscription implements posts.Repository.
func (r *Repo) GetSubscription(ctx context.Context, subscriptionID int64) (*posts.Subscription, error) {
	return getOne[posts.Subscription](ctx, r, byIDQuery(posts.SubscriptionsTable, subscriptionCols, subscriptionID, false), posts.SubscriptionsTable, subscriptionID)
}

func listCommentsQuery(postID int64) squirrel.SelectBuilder {
	return postgres.Builder().
		Select(commentCols...).
		From(posts.CommentsTable).
		Where(squirrel.Eq{"post_id": postID}).
		Where(squirrel.Eq{"is_deleted": false})
}

// ListComments implements posts.Repository. The count and the page are
// read in one read-only transaction.
func (r *Repo) ListComments(ctx context.Context, postID int64, page posts.Page) (posts.CommentPage, error) {
	result := posts.CommentPage{Limit: page.Limit, Offset: page.Offset, Items: []*posts.Comment{}}
	q := listCommentsQuery(postID)

	countSQL, countArgs, err := postgres.Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	sql, args, err := q.
		OrderBy("created ASC", "id ASC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	err = r.txManager.ReadOnly(ctx, func(ctx context.Context) error {
		querier := r.txManager.GetQuerier(ctx)
		if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
			return fmt.Errorf("count comments: %w", err)
		}
		if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
			return fmt.Errorf("list comments: %w", err)
		}
		return nil
	})
	return result, err
}

func incrementCommentCountQuery(postID int64, delta int) squirrel.UpdateBuilder {
	return postgres.Builder().
		Update(posts.PostsTable).
		Set("comment_count", squirrel.Expr("GREATEST(comment_count + ?, 0)", delta)).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": postID})
}

// IncrementCommentCount implements posts.Repository. A missing post is not an
// error: the notification may outlive a hard delete.
func (r *Repo) IncrementCommentCount(ctx context.Context, postID int64, delta int) error {
	sql, args, err := incrementCommentCountQuery(postID, delta).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("increment comment count: %w", err)
	}
	return nil
}
