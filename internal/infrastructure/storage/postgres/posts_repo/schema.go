package posts_repo

import "ytsoob/internal/modules/posts"

// Schema creates the posts module tables.
var Schema = []string{
	`CREATE SCHEMA IF NOT EXISTS posts`,
	`CREATE TABLE IF NOT EXISTS ` + posts.PostsTable + ` (
		id               BIGINT PRIMARY KEY,
		version          INTEGER     NOT NULL DEFAULT 1,
		content          TEXT        NOT NULL,
		comment_count    INTEGER     NOT NULL DEFAULT 0,
		created          TIMESTAMPTZ NOT NULL,
		created_by       BIGINT,
		last_modified    TIMESTAMPTZ,
		last_modified_by BIGINT,
		is_deleted       BOOLEAN     NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS ` + posts.CommentsTable + ` (
		id               BIGINT PRIMARY KEY,
		version          INTEGER     NOT NULL DEFAULT 1,
		post_id          BIGINT      NOT NULL REFERENCES ` + posts.PostsTable + ` (id),
		content          TEXT        NOT NULL,
		created          TIMESTAMPTZ NOT NULL,
		created_by       BIGINT,
		last_modified    TIMESTAMPTZ,
		last_modified_by BIGINT,
		is_deleted       BOOLEAN     NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS comments_post_idx
		ON ` + posts.CommentsTable + ` (post_id, created) WHERE NOT is_deleted`,
	`CREATE TABLE IF NOT EXISTS ` + posts.SubscriptionsTable + ` (
		id          BIGINT PRIMARY KEY,
		version     INTEGER        NOT NULL DEFAULT 1,
		title       TEXT           NOT NULL,
		description TEXT           NOT NULL DEFAULT '',
		photo       TEXT,
		price       NUMERIC(12, 2) NOT NULL CHECK (price >= 0),
		owner_id    BIGINT         NOT NULL,
		created     TIMESTAMPTZ    NOT NULL,
		created_by  BIGINT
	)`,
}
