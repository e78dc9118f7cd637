package blogadmin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/eringen/blogadmin/paging"
)

var postSortColumns = map[string]string{
	"title":     "p.title COLLATE NOCASE",
	"status":    "p.status",
	"category":  "c.name COLLATE NOCASE",
	"createdAt": "p.created_at",
	"updatedAt": "p.updated_at",
}

// ListPosts returns one page of the post table. Filters: title (substring),
// status, category (ids) and tags (ids, any match).
func (s *Store) ListPosts(ctx context.Context, req paging.Request) (paging.Response[PostListItem], error) {
	var f queryFilter
	if v := req.Filter("title"); v != "" {
		f.add(`p.title LIKE ? ESCAPE '\'`, likePattern(v))
	}
	if vals := req.FilterList("status"); len(vals) > 0 {
		statuses := make([]string, len(vals))
		for i, v := range vals {
			statuses[i] = strings.ToUpper(v)
		}
		f.add(`p.status IN (`+placeholders(len(statuses))+`)`, stringArgs(statuses)...)
	}
	if ids := req.FilterList("category"); len(ids) > 0 {
		f.add(`p.category_id IN (`+placeholders(len(ids))+`)`, stringArgs(ids)...)
	}
	if ids := req.FilterList("tags"); len(ids) > 0 {
		f.add(`EXISTS (SELECT 1 FROM post_tags pt WHERE pt.post_id = p.id AND pt.tag_id IN (`+placeholders(len(ids))+`))`, stringArgs(ids)...)
	}

	const from = ` FROM posts p JOIN categories c ON c.id = p.category_id`

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)`+from+f.where(), f.args...).Scan(&total); err != nil {
		return paging.Response[PostListItem]{}, err
	}

	order := orderBy(postSortColumns, req, "p.created_at", "p.id")
	args := append(f.args, req.Limit(), req.Offset())
	rows, err := s.db.QueryContext(ctx, `
SELECT p.id, p.title, p.status, p.slug, c.name,
       COALESCE((SELECT group_concat(t.name, ', ') FROM post_tags pt JOIN tags t ON t.id = pt.tag_id WHERE pt.post_id = p.id), ''),
       p.created_at, p.updated_at`+from+f.where()+order+` LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return paging.Response[PostListItem]{}, err
	}
	defer rows.Close()

	var items []PostListItem
	for rows.Next() {
		var it PostListItem
		var status, created, updated string
		if err := rows.Scan(&it.ID, &it.Title, &status, &it.Slug, &it.CategoryName, &it.TagsName, &created, &updated); err != nil {
			return paging.Response[PostListItem]{}, err
		}
		it.Status = PostStatus(status)
		it.CreatedAt = parseTime(created)
		it.UpdatedAt = parseTime(updated)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return paging.Response[PostListItem]{}, err
	}
	return paging.NewResponse(items, total, req), nil
}

// GetPost looks a post up by "id" or "slug", resolving category and tags.
func (s *Store) GetPost(ctx context.Context, field, value string) (Post, error) {
	if field != "id" && field != "slug" {
		return Post{}, fmt.Errorf("lookup by %q: %w", field, ErrInvalid)
	}
	var p Post
	var status, created, updated, catCreated string
	err := s.db.QueryRowContext(ctx, `
SELECT p.id, p.title, p.description, p.content, p.status, p.reading_time, p.slug, p.created_at, p.updated_at,
       c.id, c.name, c.slug, c.created_at
FROM posts p JOIN categories c ON c.id = p.category_id
WHERE p.`+field+` = ?`, value).Scan(
		&p.ID, &p.Title, &p.Description, &p.Content, &status, &p.ReadingTime, &p.Slug, &created, &updated,
		&p.Category.ID, &p.Category.Name, &p.Category.Slug, &catCreated)
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, fmt.Errorf("post %q: %w", value, ErrNotFound)
	}
	if err != nil {
		return Post{}, err
	}
	p.Status = PostStatus(status)
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	p.Category.CreatedAt = parseTime(catCreated)

	rows, err := s.db.QueryContext(ctx, `
SELECT t.id, t.name, t.slug, t.created_at FROM post_tags pt JOIN tags t ON t.id = pt.tag_id
WHERE pt.post_id = ? ORDER BY t.name COLLATE NOCASE`, p.ID)
	if err != nil {
		return Post{}, err
	}
	tags, err := scanTerms(rows)
	if err != nil {
		return Post{}, err
	}
	p.Tags = tags
	return p, nil
}

// CreatePost inserts p and its tag links.
func (s *Store) CreatePost(ctx context.Context, p Post) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO posts (id, title, description, content, status, reading_time, slug, category_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Description, p.Content, string(p.Status), p.ReadingTime, p.Slug, p.Category.ID,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("post slug %q: %w", p.Slug, ErrConflict)
	}
	if err != nil {
		return err
	}
	if err := insertPostTags(ctx, tx, p.ID, p.TagIDs()); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdatePost rewrites p and replaces its tag links.
func (s *Store) UpdatePost(ctx context.Context, p Post) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
UPDATE posts SET title = ?, description = ?, content = ?, status = ?, reading_time = ?, slug = ?, category_id = ?, updated_at = ?
WHERE id = ?`,
		p.Title, p.Description, p.Content, string(p.Status), p.ReadingTime, p.Slug, p.Category.ID,
		formatTime(p.UpdatedAt), p.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("post slug %q: %w", p.Slug, ErrConflict)
	}
	if err != nil {
		return err
	}
	if err := expectAffected(res, "post", p.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id = ?`, p.ID); err != nil {
		return err
	}
	if err := insertPostTags(ctx, tx, p.ID, p.TagIDs()); err != nil {
		return err
	}
	return tx.Commit()
}

func insertPostTags(ctx context.Context, tx *sql.Tx, postID string, tagIDs []string) error {
	for _, id := range tagIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO post_tags (post_id, tag_id) VALUES (?, ?)`, postID, id); err != nil {
			return err
		}
	}
	return nil
}

// DeletePosts removes posts and their tag links by id.
func (s *Store) DeletePosts(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	in := placeholders(len(ids))
	args := stringArgs(ids)
	if _, err := tx.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id IN (`+in+`)`, args...); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id IN (`+in+`)`, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("post: %w", ErrNotFound)
	}
	return tx.Commit()
}

// PostExists reports whether a post other than excludeID has the given
// title (case-insensitive) or slug.
func (s *Store) PostExists(ctx context.Context, field, value, excludeID string) (bool, error) {
	var cond string
	switch field {
	case "title":
		cond = `title = ? COLLATE NOCASE`
	case "slug":
		cond = `slug = ?`
	default:
		return false, fmt.Errorf("unique check on %q: %w", field, ErrInvalid)
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE `+cond+` AND id != ?`, value, excludeID).Scan(&n)
	return n > 0, err
}

// ListPublished returns published posts, newest first, without content.
func (s *Store) ListPublished(ctx context.Context) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, title, description, slug, reading_time, created_at, updated_at
FROM posts WHERE status = ? ORDER BY created_at DESC`, string(StatusPublished))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p := Post{Status: StatusPublished}
		var created, updated string
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Slug, &p.ReadingTime, &created, &updated); err != nil {
			return nil, err
		}
		p.CreatedAt = parseTime(created)
		p.UpdatedAt = parseTime(updated)
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// CountPostsByStatus returns the number of posts per status.
func (s *Store) CountPostsByStatus(ctx context.Context) (map[PostStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM posts GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[PostStatus]int, len(PostStatuses))
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[PostStatus(status)] = n
	}
	return counts, rows.Err()
}
