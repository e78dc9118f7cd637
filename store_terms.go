package blogadmin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eringen/blogadmin/paging"
)

// termTable names one of the two taxonomy tables. Only these constants are
// ever interpolated into SQL.
type termTable string

const (
	categoriesTable termTable = "categories"
	tagsTable       termTable = "tags"
)

var termSortColumns = map[string]string{
	"name":      "name COLLATE NOCASE",
	"slug":      "slug",
	"createdAt": "created_at",
}

// ListTerms returns one page of categories or tags matching req.
func (s *Store) ListTerms(ctx context.Context, table termTable, req paging.Request) (paging.Response[Term], error) {
	var f queryFilter
	if v := req.Filter("name"); v != "" {
		f.add(`name LIKE ? ESCAPE '\'`, likePattern(v))
	}
	if v := req.Filter("slug"); v != "" {
		f.add(`slug LIKE ? ESCAPE '\'`, likePattern(v))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+string(table)+f.where(), f.args...).Scan(&total); err != nil {
		return paging.Response[Term]{}, err
	}

	order := orderBy(termSortColumns, req, "created_at", "id")
	args := append(f.args, req.Limit(), req.Offset())
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, slug, created_at FROM `+string(table)+f.where()+order+` LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return paging.Response[Term]{}, err
	}
	terms, err := scanTerms(rows)
	if err != nil {
		return paging.Response[Term]{}, err
	}
	return paging.NewResponse(terms, total, req), nil
}

// AllTerms returns every category or tag ordered by name.
func (s *Store) AllTerms(ctx context.Context, table termTable) ([]Term, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, slug, created_at FROM `+string(table)+` ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, err
	}
	return scanTerms(rows)
}

// TermsByIDs returns the terms whose id is in ids, ordered by name.
func (s *Store) TermsByIDs(ctx context.Context, table termTable, ids []string) ([]Term, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, slug, created_at FROM `+string(table)+` WHERE id IN (`+placeholders(len(ids))+`) ORDER BY name COLLATE NOCASE`,
		stringArgs(ids)...)
	if err != nil {
		return nil, err
	}
	return scanTerms(rows)
}

// GetTerm looks a term up by "id" or "slug".
func (s *Store) GetTerm(ctx context.Context, table termTable, field, value string) (Term, error) {
	if field != "id" && field != "slug" {
		return Term{}, fmt.Errorf("lookup by %q: %w", field, ErrInvalid)
	}
	var t Term
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, slug, created_at FROM `+string(table)+` WHERE `+field+` = ?`, value).
		Scan(&t.ID, &t.Name, &t.Slug, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Term{}, fmt.Errorf("%s %q: %w", table, value, ErrNotFound)
	}
	if err != nil {
		return Term{}, err
	}
	t.CreatedAt = parseTime(created)
	return t, nil
}

// CreateTerm inserts t.
func (s *Store) CreateTerm(ctx context.Context, table termTable, t Term) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+string(table)+` (id, name, slug, created_at) VALUES (?, ?, ?, ?)`,
		t.ID, t.Name, t.Slug, formatTime(t.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("%s slug %q: %w", table, t.Slug, ErrConflict)
	}
	return err
}

// UpdateTerm renames t.
func (s *Store) UpdateTerm(ctx context.Context, table termTable, t Term) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE `+string(table)+` SET name = ?, slug = ? WHERE id = ?`, t.Name, t.Slug, t.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%s slug %q: %w", table, t.Slug, ErrConflict)
	}
	if err != nil {
		return err
	}
	return expectAffected(res, string(table), t.ID)
}

// DeleteTerms removes terms by id in one transaction. A category still
// referenced by a post cannot be deleted; a tag is detached from its posts.
func (s *Store) DeleteTerms(ctx context.Context, table termTable, ids []string) error {
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
	switch table {
	case categoriesTable:
		var used int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE category_id IN (`+in+`)`, args...).Scan(&used); err != nil {
			return err
		}
		if used > 0 {
			return fmt.Errorf("category is used by %d post(s): %w", used, ErrConflict)
		}
	case tagsTable:
		if _, err := tx.ExecContext(ctx, `DELETE FROM post_tags WHERE tag_id IN (`+in+`)`, args...); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM `+string(table)+` WHERE id IN (`+in+`)`, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", table, ErrNotFound)
	}
	return tx.Commit()
}

// TermExists reports whether a term other than excludeID has the given
// name (case-insensitive) or slug.
func (s *Store) TermExists(ctx context.Context, table termTable, field, value, excludeID string) (bool, error) {
	var cond string
	switch field {
	case "name":
		cond = `name = ? COLLATE NOCASE`
	case "slug":
		cond = `slug = ?`
	default:
		return false, fmt.Errorf("unique check on %q: %w", field, ErrInvalid)
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+string(table)+` WHERE `+cond+` AND id != ?`, value, excludeID).Scan(&n)
	return n > 0, err
}

// CountTerms returns the number of categories or tags.
func (s *Store) CountTerms(ctx context.Context, table termTable) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+string(table)).Scan(&n)
	return n, err
}

func scanTerms(rows *sql.Rows) ([]Term, error) {
	defer rows.Close()
	var terms []Term
	for rows.Next() {
		var t Term
		var created string
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &created); err != nil {
			return nil, err
		}
		t.CreatedAt = parseTime(created)
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

// orderBy renders an ORDER BY clause from a whitelist of sortable columns.
func orderBy(columns map[string]string, req paging.Request, fallback, idColumn string) string {
	col, ok := columns[req.SortBy]
	if !ok {
		col = fallback
	}
	dir := "ASC"
	if req.SortDirection == paging.Desc {
		dir = "DESC"
	}
	return " ORDER BY " + col + " " + dir + ", " + idColumn + " " + dir
}

func expectAffected(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", what, id, ErrNotFound)
	}
	return nil
}
