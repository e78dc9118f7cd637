package blogadmin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eringen/blogadmin/activity"
	"github.com/eringen/blogadmin/paging"
)

// Auditor records writes in the activity log. The zero value is a no-op.
type Auditor struct {
	rec *activity.Store
	log *zap.Logger
}

// NewAuditor records into rec, logging failures to log.
func NewAuditor(rec *activity.Store, log *zap.Logger) Auditor {
	return Auditor{rec: rec, log: log}
}

func (a Auditor) note(ctx context.Context, action, entity, id, label string) {
	if a.rec == nil {
		return
	}
	err := a.rec.Record(ctx, activity.Entry{Action: action, Entity: entity, EntityID: id, Label: label})
	if err != nil && a.log != nil {
		a.log.Warn("record activity", zap.String("entity", entity), zap.String("action", action), zap.Error(err))
	}
}

// PostService holds the post use cases: listing with a query cache,
// lookups, uniqueness checks and validated writes.
type PostService struct {
	store     *Store
	pipeline  *ContentPipeline
	cache     *ListCache[paging.Response[PostListItem]]
	published *ListCache[[]Post]
	audit     Auditor
	now       func() time.Time
}

// NewPostService creates a PostService whose list cache lives for ttl.
func NewPostService(store *Store, pipeline *ContentPipeline, audit Auditor, ttl time.Duration) *PostService {
	return &PostService{
		store:     store,
		pipeline:  pipeline,
		cache:     NewListCache[paging.Response[PostListItem]](ttl),
		published: NewListCache[[]Post](ttl),
		audit:     audit,
		now:       time.Now,
	}
}

// Invalidate drops cached lists. Term writes call it since rows carry
// category and tag names.
func (s *PostService) Invalidate() {
	s.cache.Invalidate()
	s.published.Invalidate()
}

// List returns one page of posts for req.
func (s *PostService) List(ctx context.Context, req paging.Request) (paging.Response[PostListItem], error) {
	return s.cache.Get(req.Encode(), func() (paging.Response[PostListItem], error) {
		return s.store.ListPosts(ctx, req)
	})
}

// Published returns every published post, newest first.
func (s *PostService) Published(ctx context.Context) ([]Post, error) {
	return s.published.Get("published", func() ([]Post, error) {
		return s.store.ListPublished(ctx)
	})
}

func (s *PostService) GetBySlug(ctx context.Context, slug string) (Post, error) {
	return s.store.GetPost(ctx, "slug", slug)
}

func (s *PostService) GetByID(ctx context.Context, id string) (Post, error) {
	return s.store.GetPost(ctx, "id", id)
}

// CheckUnique reports whether no post other than excludeID has value in
// field ("title" or "slug").
func (s *PostService) CheckUnique(ctx context.Context, field, value, excludeID string) (bool, error) {
	exists, err := s.store.PostExists(ctx, field, strings.TrimSpace(value), excludeID)
	return !exists, err
}

// Stats counts posts per status.
func (s *PostService) Stats(ctx context.Context) (map[PostStatus]int, error) {
	return s.store.CountPostsByStatus(ctx)
}

// Preview renders content the way it would be stored, leaving embedded
// images inline.
func (s *PostService) Preview(ctx context.Context, content, format string) (string, error) {
	html, _, err := s.pipeline.Prepare(ctx, content, format, false)
	return html, err
}

// Create validates in, uploads embedded images and stores a new post.
func (s *PostService) Create(ctx context.Context, in PostInput) (Post, error) {
	p, stored, err := s.build(ctx, "", in)
	if err != nil {
		return Post{}, err
	}
	now := s.now().UTC()
	p.ID = uuid.NewString()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Slug, err = uniqueSlug(ctx, p.Title, s.slugTaken("")); err == nil {
		err = s.store.CreatePost(ctx, p)
	}
	if err != nil {
		s.pipeline.Discard(ctx, stored)
		return Post{}, err
	}
	s.Invalidate()
	s.audit.note(ctx, activity.ActionCreate, "post", p.ID, p.Title)
	return s.store.GetPost(ctx, "id", p.ID)
}

// Update replaces the post id with in. The slug follows the title.
func (s *PostService) Update(ctx context.Context, id string, in PostInput) (Post, error) {
	existing, err := s.store.GetPost(ctx, "id", id)
	if err != nil {
		return Post{}, err
	}
	p, stored, err := s.build(ctx, id, in)
	if err != nil {
		return Post{}, err
	}
	p.ID = id
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now().UTC()
	p.Slug = existing.Slug
	if p.Title != existing.Title {
		p.Slug, err = uniqueSlug(ctx, p.Title, s.slugTaken(id))
	}
	if err == nil {
		err = s.store.UpdatePost(ctx, p)
	}
	if err != nil {
		s.pipeline.Discard(ctx, stored)
		return Post{}, err
	}
	s.Invalidate()
	s.audit.note(ctx, activity.ActionUpdate, "post", p.ID, p.Title)
	return s.store.GetPost(ctx, "id", p.ID)
}

// build validates in against the stored terms and runs the content
// pipeline. excludeID is the post being updated, if any. The filenames of
// images stored on the way are returned alongside the post.
func (s *PostService) build(ctx context.Context, excludeID string, in PostInput) (Post, []string, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Status = PostStatus(strings.ToUpper(string(in.Status)))
	if in.Status == "" {
		in.Status = StatusDraft
	}
	in.TagIDs = dedupe(FilterEmpty(in.TagIDs))

	v := validatePostInput(in)
	if _, bad := v.Fields["title"]; !bad {
		unique, err := s.CheckUnique(ctx, "title", in.Title, excludeID)
		if err != nil {
			return Post{}, nil, err
		}
		if !unique {
			v.Add("title", "Already exists with this title")
		}
	}

	var category Term
	if _, bad := v.Fields["category_id"]; !bad {
		var err error
		category, err = s.store.GetTerm(ctx, categoriesTable, "id", in.CategoryID)
		switch {
		case errors.Is(err, ErrNotFound):
			v.Add("category_id", "Category does not exist")
		case err != nil:
			return Post{}, nil, err
		}
	}

	var tags []Term
	if _, bad := v.Fields["tag_ids"]; !bad {
		var err error
		if tags, err = s.store.TermsByIDs(ctx, tagsTable, in.TagIDs); err != nil {
			return Post{}, nil, err
		}
		if len(tags) != len(in.TagIDs) {
			v.Add("tag_ids", "Tag does not exist")
		}
	}
	if err := v.Err(); err != nil {
		return Post{}, nil, err
	}

	content, stored, err := s.pipeline.Prepare(ctx, in.Content, in.Format, true)
	if err != nil {
		return Post{}, nil, err
	}
	return Post{
		Title:       in.Title,
		Description: in.Description,
		Content:     content,
		Status:      in.Status,
		ReadingTime: ReadingTime(content),
		Category:    category,
		Tags:        tags,
	}, stored, nil
}

func (s *PostService) slugTaken(excludeID string) func(context.Context, string) (bool, error) {
	return func(ctx context.Context, slug string) (bool, error) {
		return s.store.PostExists(ctx, "slug", slug, excludeID)
	}
}

// Delete removes one post.
func (s *PostService) Delete(ctx context.Context, id string) error {
	p, err := s.store.GetPost(ctx, "id", id)
	if err != nil {
		return err
	}
	if err := s.store.DeletePosts(ctx, []string{id}); err != nil {
		return err
	}
	s.Invalidate()
	s.audit.note(ctx, activity.ActionDelete, "post", id, p.Title)
	return nil
}

// DeleteMany removes several posts at once.
func (s *PostService) DeleteMany(ctx context.Context, ids []string) error {
	ids = dedupe(FilterEmpty(ids))
	if len(ids) == 0 {
		return fmt.Errorf("%w: no ids given", ErrInvalid)
	}
	if err := s.store.DeletePosts(ctx, ids); err != nil {
		return err
	}
	s.Invalidate()
	s.audit.note(ctx, activity.ActionDelete, "post", strings.Join(ids, ","), fmt.Sprintf("%d posts", len(ids)))
	return nil
}

// TermKind describes one of the two taxonomies.
type TermKind struct {
	table    termTable
	Singular string // "category"
	Plural   string // "categories"
	Label    string // "Category"
}

var (
	CategoryKind = TermKind{table: categoriesTable, Singular: "category", Plural: "categories", Label: "Category"}
	TagKind      = TermKind{table: tagsTable, Singular: "tag", Plural: "tags", Label: "Tag"}
)

// TermService holds the category or tag use cases.
type TermService struct {
	Kind     TermKind
	store    *Store
	cache    *ListCache[paging.Response[Term]]
	all      *ListCache[[]Term]
	audit    Auditor
	onChange []func()
	now      func() time.Time
}

// NewTermService creates a TermService for kind. onChange hooks run after
// every write.
func NewTermService(kind TermKind, store *Store, audit Auditor, ttl time.Duration, onChange ...func()) *TermService {
	return &TermService{
		Kind:     kind,
		store:    store,
		cache:    NewListCache[paging.Response[Term]](ttl),
		all:      NewListCache[[]Term](ttl),
		audit:    audit,
		onChange: onChange,
		now:      time.Now,
	}
}

func (s *TermService) changed() {
	s.cache.Invalidate()
	s.all.Invalidate()
	for _, fn := range s.onChange {
		fn()
	}
}

// List returns one page of terms for req.
func (s *TermService) List(ctx context.Context, req paging.Request) (paging.Response[Term], error) {
	return s.cache.Get(req.Encode(), func() (paging.Response[Term], error) {
		return s.store.ListTerms(ctx, s.Kind.table, req)
	})
}

// All returns every term ordered by name, for selects and filters.
func (s *TermService) All(ctx context.Context) ([]Term, error) {
	return s.all.Get("all", func() ([]Term, error) {
		return s.store.AllTerms(ctx, s.Kind.table)
	})
}

func (s *TermService) GetBySlug(ctx context.Context, slug string) (Term, error) {
	return s.store.GetTerm(ctx, s.Kind.table, "slug", slug)
}

func (s *TermService) GetByID(ctx context.Context, id string) (Term, error) {
	return s.store.GetTerm(ctx, s.Kind.table, "id", id)
}

// Count returns the number of terms.
func (s *TermService) Count(ctx context.Context) (int, error) {
	return s.store.CountTerms(ctx, s.Kind.table)
}

// CheckUnique reports whether no term other than excludeID has value in
// field ("name" or "slug").
func (s *TermService) CheckUnique(ctx context.Context, field, value, excludeID string) (bool, error) {
	exists, err := s.store.TermExists(ctx, s.Kind.table, field, strings.TrimSpace(value), excludeID)
	return !exists, err
}

func (s *TermService) validate(ctx context.Context, excludeID string, in TermInput) (TermInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	v := validateTermInput(in)
	if v.Err() == nil {
		unique, err := s.CheckUnique(ctx, "name", in.Name, excludeID)
		if err != nil {
			return in, err
		}
		if !unique {
			v.Add("name", "Already exists with this name")
		}
	}
	return in, v.Err()
}

func (s *TermService) slugTaken(excludeID string) func(context.Context, string) (bool, error) {
	return func(ctx context.Context, slug string) (bool, error) {
		return s.store.TermExists(ctx, s.Kind.table, "slug", slug, excludeID)
	}
}

// Create stores a new term.
func (s *TermService) Create(ctx context.Context, in TermInput) (Term, error) {
	in, err := s.validate(ctx, "", in)
	if err != nil {
		return Term{}, err
	}
	t := Term{ID: uuid.NewString(), Name: in.Name, CreatedAt: s.now().UTC()}
	if t.Slug, err = uniqueSlug(ctx, t.Name, s.slugTaken("")); err != nil {
		return Term{}, err
	}
	if err := s.store.CreateTerm(ctx, s.Kind.table, t); err != nil {
		return Term{}, err
	}
	s.changed()
	s.audit.note(ctx, activity.ActionCreate, s.Kind.Singular, t.ID, t.Name)
	return t, nil
}

// Update renames the term id; its slug follows the name.
func (s *TermService) Update(ctx context.Context, id string, in TermInput) (Term, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return Term{}, err
	}
	if in, err = s.validate(ctx, id, in); err != nil {
		return Term{}, err
	}
	if in.Name != t.Name {
		t.Name = in.Name
		if t.Slug, err = uniqueSlug(ctx, t.Name, s.slugTaken(id)); err != nil {
			return Term{}, err
		}
	}
	if err := s.store.UpdateTerm(ctx, s.Kind.table, t); err != nil {
		return Term{}, err
	}
	s.changed()
	s.audit.note(ctx, activity.ActionUpdate, s.Kind.Singular, t.ID, t.Name)
	return t, nil
}

// Delete removes one term.
func (s *TermService) Delete(ctx context.Context, id string) error {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTerms(ctx, s.Kind.table, []string{id}); err != nil {
		return err
	}
	s.changed()
	s.audit.note(ctx, activity.ActionDelete, s.Kind.Singular, id, t.Name)
	return nil
}

// DeleteMany removes several terms in one transaction.
func (s *TermService) DeleteMany(ctx context.Context, ids []string) error {
	ids = dedupe(FilterEmpty(ids))
	if len(ids) == 0 {
		return fmt.Errorf("%w: no ids given", ErrInvalid)
	}
	if err := s.store.DeleteTerms(ctx, s.Kind.table, ids); err != nil {
		return err
	}
	s.changed()
	s.audit.note(ctx, activity.ActionDelete, s.Kind.Singular, strings.Join(ids, ","), fmt.Sprintf("%d %s", len(ids), s.Kind.Plural))
	return nil
}
