package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"
	"github.com/shelfmark/backend/internal/db"
	"github.com/shelfmark/backend/internal/model"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	defaultListLimit  = 50
	maxListLimit      = 200
	maxSlugAttempts   = 100
	maxCreateAttempts = 3
	birthdateLayout   = "2006-01-02"
)

type CatalogStore interface {
	CreateAuthor(ctx context.Context, author *model.Author) (*model.Author, error)
	GetAuthor(ctx context.Context, id int64) (*model.Author, error)
	ListAuthors(ctx context.Context, params model.ListParams) ([]model.Author, error)
	BooksByAuthor(ctx context.Context, authorID int64) ([]model.Book, error)
	BookSlugExists(ctx context.Context, slug string) (bool, error)
	CreateBook(ctx context.Context, book *model.Book, authorIDs []int64) (*model.Book, error)
	GetBookBySlug(ctx context.Context, slug string) (*model.Book, error)
	ListBooks(ctx context.Context, params model.ListParams) ([]model.Book, error)
	AuthorsByBook(ctx context.Context, bookID int64) ([]model.Author, error)
	LinkAuthorBook(ctx context.Context, authorID, bookID int64) (*model.AuthorBook, error)
}

type AuthorInput struct {
	Name      string
	Biography *string
	Birthdate *string
}

type BookInput struct {
	Title       string
	Description *string
	Slug        *string
	AuthorIDs   []int64
}

type CatalogService struct {
	store CatalogStore
}

func NewCatalogService(store CatalogStore) *CatalogService {
	return &CatalogService{store: store}
}

func (s *CatalogService) CreateAuthor(ctx context.Context, in AuthorInput) (*model.Author, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name", ErrMissingField)
	}

	author := &model.Author{Name: name, Biography: in.Biography}
	if in.Birthdate != nil && strings.TrimSpace(*in.Birthdate) != "" {
		birthdate, err := time.Parse(birthdateLayout, strings.TrimSpace(*in.Birthdate))
		if err != nil {
			return nil, fmt.Errorf("%w: birthdate must be YYYY-MM-DD", ErrInvalidInput)
		}
		author.Birthdate = &birthdate
	}

	created, err := s.store.CreateAuthor(ctx, author)
	if err != nil {
		return nil, storageError(err)
	}
	log.Ctx(ctx).Info().Int64("author_id", created.ID).Msg("author created")
	return created, nil
}

func (s *CatalogService) ListAuthors(ctx context.Context, params model.ListParams) ([]model.Author, error) {
	authors, err := s.store.ListAuthors(ctx, normalizeListParams(params))
	if err != nil {
		return nil, storageError(err)
	}
	return authors, nil
}

// GetAuthor loads one author; related also loads the author's books.
func (s *CatalogService) GetAuthor(ctx context.Context, id int64, related bool) (*model.Author, error) {
	author, err := s.store.GetAuthor(ctx, id)
	if err != nil {
		return nil, catalogError(err)
	}
	if related {
		books, err := s.store.BooksByAuthor(ctx, id)
		if err != nil {
			return nil, storageError(err)
		}
		author.Books = books
	}
	return author, nil
}

func (s *CatalogService) CreateBook(ctx context.Context, in BookInput) (*model.Book, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title", ErrMissingField)
	}

	source := title
	if in.Slug != nil && strings.TrimSpace(*in.Slug) != "" {
		source = *in.Slug
	}
	base := Slugify(source)
	if base == "" {
		base = "book"
	}

	authorIDs := dedupeIDs(in.AuthorIDs)
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		slug, err := s.uniqueSlug(ctx, base)
		if err != nil {
			return nil, err
		}

		created, err := s.store.CreateBook(ctx, &model.Book{
			Title:       title,
			Description: in.Description,
			Slug:        slug,
		}, authorIDs)
		if err == nil {
			log.Ctx(ctx).Info().
				Int64("book_id", created.ID).
				Str("slug", created.Slug).
				Int("authors", len(authorIDs)).
				Msg("book created")
			return created, nil
		}
		// Another writer took the slug between the check and the insert.
		if db.IsDuplicate(err) {
			continue
		}
		return nil, catalogError(err)
	}
	return nil, fmt.Errorf("%w: slug %s", ErrConflict, base)
}

func (s *CatalogService) ListBooks(ctx context.Context, params model.ListParams) ([]model.Book, error) {
	books, err := s.store.ListBooks(ctx, normalizeListParams(params))
	if err != nil {
		return nil, storageError(err)
	}
	return books, nil
}

func (s *CatalogService) GetBookBySlug(ctx context.Context, slug string, related bool) (*model.Book, error) {
	book, err := s.store.GetBookBySlug(ctx, slug)
	if err != nil {
		return nil, catalogError(err)
	}
	if related {
		authors, err := s.store.AuthorsByBook(ctx, book.ID)
		if err != nil {
			return nil, storageError(err)
		}
		book.Authors = authors
	}
	return book, nil
}

func (s *CatalogService) LinkAuthorBook(ctx context.Context, authorID, bookID int64) (*model.AuthorBook, error) {
	if authorID <= 0 || bookID <= 0 {
		return nil, fmt.Errorf("%w: author and book ids must be positive", ErrInvalidInput)
	}
	link, err := s.store.LinkAuthorBook(ctx, authorID, bookID)
	if err != nil {
		return nil, catalogError(err)
	}
	return link, nil
}

func (s *CatalogService) uniqueSlug(ctx context.Context, base string) (string, error) {
	for n := 0; n < maxSlugAttempts; n++ {
		candidate := base
		if n > 0 {
			candidate = fmt.Sprintf("%s-%d", base, n)
		}
		exists, err := s.store.BookSlugExists(ctx, candidate)
		if err != nil {
			return "", storageError(err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: slug %s", ErrConflict, base)
}

// Slugify folds s to lowercase ASCII letters and digits joined by single
// hyphens.
func Slugify(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

func normalizeListParams(params model.ListParams) model.ListParams {
	if params.Limit <= 0 {
		params.Limit = defaultListLimit
	}
	if params.Limit > maxListLimit {
		params.Limit = maxListLimit
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	return params
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func catalogError(err error) error {
	switch {
	case db.IsNotFound(err):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case db.IsDuplicate(err):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return storageError(err)
	}
}
