// Package dbtest provides an in-memory store with the semantics of db.Postgres
// (case-insensitive uniqueness, not-found and duplicate sentinels) for tests.
package dbtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shelfmark/backend/internal/db"
	"github.com/shelfmark/backend/internal/model"
)

type MemStore struct {
	mu sync.Mutex

	// Err, when set, is returned by every call to simulate an unavailable database.
	Err error

	users   map[int64]model.User
	revoked map[string]model.RevokedToken
	authors map[int64]model.Author
	books   map[int64]model.Book
	links   []model.AuthorBook
	nextID  int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		users:   map[int64]model.User{},
		revoked: map[string]model.RevokedToken{},
		authors: map[int64]model.Author{},
		books:   map[int64]model.Book{},
	}
}

func (s *MemStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Err
}

func (s *MemStore) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	for _, u := range s.users {
		if strings.EqualFold(u.Username, user.Username) {
			return nil, fmt.Errorf("%w: users_username_lower_key", db.ErrDuplicate)
		}
		if strings.EqualFold(u.Email, user.Email) {
			return nil, fmt.Errorf("%w: users_email_lower_key", db.ErrDuplicate)
		}
	}

	now := time.Now()
	stored := *user
	stored.ID = s.id()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.users[stored.ID] = stored

	out := stored
	return &out, nil
}

func (s *MemStore) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	u, ok := s.users[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &u, nil
}

func (s *MemStore) GetUserByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	var byEmail *model.User
	for _, id := range s.sortedUserIDs() {
		u := s.users[id]
		if strings.EqualFold(u.Username, identifier) {
			return &u, nil
		}
		if byEmail == nil && strings.EqualFold(u.Email, identifier) {
			byEmail = &u
		}
	}
	if byEmail == nil {
		return nil, db.ErrNotFound
	}
	return byEmail, nil
}

func (s *MemStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, db.ErrNotFound
}

// UserCount is a test helper.
func (s *MemStore) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *MemStore) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}

	if _, ok := s.revoked[jti]; ok {
		return false, nil
	}
	s.revoked[jti] = model.RevokedToken{JTI: jti, ExpiresAt: expiresAt, RevokedAt: time.Now()}
	return true, nil
}

func (s *MemStore) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}

	_, ok := s.revoked[jti]
	return ok, nil
}

func (s *MemStore) DeleteExpiredRevocations(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}

	var deleted int64
	for jti, r := range s.revoked {
		if r.ExpiresAt.Before(now) {
			delete(s.revoked, jti)
			deleted++
		}
	}
	return deleted, nil
}

// RevokedCount is a test helper.
func (s *MemStore) RevokedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.revoked)
}

func (s *MemStore) CreateAuthor(ctx context.Context, author *model.Author) (*model.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	now := time.Now()
	stored := *author
	stored.ID = s.id()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	stored.Books = nil
	s.authors[stored.ID] = stored
	return &stored, nil
}

func (s *MemStore) GetAuthor(ctx context.Context, id int64) (*model.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	a, ok := s.authors[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &a, nil
}

func (s *MemStore) ListAuthors(ctx context.Context, params model.ListParams) ([]model.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	ids := make([]int64, 0, len(s.authors))
	for id := range s.authors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := []model.Author{}
	for _, id := range page(ids, params) {
		out = append(out, s.authors[id])
	}
	return out, nil
}

func (s *MemStore) BooksByAuthor(ctx context.Context, authorID int64) ([]model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	out := []model.Book{}
	for _, l := range s.links {
		if l.AuthorID == authorID {
			out = append(out, s.books[l.BookID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) BookSlugExists(ctx context.Context, slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}

	for _, b := range s.books {
		if b.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemStore) CreateBook(ctx context.Context, book *model.Book, authorIDs []int64) (*model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	for _, b := range s.books {
		if b.Slug == book.Slug {
			return nil, fmt.Errorf("%w: books_slug_key", db.ErrDuplicate)
		}
	}
	for _, authorID := range authorIDs {
		if _, ok := s.authors[authorID]; !ok {
			return nil, fmt.Errorf("%w: author_books_author_id_fkey", db.ErrNotFound)
		}
	}

	now := time.Now()
	stored := *book
	stored.ID = s.id()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	stored.Authors = nil
	s.books[stored.ID] = stored

	for _, authorID := range authorIDs {
		if !s.linked(authorID, stored.ID) {
			s.links = append(s.links, model.AuthorBook{ID: s.id(), AuthorID: authorID, BookID: stored.ID, CreatedAt: now})
		}
	}
	return &stored, nil
}

func (s *MemStore) GetBookBySlug(ctx context.Context, slug string) (*model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	for _, b := range s.books {
		if b.Slug == slug {
			return &b, nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *MemStore) ListBooks(ctx context.Context, params model.ListParams) ([]model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	ids := make([]int64, 0, len(s.books))
	for id := range s.books {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := []model.Book{}
	for _, id := range page(ids, params) {
		out = append(out, s.books[id])
	}
	return out, nil
}

func (s *MemStore) AuthorsByBook(ctx context.Context, bookID int64) ([]model.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	out := []model.Author{}
	for _, l := range s.links {
		if l.BookID == bookID {
			out = append(out, s.authors[l.AuthorID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) LinkAuthorBook(ctx context.Context, authorID, bookID int64) (*model.AuthorBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	if _, ok := s.authors[authorID]; !ok {
		return nil, fmt.Errorf("%w: author_books_author_id_fkey", db.ErrNotFound)
	}
	if _, ok := s.books[bookID]; !ok {
		return nil, fmt.Errorf("%w: author_books_book_id_fkey", db.ErrNotFound)
	}
	if s.linked(authorID, bookID) {
		return nil, fmt.Errorf("%w: author_books_author_id_book_id_key", db.ErrDuplicate)
	}

	link := model.AuthorBook{ID: s.id(), AuthorID: authorID, BookID: bookID, CreatedAt: time.Now()}
	s.links = append(s.links, link)
	return &link, nil
}

func (s *MemStore) linked(authorID, bookID int64) bool {
	for _, l := range s.links {
		if l.AuthorID == authorID && l.BookID == bookID {
			return true
		}
	}
	return false
}

func (s *MemStore) sortedUserIDs() []int64 {
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func page(ids []int64, params model.ListParams) []int64 {
	if params.Offset >= len(ids) {
		return nil
	}
	ids = ids[params.Offset:]
	if params.Limit > 0 && params.Limit < len(ids) {
		ids = ids[:params.Limit]
	}
	return ids
}
