package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shelfmark/backend/internal/model"
)

const (
	authorColumns = `a.id, a.name, a.biography, a.birthdate, a.created_at, a.updated_at`
	bookColumns   = `b.id, b.title, b.description, b.slug, b.created_at, b.updated_at`
)

func scanAuthor(row pgx.Row) (*model.Author, error) {
	var a model.Author
	if err := row.Scan(&a.ID, &a.Name, &a.Biography, &a.Birthdate, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	return &a, nil
}

func scanBook(row pgx.Row) (*model.Book, error) {
	var b model.Book
	if err := row.Scan(&b.ID, &b.Title, &b.Description, &b.Slug, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	return &b, nil
}

func (db *Postgres) CreateAuthor(ctx context.Context, author *model.Author) (*model.Author, error) {
	query := `
		INSERT INTO authors AS a (name, biography, birthdate)
		VALUES ($1, $2, $3)
		RETURNING ` + authorColumns
	return scanAuthor(db.Pool.QueryRow(ctx, query, author.Name, author.Biography, author.Birthdate))
}

func (db *Postgres) GetAuthor(ctx context.Context, id int64) (*model.Author, error) {
	query := `SELECT ` + authorColumns + ` FROM authors a WHERE a.id = $1`
	return scanAuthor(db.Pool.QueryRow(ctx, query, id))
}

func (db *Postgres) ListAuthors(ctx context.Context, params model.ListParams) ([]model.Author, error) {
	query := `SELECT ` + authorColumns + ` FROM authors a ORDER BY a.id LIMIT $1 OFFSET $2`
	return db.queryAuthors(ctx, query, params.Limit, params.Offset)
}

// BooksByAuthor follows the author_books join rows of one author.
func (db *Postgres) BooksByAuthor(ctx context.Context, authorID int64) ([]model.Book, error) {
	query := `
		SELECT ` + bookColumns + `
		FROM books b
		JOIN author_books ab ON ab.book_id = b.id
		WHERE ab.author_id = $1
		ORDER BY b.id
	`
	return db.queryBooks(ctx, query, authorID)
}

func (db *Postgres) BookSlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	if err := db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM books WHERE slug = $1)`, slug).Scan(&exists); err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

// CreateBook inserts the book and its author links in one transaction.
func (db *Postgres) CreateBook(ctx context.Context, book *model.Book, authorIDs []int64) (*model.Book, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	created, err := scanBook(tx.QueryRow(ctx, `
		INSERT INTO books AS b (title, description, slug)
		VALUES ($1, $2, $3)
		RETURNING `+bookColumns,
		book.Title, book.Description, book.Slug,
	))
	if err != nil {
		return nil, err
	}

	for _, authorID := range authorIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO author_books (author_id, book_id)
			VALUES ($1, $2)
			ON CONFLICT (author_id, book_id) DO NOTHING
		`, authorID, created.ID); err != nil {
			return nil, mapError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

func (db *Postgres) GetBookBySlug(ctx context.Context, slug string) (*model.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books b WHERE b.slug = $1`
	return scanBook(db.Pool.QueryRow(ctx, query, slug))
}

func (db *Postgres) ListBooks(ctx context.Context, params model.ListParams) ([]model.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books b ORDER BY b.id LIMIT $1 OFFSET $2`
	return db.queryBooks(ctx, query, params.Limit, params.Offset)
}

func (db *Postgres) AuthorsByBook(ctx context.Context, bookID int64) ([]model.Author, error) {
	query := `
		SELECT ` + authorColumns + `
		FROM authors a
		JOIN author_books ab ON ab.author_id = a.id
		WHERE ab.book_id = $1
		ORDER BY a.id
	`
	return db.queryAuthors(ctx, query, bookID)
}

// LinkAuthorBook creates the join row; an existing link is ErrDuplicate and a
// missing author or book is ErrNotFound.
func (db *Postgres) LinkAuthorBook(ctx context.Context, authorID, bookID int64) (*model.AuthorBook, error) {
	var link model.AuthorBook
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO author_books (author_id, book_id)
		VALUES ($1, $2)
		RETURNING id, author_id, book_id, created_at
	`, authorID, bookID).Scan(&link.ID, &link.AuthorID, &link.BookID, &link.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &link, nil
}

func (db *Postgres) queryBooks(ctx context.Context, query string, args ...any) ([]model.Book, error) {
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	books := []model.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, *b)
	}
	return books, mapError(rows.Err())
}

func (db *Postgres) queryAuthors(ctx context.Context, query string, args ...any) ([]model.Author, error) {
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	authors := []model.Author{}
	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return nil, err
		}
		authors = append(authors, *a)
	}
	return authors, mapError(rows.Err())
}
