package model

import "time"

type Author struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Biography *string    `json:"biography"`
	Birthdate *time.Time `json:"birthdate"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	// Books is only filled when the related entities were requested.
	Books []Book `json:"books,omitempty"`
}

type Book struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Slug        string    `json:"slug_book"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Authors     []Author  `json:"authors,omitempty"`
}

// AuthorBook links one author to one book.
type AuthorBook struct {
	ID        int64     `json:"id"`
	AuthorID  int64     `json:"author_id"`
	BookID    int64     `json:"book_id"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateAuthorRequest struct {
	Name      string  `json:"name"`
	Biography *string `json:"biography"`
	Birthdate *string `json:"birthdate"`
}

type CreateBookRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Slug        *string `json:"slug"`
	AuthorIDs   []int64 `json:"author_ids"`
}

type ListParams struct {
	Limit  int
	Offset int
}
