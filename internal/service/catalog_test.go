package service

import (
	"context"
	"testing"

	"github.com/shelfmark/backend/internal/db/dbtest"
	"github.com/shelfmark/backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"The Name of the Wind":     "the-name-of-the-wind",
		"  Cien años de soledad  ": "cien-anos-de-soledad",
		"Ça & Là -- encore!":       "ca-la-encore",
		"1984":                     "1984",
		"!!!":                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestCreateBookMakesSlugUnique(t *testing.T) {
	svc := NewCatalogService(dbtest.NewMemStore())
	ctx := context.Background()

	first, err := svc.CreateBook(ctx, BookInput{Title: "Dune"})
	require.NoError(t, err)
	second, err := svc.CreateBook(ctx, BookInput{Title: "Dune"})
	require.NoError(t, err)
	third, err := svc.CreateBook(ctx, BookInput{Title: "Something else", Slug: strPtr("DUNE")})
	require.NoError(t, err)
	punct, err := svc.CreateBook(ctx, BookInput{Title: "???"})
	require.NoError(t, err)

	assert.Equal(t, "dune", first.Slug)
	assert.Equal(t, "dune-1", second.Slug)
	assert.Equal(t, "dune-2", third.Slug)
	assert.Equal(t, "book", punct.Slug)
}

func TestCreateBookLinksAuthors(t *testing.T) {
	svc := NewCatalogService(dbtest.NewMemStore())
	ctx := context.Background()

	author, err := svc.CreateAuthor(ctx, AuthorInput{Name: "Ursula K. Le Guin", Birthdate: strPtr("1929-10-21")})
	require.NoError(t, err)
	require.NotNil(t, author.Birthdate)
	assert.Equal(t, 1929, author.Birthdate.Year())

	book, err := svc.CreateBook(ctx, BookInput{Title: "The Dispossessed", AuthorIDs: []int64{author.ID, author.ID}})
	require.NoError(t, err)

	withBooks, err := svc.GetAuthor(ctx, author.ID, true)
	require.NoError(t, err)
	require.Len(t, withBooks.Books, 1)
	assert.Equal(t, book.ID, withBooks.Books[0].ID)

	withAuthors, err := svc.GetBookBySlug(ctx, book.Slug, true)
	require.NoError(t, err)
	require.Len(t, withAuthors.Authors, 1)
	assert.Equal(t, author.Name, withAuthors.Authors[0].Name)

	plain, err := svc.GetAuthor(ctx, author.ID, false)
	require.NoError(t, err)
	assert.Nil(t, plain.Books)
}

func TestCreateBookUnknownAuthor(t *testing.T) {
	store := dbtest.NewMemStore()
	svc := NewCatalogService(store)

	_, err := svc.CreateBook(context.Background(), BookInput{Title: "Orphan", AuthorIDs: []int64{77}})
	assert.ErrorIs(t, err, ErrNotFound)

	books, err := svc.ListBooks(context.Background(), model.ListParams{})
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestCatalogValidation(t *testing.T) {
	svc := NewCatalogService(dbtest.NewMemStore())
	ctx := context.Background()

	_, err := svc.CreateAuthor(ctx, AuthorInput{Name: " "})
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = svc.CreateAuthor(ctx, AuthorInput{Name: "X", Birthdate: strPtr("21/10/1929")})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.CreateBook(ctx, BookInput{})
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = svc.GetAuthor(ctx, 404, false)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.GetBookBySlug(ctx, "missing", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLinkAuthorBook(t *testing.T) {
	svc := NewCatalogService(dbtest.NewMemStore())
	ctx := context.Background()

	author, err := svc.CreateAuthor(ctx, AuthorInput{Name: "Octavia Butler"})
	require.NoError(t, err)
	book, err := svc.CreateBook(ctx, BookInput{Title: "Kindred"})
	require.NoError(t, err)

	link, err := svc.LinkAuthorBook(ctx, author.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, author.ID, link.AuthorID)
	assert.Equal(t, book.ID, link.BookID)

	_, err = svc.LinkAuthorBook(ctx, author.ID, book.ID)
	assert.ErrorIs(t, err, ErrConflict)
	_, err = svc.LinkAuthorBook(ctx, author.ID, 999)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.LinkAuthorBook(ctx, 0, book.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestListParamsAreClamped(t *testing.T) {
	assert.Equal(t, model.ListParams{Limit: defaultListLimit}, normalizeListParams(model.ListParams{Offset: -3}))
	assert.Equal(t, maxListLimit, normalizeListParams(model.ListParams{Limit: 10_000}).Limit)

	svc := NewCatalogService(dbtest.NewMemStore())
	ctx := context.Background()
	for _, name := range []string{"A", "B", "C"} {
		_, err := svc.CreateAuthor(ctx, AuthorInput{Name: name})
		require.NoError(t, err)
	}

	authors, err := svc.ListAuthors(ctx, model.ListParams{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, authors, 2)
	assert.Equal(t, "B", authors[0].Name)
}
