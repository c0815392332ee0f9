package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shelfmark/backend/internal/model"
	"github.com/shelfmark/backend/internal/service"
)

type CatalogHandler struct {
	svc *service.CatalogService
}

func NewCatalogHandler(svc *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// CreateAuthor godoc
// @Summary Create an author
// @Tags catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.CreateAuthorRequest true "Author"
// @Success 201 {object} model.Author
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /author-books/authors [post]
func (h *CatalogHandler) CreateAuthor(c *gin.Context) {
	var req model.CreateAuthorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request")
		return
	}

	author, err := h.svc.CreateAuthor(c.Request.Context(), service.AuthorInput{
		Name:      req.Name,
		Biography: req.Biography,
		Birthdate: req.Birthdate,
	})
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, author)
}

// ListAuthors godoc
// @Summary List authors
// @Tags catalog
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (default 50, max 200)"
// @Param offset query int false "Offset"
// @Success 200 {array} model.Author
// @Failure 401 {object} model.ErrorResponse
// @Router /author-books/authors [get]
func (h *CatalogHandler) ListAuthors(c *gin.Context) {
	params, ok := listParams(c)
	if !ok {
		return
	}
	authors, err := h.svc.ListAuthors(c.Request.Context(), params)
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, authors)
}

// GetAuthor godoc
// @Summary Get an author
// @Tags catalog
// @Produce json
// @Security BearerAuth
// @Param id path int true "Author ID"
// @Param related query bool false "Include the author's books"
// @Success 200 {object} model.Author
// @Failure 401 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /author-books/authors/{id} [get]
func (h *CatalogHandler) GetAuthor(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	related, ok := relatedFlag(c)
	if !ok {
		return
	}

	author, err := h.svc.GetAuthor(c.Request.Context(), id, related)
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, author)
}

// CreateBook godoc
// @Summary Create a book
// @Description The slug is derived from the title when omitted and made unique.
// @Tags catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.CreateBookRequest true "Book"
// @Success 201 {object} model.Book
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /author-books/books [post]
func (h *CatalogHandler) CreateBook(c *gin.Context) {
	var req model.CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request")
		return
	}

	book, err := h.svc.CreateBook(c.Request.Context(), service.BookInput{
		Title:       req.Title,
		Description: req.Description,
		Slug:        req.Slug,
		AuthorIDs:   req.AuthorIDs,
	})
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

// ListBooks godoc
// @Summary List books
// @Tags catalog
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (default 50, max 200)"
// @Param offset query int false "Offset"
// @Success 200 {array} model.Book
// @Failure 401 {object} model.ErrorResponse
// @Router /author-books/books [get]
func (h *CatalogHandler) ListBooks(c *gin.Context) {
	params, ok := listParams(c)
	if !ok {
		return
	}
	books, err := h.svc.ListBooks(c.Request.Context(), params)
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

// GetBook godoc
// @Summary Get a book by slug
// @Tags catalog
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Book slug"
// @Param related query bool false "Include the book's authors"
// @Success 200 {object} model.Book
// @Failure 401 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /author-books/books/{slug} [get]
func (h *CatalogHandler) GetBook(c *gin.Context) {
	related, ok := relatedFlag(c)
	if !ok {
		return
	}

	book, err := h.svc.GetBookBySlug(c.Request.Context(), c.Param("slug"), related)
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

// LinkAuthorBook godoc
// @Summary Link an author to a book
// @Tags catalog
// @Produce json
// @Security BearerAuth
// @Param id path int true "Author ID"
// @Param bookID path int true "Book ID"
// @Success 201 {object} model.AuthorBook
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Router /author-books/authors/{id}/books/{bookID} [post]
func (h *CatalogHandler) LinkAuthorBook(c *gin.Context) {
	authorID, ok := pathID(c, "id")
	if !ok {
		return
	}
	bookID, ok := pathID(c, "bookID")
	if !ok {
		return
	}

	link, err := h.svc.LinkAuthorBook(c.Request.Context(), authorID, bookID)
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func relatedFlag(c *gin.Context) (bool, bool) {
	raw := c.Query("related")
	if raw == "" {
		return false, true
	}
	related, err := strconv.ParseBool(raw)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid related flag")
		return false, false
	}
	return related, true
}

func listParams(c *gin.Context) (model.ListParams, bool) {
	var params model.ListParams
	for name, dst := range map[string]*int{"limit": &params.Limit, "offset": &params.Offset} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(c, http.StatusBadRequest, "invalid "+name)
			return model.ListParams{}, false
		}
		*dst = n
	}
	return params, true
}
