package api

import (
	"net/http"

	"library-service/internal/models"
	"library-service/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) createBook(c *gin.Context) {
	var req service.CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	book, err := h.books.CreateBook(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Book added successfully", book)
}

func (h *Handler) listBooks(c *gin.Context) {
	var q models.BookQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "Invalid query parameters", err)
		return
	}

	books, meta, err := h.books.ListBooks(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, "Get all books successfully", books, meta)
}

func (h *Handler) listBooksByGenre(c *gin.Context) {
	var q models.BookQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "Invalid query parameters", err)
		return
	}

	books, meta, err := h.books.ListBooksByGenre(c.Request.Context(), c.Param("genre_id"), q)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, "Get all books by genre successfully", books, meta)
}

func (h *Handler) getBook(c *gin.Context) {
	book, err := h.books.GetBook(c.Request.Context(), c.Param("book_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Get book detail successfully", book)
}

func (h *Handler) updateBook(c *gin.Context) {
	var req service.UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	book, err := h.books.UpdateBook(c.Request.Context(), c.Param("book_id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Book updated successfully", book)
}

func (h *Handler) deleteBook(c *gin.Context) {
	if err := h.books.DeleteBook(c.Request.Context(), c.Param("book_id")); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Book removed successfully", nil)
}

func (h *Handler) createGenre(c *gin.Context) {
	var req service.GenreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	genre, err := h.genres.CreateGenre(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Genre created successfully", genre)
}

func (h *Handler) listGenres(c *gin.Context) {
	var q models.GenreQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "Invalid query parameters", err)
		return
	}

	genres, meta, err := h.genres.ListGenres(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, "Get all genres successfully", genres, meta)
}

func (h *Handler) getGenre(c *gin.Context) {
	genre, err := h.genres.GetGenre(c.Request.Context(), c.Param("genre_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Get genre detail successfully", genre)
}

func (h *Handler) updateGenre(c *gin.Context) {
	var req service.GenreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	genre, err := h.genres.UpdateGenre(c.Request.Context(), c.Param("genre_id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Genre updated successfully", genre)
}

func (h *Handler) deleteGenre(c *gin.Context) {
	if err := h.genres.DeleteGenre(c.Request.Context(), c.Param("genre_id")); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Genre deleted successfully", nil)
}
