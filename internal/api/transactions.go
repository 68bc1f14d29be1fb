package api

import (
	"net/http"

	"library-service/internal/models"
	"library-service/internal/service"

	"github.com/gin-gonic/gin"
)

// createTransaction checks out the caller's books.
func (h *Handler) createTransaction(c *gin.Context) {
	var req service.CreateTransactionRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	resp, err := h.transactions.CreateTransaction(c.Request.Context(), currentUserID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) listTransactions(c *gin.Context) {
	var q models.TransactionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "Invalid query parameters", err)
		return
	}

	views, meta, err := h.transactions.ListTransactions(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}

	respondPage(c, "Get all transactions successfully", views, meta)
}

func (h *Handler) getTransaction(c *gin.Context) {
	view, err := h.transactions.GetTransaction(c.Request.Context(), c.Param("transaction_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "Get transaction detail successfully", view)
}

func (h *Handler) getStatistics(c *gin.Context) {
	stats, err := h.transactions.GetStatistics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
