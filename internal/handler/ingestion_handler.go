package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/interview-rescheduler/internal/dto"
	appErrors "github.com/noah-isme/interview-rescheduler/pkg/errors"
	"github.com/noah-isme/interview-rescheduler/pkg/response"
)

type ingestionService interface {
	Ingest(ctx context.Context, payload dto.DeliveryPayload) (*dto.IngestionSummary, error)
}

// IngestionHandler receives interview deliveries from the ingestor.
type IngestionHandler struct {
	service ingestionService
}

// NewIngestionHandler builds a new handler.
func NewIngestionHandler(service ingestionService) *IngestionHandler {
	return &IngestionHandler{service: service}
}

// Update godoc
// @Summary Ingest interviews and reschedule classes
// @Tags Ingestion
// @Accept json
// @Produce json
// @Param payload body dto.DeliveryPayload true "Interviews keyed by student id"
// @Success 200 {object} map[string]string
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /update [post]
func (h *IngestionHandler) Update(c *gin.Context) {
	var payload dto.DeliveryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid delivery payload"))
		return
	}

	if _, err := h.service.Ingest(c.Request.Context(), payload); err != nil {
		response.Error(c, err)
		return
	}
	response.Status(c, http.StatusOK, "success")
}
