package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aluiziolira/go-rate-signals/models"
	"github.com/aluiziolira/go-rate-signals/service"
	"github.com/labstack/echo/v4"
)

// Runner is the part of service.Service the handlers call.
type Runner interface {
	RunIngestion(ctx context.Context, req service.IngestionRequest) (models.IngestionResult, error)
	RunPriceAnalysis(ctx context.Context, req service.AnalysisRequest) ([]models.PriceRecommendation, error)
	RunRevenuePerformance(ctx context.Context, req service.AnalysisRequest) (models.RevenueReport, error)
}

type ResponseError struct {
	Message string `json:"message"`
}

type Handler struct {
	runner  Runner
	timeout time.Duration
}

func NewHandler(runner Runner, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Handler{runner: runner, timeout: timeout}
}

func (h *Handler) CreateIngestion(c echo.Context) error {
	var req service.IngestionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid request body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	res, err := h.runner.RunIngestion(ctx, req)
	if err != nil {
		return h.fail(c, "ingestion failed", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) CreateAnalysis(c echo.Context) error {
	var req service.AnalysisRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid request body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	recs, err := h.runner.RunPriceAnalysis(ctx, req)
	if err != nil {
		return h.fail(c, "price analysis failed", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"property_id":     req.PropertyID,
		"target_date":     req.TargetDate,
		"recommendations": recs,
	})
}

func (h *Handler) GetRevenue(c echo.Context) error {
	req := service.AnalysisRequest{
		TargetDate: c.QueryParam("target_date"),
		PropertyID: c.QueryParam("property_id"),
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	report, err := h.runner.RunRevenuePerformance(ctx, req)
	if err != nil {
		return h.fail(c, "revenue performance failed", err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) fail(c echo.Context, msg string, err error) error {
	if errors.Is(err, service.ErrInvalidRequest) {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	slog.Error(msg, slog.String("path", c.Path()), slog.Any("error", err))
	return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
}
