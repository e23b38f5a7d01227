package reporting

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinio/clinio/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports", auth.RequireRole("admin", "doctor"))
	g.GET("/daily", h.Daily)
	g.GET("/monthly", h.Monthly)
	g.GET("/pharmacy-reconciliation", h.Reconciliation)
}

func (h *Handler) Daily(c echo.Context) error {
	summary, err := h.svc.Daily(c.Request().Context(), c.QueryParam("date"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) Monthly(c echo.Context) error {
	month := c.QueryParam("month")
	if month == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "month is required")
	}
	summary, err := h.svc.Monthly(c.Request().Context(), month)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) Reconciliation(c echo.Context) error {
	pharmacyID, err := uuid.Parse(c.QueryParam("pharmacy_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid pharmacy_id")
	}
	rec, err := h.svc.Reconciliation(c.Request().Context(), pharmacyID,
		c.QueryParam("from"), c.QueryParam("to"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}
