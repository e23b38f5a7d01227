package billing

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinio/clinio/internal/platform/auth"
	"github.com/clinio/clinio/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("admin", "doctor", "assistant"))
	read.GET("/bills/:id", h.Get)
	read.GET("/bills/by-registration/:registrationID", h.GetByRegistration)
	read.GET("/bills/:id/payments", h.ListPayments)
	read.GET("/patients/:patientID/bills", h.ListByPatient)
	read.GET("/debts/:id", h.GetDebt)
	read.GET("/debts/by_patient", h.DebtsByPatient)
	read.GET("/charge-items", h.ListChargeItems)
	read.GET("/charge-items/:id", h.GetChargeItem)

	cashier := api.Group("", auth.RequireRole("admin", "assistant"))
	cashier.POST("/bills/:id/pay", h.Pay)
	cashier.POST("/bills/:id/refund", h.Refund)
	cashier.POST("/bills/:id/credit-to-account", h.CreditToAccount)
	cashier.POST("/bills/:id/cancel", h.Cancel)
	cashier.POST("/debts/:id/pay", h.PayDebt)

	admin := api.Group("", auth.RequireRole("admin"))
	admin.POST("/charge-items", h.CreateChargeItem)
	admin.PUT("/charge-items/:id", h.UpdateChargeItem)
}

func actorID(c echo.Context) uuid.UUID {
	id, _ := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	return id
}

func billID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Get(c echo.Context) error {
	id, err := billID(c)
	if err != nil {
		return err
	}
	bill, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bill)
}

func (h *Handler) GetByRegistration(c echo.Context) error {
	regID, err := uuid.Parse(c.Param("registrationID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid registration id")
	}
	bill, err := h.svc.GetByRegistration(c.Request().Context(), regID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bill)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListPayments(c echo.Context) error {
	id, err := billID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListPayments(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Pay(c echo.Context) error {
	id, err := billID(c)
	if err != nil {
		return err
	}
	var req PayRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	bill, err := h.svc.Pay(c.Request().Context(), id, req, actorID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bill)
}

func (h *Handler) Refund(c echo.Context) error {
	id, err := billID(c)
	if err != nil {
		return err
	}
	var req RefundRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	bill, err := h.svc.Refund(c.Request().Context(), id, req, actorID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bill)
}

func (h *Handler) CreditToAccount(c echo.Context) error {
	id, err := billID(c)
	if err != nil {
		return err
	}
	var req CreditRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	bill, err := h.svc.CreditToAccount(c.Request().Context(), id, req.Amount, actorID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bill)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := billID(c)
	if err != nil {
		return err
	}
	bill, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bill)
}

func (h *Handler) GetDebt(c echo.Context) error {
	id, err := billID(c)
	if err != nil {
		return err
	}
	debt, err := h.svc.GetDebt(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, debt)
}

func (h *Handler) PayDebt(c echo.Context) error {
	id, err := billID(c)
	if err != nil {
		return err
	}
	var req PayDebtRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	debt, err := h.svc.PayDebt(c.Request().Context(), id, req, actorID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, debt)
}

func (h *Handler) DebtsByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	items, err := h.svc.DebtsByPatient(c.Request().Context(), patientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

// -- Charge items --

func (h *Handler) CreateChargeItem(c echo.Context) error {
	var item ChargeItem
	if err := c.Bind(&item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.CreateChargeItem(c.Request().Context(), &item)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetChargeItem(c echo.Context) error {
	id, err := billID(c)
	if err != nil {
		return err
	}
	item, err := h.svc.GetChargeItem(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) UpdateChargeItem(c echo.Context) error {
	id, err := billID(c)
	if err != nil {
		return err
	}
	var item ChargeItem
	if err := c.Bind(&item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item.ID = id
	if err := h.svc.UpdateChargeItem(c.Request().Context(), &item); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) ListChargeItems(c echo.Context) error {
	activeOnly := c.QueryParam("active") == "true"
	items, err := h.svc.ListChargeItems(c.Request().Context(), activeOnly)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}
