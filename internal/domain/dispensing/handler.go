package dispensing

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
	read.GET("/dispensing-orders", h.List)
	read.GET("/dispensing-orders/:id", h.Get)
	read.GET("/prescriptions/:prescriptionID/dispensing-orders", h.ListByPrescription)
	read.GET("/pharmacies", h.ListPharmacies)
	read.GET("/pharmacies/:id", h.GetPharmacy)

	staff := api.Group("", auth.RequireRole("admin", "doctor", "assistant"))
	staff.POST("/dispensing-orders", h.CreateOrder)
	staff.POST("/dispensing-orders/:id/send", h.Send)
	staff.POST("/dispensing-orders/:id/cancel", h.Cancel)

	admin := api.Group("", auth.RequireRole("admin"))
	admin.POST("/pharmacies", h.CreatePharmacy)
	admin.PUT("/pharmacies/:id", h.UpdatePharmacy)
}

// RegisterWebhookRoutes mounts the pharmacy callback outside the JWT
// middleware; it authenticates with the per-pharmacy webhook key instead.
func (h *Handler) RegisterWebhookRoutes(g *echo.Group) {
	g.POST("/dispensing-orders/webhook", h.Webhook)
}

func actorID(c echo.Context) uuid.UUID {
	id, _ := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	return id
}

func orderID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreateOrder(c echo.Context) error {
	var req CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	order, err := h.svc.CreateOrder(c.Request().Context(), req, actorID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, order)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return err
	}
	order, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, order)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	status := OrderStatus(c.QueryParam("status"))
	items, total, err := h.svc.List(c.Request().Context(), status, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByPrescription(c echo.Context) error {
	prescriptionID, err := uuid.Parse(c.Param("prescriptionID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid prescription id")
	}
	items, err := h.svc.ListByPrescription(c.Request().Context(), prescriptionID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Send(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return err
	}
	order, err := h.svc.Send(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, order)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return err
	}
	order, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, order)
}

func (h *Handler) Webhook(c echo.Context) error {
	var req WebhookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	apiKey := c.Request().Header.Get("X-API-Key")
	order, err := h.svc.Webhook(c.Request().Context(), apiKey, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":   string(order.Status),
		"order_id": order.ClientOrderID.String(),
	})
}

// -- Pharmacies --

func pharmacyFromRequest(req PharmacyRequest, existing *ExternalPharmacy) *ExternalPharmacy {
	p := &ExternalPharmacy{
		Name:          req.Name,
		Type:          PharmacyType(req.Type),
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
		Email:         req.Email,
		Address:       req.Address,
		ProcessingFee: req.ProcessingFee,
		DeliveryFee:   req.DeliveryFee,
		APIEndpoint:   req.APIEndpoint,
		APIKey:        req.APIKey,
		WebhookAPIKey: req.WebhookAPIKey,
	}
	if existing != nil {
		p.ID = existing.ID
		p.IsActive = existing.IsActive
		if req.Type == "" {
			p.Type = existing.Type
		}
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	return p
}

func (h *Handler) CreatePharmacy(c echo.Context) error {
	var req PharmacyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.CreatePharmacy(c.Request().Context(), pharmacyFromRequest(req, nil))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetPharmacy(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPharmacy(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePharmacy(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return err
	}
	existing, err := h.svc.GetPharmacy(c.Request().Context(), id)
	if err != nil {
		return err
	}
	var req PharmacyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p := pharmacyFromRequest(req, existing)
	if err := h.svc.UpdatePharmacy(c.Request().Context(), p); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPharmacies(c echo.Context) error {
	activeOnly := c.QueryParam("active") == "true"
	items, err := h.svc.ListPharmacies(c.Request().Context(), activeOnly)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}
