package registration

import (
	"net/http"
	"time"

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
	g := api.Group("", auth.RequireRole("admin", "doctor", "assistant"))
	g.POST("/appointments", h.CreateAppointment)
	g.GET("/appointments", h.ListAppointments)
	g.GET("/appointments/:id", h.GetAppointment)
	g.POST("/appointments/:id/confirm", h.ConfirmAppointment)
	g.POST("/appointments/:id/cancel", h.CancelAppointment)
	g.POST("/appointments/:id/convert", h.ConvertAppointment)

	g.POST("/registrations", h.Register)
	g.GET("/registrations/today-queue", h.TodayQueue)
	g.GET("/registrations/:id", h.Get)
	g.POST("/registrations/:id/check-in", h.CheckIn)
	g.POST("/registrations/:id/start-consultation", h.StartConsultation)
	g.POST("/registrations/:id/end-consultation", h.EndConsultation)
	g.POST("/registrations/:id/cancel", h.Cancel)
	g.POST("/registrations/:id/no-show", h.NoShow)
}

func actorID(c echo.Context) uuid.UUID {
	id, _ := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	return id
}

// -- Appointments --

func (h *Handler) CreateAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.CreateAppointment(c.Request().Context(), &a, actorID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	date := time.Now()
	if d := c.QueryParam("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date")
		}
		date = parsed
	}
	var doctorID uuid.UUID
	if d := c.QueryParam("doctor_id"); d != "" {
		parsed, err := uuid.Parse(d)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		doctorID = parsed
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAppointments(c.Request().Context(), date, doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ConfirmAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.ConfirmAppointment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.CancelAppointment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ConvertAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		RegistrationFee float64 `json:"registration_fee"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	reg, err := h.svc.ConvertAppointment(c.Request().Context(), id, body.RegistrationFee, actorID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, reg)
}

// -- Registrations --

func (h *Handler) Register(c echo.Context) error {
	var reg Registration
	if err := c.Bind(&reg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.Register(c.Request().Context(), &reg, actorID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	reg, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reg)
}

func (h *Handler) CheckIn(c echo.Context) error {
	return h.registrationAction(c, func(id uuid.UUID) (*Registration, error) {
		return h.svc.CheckIn(c.Request().Context(), id)
	})
}

func (h *Handler) StartConsultation(c echo.Context) error {
	return h.registrationAction(c, func(id uuid.UUID) (*Registration, error) {
		return h.svc.StartConsultation(c.Request().Context(), id)
	})
}

func (h *Handler) EndConsultation(c echo.Context) error {
	return h.registrationAction(c, func(id uuid.UUID) (*Registration, error) {
		return h.svc.EndConsultation(c.Request().Context(), id, actorID(c))
	})
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.registrationAction(c, func(id uuid.UUID) (*Registration, error) {
		return h.svc.Cancel(c.Request().Context(), id)
	})
}

func (h *Handler) NoShow(c echo.Context) error {
	return h.registrationAction(c, func(id uuid.UUID) (*Registration, error) {
		return h.svc.NoShow(c.Request().Context(), id)
	})
}

func (h *Handler) registrationAction(c echo.Context, fn func(uuid.UUID) (*Registration, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	reg, err := fn(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reg)
}

func (h *Handler) TodayQueue(c echo.Context) error {
	var doctorID uuid.UUID
	if d := c.QueryParam("doctor_id"); d != "" {
		parsed, err := uuid.Parse(d)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		doctorID = parsed
	}
	summary, err := h.svc.TodayQueue(c.Request().Context(), doctorID, c.QueryParam("room"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}
