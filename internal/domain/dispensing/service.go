package dispensing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinio/clinio/internal/platform/apperr"
	"github.com/clinio/clinio/internal/platform/db"
	"github.com/clinio/clinio/internal/platform/metrics"
)

// OrderSender delivers an order payload to a pharmacy endpoint.
type OrderSender interface {
	SendOrder(ctx context.Context, pharmacy *ExternalPharmacy, payload OrderPayload) (string, error)
}

type Service struct {
	orders     OrderRepository
	pharmacies PharmacyRepository
	sender     OrderSender
	numbers    db.NumberGenerator
	tx         db.Transactor
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

func NewService(orders OrderRepository, pharmacies PharmacyRepository, sender OrderSender,
	numbers db.NumberGenerator, tx db.Transactor, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		orders:     orders,
		pharmacies: pharmacies,
		sender:     sender,
		numbers:    numbers,
		tx:         tx,
		metrics:    m,
		logger:     logger,
	}
}

// CreateOrder opens a pending dispensing order for an externally dispensed
// prescription. The client_order_id minted here is the idempotency key the
// pharmacy dedupes on across retried sends.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest, actor uuid.UUID) (*DispensingOrder, error) {
	if req.PrescriptionID == uuid.Nil {
		return nil, apperr.Validation("prescription_id is required")
	}
	if req.RecipientName == "" || req.RecipientPhone == "" {
		return nil, apperr.Validation("recipient name and phone are required")
	}

	info, err := s.orders.PrescriptionInfo(ctx, req.PrescriptionID)
	if err != nil {
		return nil, apperr.NotFound("prescription not found")
	}
	if info.ExternalPharmacyID == nil {
		return nil, apperr.Validation("prescription is not externally dispensed")
	}
	pharmacy, err := s.pharmacies.GetByID(ctx, *info.ExternalPharmacyID)
	if err != nil {
		return nil, apperr.NotFound("external pharmacy not found")
	}
	if !pharmacy.IsActive {
		return nil, apperr.Validation("external pharmacy is inactive")
	}

	number, err := s.numbers.NextNumber(ctx, "DO", time.Now())
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "allocate order number", err)
	}

	order := &DispensingOrder{
		OrderNumber:        number,
		ClientOrderID:      uuid.New(),
		PrescriptionID:     req.PrescriptionID,
		ExternalPharmacyID: pharmacy.ID,
		Status:             OrderPending,
		MedicineFee:        info.MedicineFee,
		ProcessingFee:      pharmacy.ProcessingFee,
		DeliveryFee:        pharmacy.DeliveryFee,
		RecipientName:      req.RecipientName,
		RecipientPhone:     req.RecipientPhone,
		RecipientAddress:   req.RecipientAddress,
		Notes:              req.Notes,
		CreatedBy:          actor,
	}
	order.TotalAmount = order.MedicineFee + order.ProcessingFee + order.DeliveryFee
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// Send pushes a pending order to its pharmacy. A rejected or unreachable
// pharmacy marks the order failed and stores the error; it is not surfaced
// as a server error because send failure is a routine outcome the caller
// reads off the returned order.
func (s *Service) Send(ctx context.Context, id uuid.UUID) (*DispensingOrder, error) {
	var out *DispensingOrder
	err := s.tx(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByIDForUpdate(ctx, id)
		if err != nil {
			return apperr.NotFound("dispensing order not found")
		}
		if order.Status != OrderPending {
			return apperr.Conflict("order has already been sent")
		}
		pharmacy, err := s.pharmacies.GetByID(ctx, order.ExternalPharmacyID)
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "load pharmacy", err)
		}
		info, err := s.orders.PrescriptionInfo(ctx, order.PrescriptionID)
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "load prescription", err)
		}

		payload := OrderPayload{
			ClientOrderID: order.ClientOrderID.String(),
			Recipient: OrderRecipient{
				Name:    order.RecipientName,
				Phone:   order.RecipientPhone,
				Address: order.RecipientAddress,
			},
			TotalDoses: info.TotalDoses,
			Notes:      order.Notes,
		}
		for _, line := range info.Lines {
			payload.Items = append(payload.Items, PayloadItem{
				SKU:      line.SKU,
				Name:     line.Name,
				Quantity: line.Dosage * float64(info.TotalDoses),
				Unit:     line.Unit,
			})
		}

		resp, sendErr := s.sender.SendOrder(ctx, pharmacy, payload)
		now := time.Now()
		if sendErr != nil {
			order.Status = OrderFailed
			order.ErrorMessage = sendErr.Error()
			s.logger.Warn().Err(sendErr).
				Str("order_number", order.OrderNumber).
				Str("pharmacy", pharmacy.Name).
				Msg("dispensing order send failed")
			if s.metrics != nil {
				s.metrics.DispensingSendFailed.Inc()
			}
		} else {
			order.Status = OrderSent
			order.SentAt = &now
			order.ResponsePayload = resp
			if s.metrics != nil {
				s.metrics.DispensingSent.Inc()
			}
		}
		if err := s.orders.Update(ctx, order); err != nil {
			return err
		}
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// webhookTransitions maps pharmacy event types onto order states.
var webhookTransitions = map[string]OrderStatus{
	"order_confirmed": OrderConfirmed,
	"processing":      OrderProcessing,
	"shipped":         OrderShipped,
	"delivered":       OrderCompleted,
}

// Webhook applies a pharmacy status callback. The static per-pharmacy
// webhook key is the sole authentication on this path. Unknown event types
// are logged and dropped without touching the order.
func (s *Service) Webhook(ctx context.Context, apiKey string, req WebhookRequest) (*DispensingOrder, error) {
	clientOrderID, err := uuid.Parse(req.ClientOrderID)
	if err != nil {
		return nil, apperr.NotFound("order not found")
	}

	var out *DispensingOrder
	err = s.tx(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByClientOrderID(ctx, clientOrderID)
		if err != nil {
			return apperr.NotFound("order not found")
		}
		pharmacy, err := s.pharmacies.GetByID(ctx, order.ExternalPharmacyID)
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "load pharmacy", err)
		}
		if apiKey == "" || apiKey != pharmacy.WebhookAPIKey {
			return apperr.Forbidden("invalid webhook key")
		}

		status, ok := webhookTransitions[req.EventType]
		if !ok {
			s.logger.Warn().
				Str("event_type", req.EventType).
				Str("order_number", order.OrderNumber).
				Msg("unknown pharmacy webhook event")
			if s.metrics != nil {
				s.metrics.WebhookUnknownEvents.Inc()
			}
			out = order
			return nil
		}

		order.Status = status
		switch status {
		case OrderShipped:
			order.TrackingCompany = req.TrackingCompany
			order.TrackingNumber = req.TrackingNumber
		case OrderCompleted:
			now := time.Now()
			order.CompletedAt = &now
		}
		if err := s.orders.Update(ctx, order); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.WebhookEvents.WithLabelValues(req.EventType).Inc()
		}
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel voids an order that has not yet shipped.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*DispensingOrder, error) {
	var out *DispensingOrder
	err := s.tx(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByIDForUpdate(ctx, id)
		if err != nil {
			return apperr.NotFound("dispensing order not found")
		}
		switch order.Status {
		case OrderShipped, OrderCompleted:
			return apperr.Conflict("order has shipped and cannot be cancelled")
		case OrderCancelled:
			out = order
			return nil
		}
		order.Status = OrderCancelled
		if err := s.orders.Update(ctx, order); err != nil {
			return err
		}
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*DispensingOrder, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("dispensing order not found")
	}
	return o, nil
}

func (s *Service) ListByPrescription(ctx context.Context, prescriptionID uuid.UUID) ([]*DispensingOrder, error) {
	return s.orders.ListByPrescription(ctx, prescriptionID)
}

func (s *Service) List(ctx context.Context, status OrderStatus, limit, offset int) ([]*DispensingOrder, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, apperr.Validation("invalid status: " + string(status))
	}
	return s.orders.List(ctx, status, limit, offset)
}

// -- Pharmacies --

func (s *Service) CreatePharmacy(ctx context.Context, p *ExternalPharmacy) (*ExternalPharmacy, error) {
	if p.Name == "" || p.APIEndpoint == "" {
		return nil, apperr.Validation("name and api_endpoint are required")
	}
	if !p.Type.Valid() {
		return nil, apperr.Validation("pharmacy_type must be decoction or concentrate")
	}
	if p.ProcessingFee < 0 || p.DeliveryFee < 0 {
		return nil, apperr.Validation("fees cannot be negative")
	}
	p.IsActive = true
	if err := s.pharmacies.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPharmacy(ctx context.Context, id uuid.UUID) (*ExternalPharmacy, error) {
	p, err := s.pharmacies.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("external pharmacy not found")
	}
	return p, nil
}

func (s *Service) UpdatePharmacy(ctx context.Context, p *ExternalPharmacy) error {
	existing, err := s.pharmacies.GetByID(ctx, p.ID)
	if err != nil {
		return apperr.NotFound("external pharmacy not found")
	}
	if !p.Type.Valid() {
		return apperr.Validation("pharmacy_type must be decoction or concentrate")
	}
	if p.ProcessingFee < 0 || p.DeliveryFee < 0 {
		return apperr.Validation("fees cannot be negative")
	}
	// Keys are write-only through the API; blank means keep the stored one.
	if p.APIKey == "" {
		p.APIKey = existing.APIKey
	}
	if p.WebhookAPIKey == "" {
		p.WebhookAPIKey = existing.WebhookAPIKey
	}
	return s.pharmacies.Update(ctx, p)
}

func (s *Service) ListPharmacies(ctx context.Context, activeOnly bool) ([]*ExternalPharmacy, error) {
	return s.pharmacies.List(ctx, activeOnly)
}
