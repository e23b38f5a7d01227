package dispensing

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the dispensing order lifecycle state.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderSent       OrderStatus = "sent"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderCompleted  OrderStatus = "completed"
	OrderFailed     OrderStatus = "failed"
	OrderCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderSent, OrderConfirmed, OrderProcessing,
		OrderShipped, OrderCompleted, OrderFailed, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are expected.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderFailed || s == OrderCancelled
}

// PharmacyType distinguishes decoction houses from concentrate dispensaries.
type PharmacyType string

const (
	PharmacyDecoction   PharmacyType = "decoction"
	PharmacyConcentrate PharmacyType = "concentrate"
)

func (t PharmacyType) Valid() bool {
	return t == PharmacyDecoction || t == PharmacyConcentrate
}

// ExternalPharmacy is a partner pharmacy that fulfils decoction and
// concentrate prescriptions. APIKey authenticates our outbound calls;
// WebhookAPIKey authenticates the pharmacy's inbound callbacks.
type ExternalPharmacy struct {
	ID            uuid.UUID    `json:"id"`
	Name          string       `json:"name"`
	Type          PharmacyType `json:"pharmacy_type"`
	ContactPerson string       `json:"contact_person,omitempty"`
	Phone         string       `json:"phone,omitempty"`
	Email         string       `json:"email,omitempty"`
	Address       string       `json:"address,omitempty"`
	ProcessingFee float64      `json:"processing_fee"`
	DeliveryFee   float64      `json:"delivery_fee"`
	APIEndpoint   string       `json:"api_endpoint"`
	APIKey        string       `json:"-"`
	WebhookAPIKey string       `json:"-"`
	IsActive      bool         `json:"is_active"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// DispensingOrder tracks one prescription handed to an external pharmacy.
// ClientOrderID is the idempotency key the pharmacy dedupes on; it is
// generated once at creation and never reused. Fees are snapshotted at
// creation from the prescription and the pharmacy's catalog rates, with
// total_amount always their sum.
type DispensingOrder struct {
	ID                 uuid.UUID   `json:"id"`
	OrderNumber        string      `json:"order_number"`
	ClientOrderID      uuid.UUID   `json:"client_order_id"`
	PrescriptionID     uuid.UUID   `json:"prescription_id"`
	ExternalPharmacyID uuid.UUID   `json:"external_pharmacy_id"`
	Status             OrderStatus `json:"status"`
	MedicineFee        float64     `json:"medicine_fee"`
	ProcessingFee      float64     `json:"processing_fee"`
	DeliveryFee        float64     `json:"delivery_fee"`
	TotalAmount        float64     `json:"total_amount"`
	RecipientName      string      `json:"recipient_name"`
	RecipientPhone     string      `json:"recipient_phone"`
	RecipientAddress   string      `json:"recipient_address"`
	Notes              string      `json:"notes,omitempty"`
	SentAt             *time.Time  `json:"sent_at,omitempty"`
	ErrorMessage       string      `json:"error_message,omitempty"`
	ResponsePayload    string      `json:"response_payload,omitempty"`
	TrackingCompany    string      `json:"tracking_company,omitempty"`
	TrackingNumber     string      `json:"tracking_number,omitempty"`
	CompletedAt        *time.Time  `json:"completed_at,omitempty"`
	CreatedBy          uuid.UUID   `json:"created_by"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// PrescriptionInfo is the slice of a prescription the outbound payload
// needs: its lines and dose count.
type PrescriptionInfo struct {
	PrescriptionNumber string
	TotalDoses         int
	DispensingMethod   string
	ExternalPharmacyID *uuid.UUID
	MedicineFee        float64
	Lines              []OrderLine
}

// OrderLine is one medicine on the outbound order.
type OrderLine struct {
	SKU    string  `json:"sku"`
	Name   string  `json:"name"`
	Dosage float64 `json:"-"`
	Unit   string  `json:"unit"`
}

// OrderPayload is the JSON body POSTed to the pharmacy's /orders endpoint.
type OrderPayload struct {
	ClientOrderID string         `json:"client_order_id"`
	Recipient     OrderRecipient `json:"recipient"`
	Items         []PayloadItem  `json:"items"`
	TotalDoses    int            `json:"total_doses"`
	Notes         string         `json:"notes,omitempty"`
}

type OrderRecipient struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// PayloadItem carries the total quantity to dispense, dosage times doses.
type PayloadItem struct {
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// CreateOrderRequest opens a dispensing order for a prescription.
type CreateOrderRequest struct {
	PrescriptionID   uuid.UUID `json:"prescription_id"`
	RecipientName    string    `json:"recipient_name"`
	RecipientPhone   string    `json:"recipient_phone"`
	RecipientAddress string    `json:"recipient_address"`
	Notes            string    `json:"notes"`
}

// PharmacyRequest is the write shape for the pharmacy catalog. API keys are
// accepted on write but never echoed back in responses.
type PharmacyRequest struct {
	Name          string  `json:"name"`
	Type          string  `json:"pharmacy_type"`
	ContactPerson string  `json:"contact_person"`
	Phone         string  `json:"phone"`
	Email         string  `json:"email"`
	Address       string  `json:"address"`
	ProcessingFee float64 `json:"processing_fee"`
	DeliveryFee   float64 `json:"delivery_fee"`
	APIEndpoint   string  `json:"api_endpoint"`
	APIKey        string  `json:"api_key"`
	WebhookAPIKey string  `json:"webhook_api_key"`
	IsActive      *bool   `json:"is_active"`
}

// WebhookRequest is the pharmacy's status callback body.
type WebhookRequest struct {
	ClientOrderID   string `json:"client_order_id"`
	EventType       string `json:"event_type"`
	TrackingCompany string `json:"tracking_company"`
	TrackingNumber  string `json:"tracking_number"`
}
