package inventory

import (
	"time"

	"github.com/google/uuid"
)

// MedicineType enumerates the kinds of stock the clinic carries.
type MedicineType string

const (
	MedicineHerb        MedicineType = "herb"
	MedicineConcentrate MedicineType = "concentrate"
	MedicineWestern     MedicineType = "western"
	MedicineSupplement  MedicineType = "supplement"
	MedicineOther       MedicineType = "other"
)

func (t MedicineType) Valid() bool {
	switch t {
	case MedicineHerb, MedicineConcentrate, MedicineWestern, MedicineSupplement, MedicineOther:
		return true
	}
	return false
}

// TransactionType classifies inventory ledger rows.
type TransactionType string

const (
	TxPurchase   TransactionType = "purchase"
	TxDispense   TransactionType = "dispense"
	TxAdjustment TransactionType = "adjustment"
	TxReturn     TransactionType = "return"
	TxDamage     TransactionType = "damage"
	TxTransfer   TransactionType = "transfer"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxPurchase, TxDispense, TxAdjustment, TxReturn, TxDamage, TxTransfer:
		return true
	}
	return false
}

// PurchaseOrderStatus is the purchase order state machine.
type PurchaseOrderStatus string

const (
	POStatusDraft     PurchaseOrderStatus = "draft"
	POStatusSubmitted PurchaseOrderStatus = "submitted"
	POStatusReceived  PurchaseOrderStatus = "received"
	POStatusCancelled PurchaseOrderStatus = "cancelled"
)

// MedicineCategory groups medicines for search and reporting.
type MedicineCategory struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	SortOrder int       `db:"sort_order" json:"sort_order"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Supplier maps to the suppliers table.
type Supplier struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	ContactPerson *string   `db:"contact_person" json:"contact_person,omitempty"`
	Phone         *string   `db:"phone" json:"phone,omitempty"`
	Email         *string   `db:"email" json:"email,omitempty"`
	Address       *string   `db:"address" json:"address,omitempty"`
	Notes         *string   `db:"notes" json:"notes,omitempty"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Medicine maps to the medicines table. ExternalSKU is the identifier used
// when the item appears in an external dispensing order.
type Medicine struct {
	ID            uuid.UUID    `db:"id" json:"id"`
	Code          string       `db:"code" json:"code"`
	Name          string       `db:"name" json:"name"`
	EnglishName   *string      `db:"english_name" json:"english_name,omitempty"`
	Pinyin        *string      `db:"pinyin" json:"pinyin,omitempty"`
	MedicineType  MedicineType `db:"medicine_type" json:"medicine_type"`
	CategoryID    *uuid.UUID   `db:"category_id" json:"category_id,omitempty"`
	Specification *string      `db:"specification" json:"specification,omitempty"`
	Unit          string       `db:"unit" json:"unit"`
	PackageUnit   *string      `db:"package_unit" json:"package_unit,omitempty"`
	PackageSize   *int         `db:"package_size" json:"package_size,omitempty"`
	SupplierID    *uuid.UUID   `db:"supplier_id" json:"supplier_id,omitempty"`
	CostPrice     float64      `db:"cost_price" json:"cost_price"`
	SellingPrice  float64      `db:"selling_price" json:"selling_price"`
	SafetyStock   float64      `db:"safety_stock" json:"safety_stock"`
	ExternalSKU   *string      `db:"external_sku" json:"external_sku,omitempty"`
	IsActive      bool         `db:"is_active" json:"is_active"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// Stock is the current quantity for one medicine.
type Stock struct {
	ID         uuid.UUID `db:"id" json:"id"`
	MedicineID uuid.UUID `db:"medicine_id" json:"medicine_id"`
	Quantity   float64   `db:"quantity" json:"quantity"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction is an append-only inventory ledger row. Quantity is signed:
// positive for stock in, negative for stock out.
type Transaction struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	MedicineID      uuid.UUID       `db:"medicine_id" json:"medicine_id"`
	Type            TransactionType `db:"type" json:"type"`
	Quantity        float64         `db:"quantity" json:"quantity"`
	BeforeQuantity  float64         `db:"before_quantity" json:"before_quantity"`
	AfterQuantity   float64         `db:"after_quantity" json:"after_quantity"`
	UnitCost        *float64        `db:"unit_cost" json:"unit_cost,omitempty"`
	ReferenceNumber *string         `db:"reference_number" json:"reference_number,omitempty"`
	Notes           *string         `db:"notes" json:"notes,omitempty"`
	CreatedBy       *uuid.UUID      `db:"created_by" json:"created_by,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// PurchaseOrder maps to the purchase_orders table.
type PurchaseOrder struct {
	ID           uuid.UUID           `db:"id" json:"id"`
	OrderNumber  string              `db:"order_number" json:"order_number"`
	SupplierID   uuid.UUID           `db:"supplier_id" json:"supplier_id"`
	Status       PurchaseOrderStatus `db:"status" json:"status"`
	OrderDate    time.Time           `db:"order_date" json:"order_date"`
	ExpectedDate *time.Time          `db:"expected_date" json:"expected_date,omitempty"`
	ReceivedDate *time.Time          `db:"received_date" json:"received_date,omitempty"`
	TotalAmount  float64             `db:"total_amount" json:"total_amount"`
	Notes        *string             `db:"notes" json:"notes,omitempty"`
	CreatedBy    *uuid.UUID          `db:"created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updated_at"`

	Items []*PurchaseOrderItem `db:"-" json:"items,omitempty"`
}

// PurchaseOrderItem is one line of a purchase order.
type PurchaseOrderItem struct {
	ID              uuid.UUID `db:"id" json:"id"`
	PurchaseOrderID uuid.UUID `db:"purchase_order_id" json:"purchase_order_id"`
	MedicineID      uuid.UUID `db:"medicine_id" json:"medicine_id"`
	Quantity        float64   `db:"quantity" json:"quantity"`
	UnitCost        float64   `db:"unit_cost" json:"unit_cost"`
	Subtotal        float64   `db:"subtotal" json:"subtotal"`
}

// LowStockEntry is one row of the low stock report.
type LowStockEntry struct {
	MedicineID  uuid.UUID `json:"medicine_id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Unit        string    `json:"unit"`
	Quantity    float64   `json:"quantity"`
	SafetyStock float64   `json:"safety_stock"`
}

// AdjustRequest is the body of POST /inventory/:medicineID/adjust.
type AdjustRequest struct {
	Delta  float64 `json:"delta"`
	Reason string  `json:"reason"`
}
