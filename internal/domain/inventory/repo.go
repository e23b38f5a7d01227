package inventory

import (
	"context"

	"github.com/google/uuid"
)

// CategoryRepository defines persistence for medicine categories.
type CategoryRepository interface {
	Create(ctx context.Context, c *MedicineCategory) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicineCategory, error)
	Update(ctx context.Context, c *MedicineCategory) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*MedicineCategory, error)
}

// SupplierRepository defines persistence for suppliers.
type SupplierRepository interface {
	Create(ctx context.Context, s *Supplier) error
	GetByID(ctx context.Context, id uuid.UUID) (*Supplier, error)
	Update(ctx context.Context, s *Supplier) error
	List(ctx context.Context, limit, offset int) ([]*Supplier, int, error)
}

// MedicineRepository defines persistence for medicines.
type MedicineRepository interface {
	Create(ctx context.Context, m *Medicine) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error)
	GetByCode(ctx context.Context, code string) (*Medicine, error)
	Update(ctx context.Context, m *Medicine) error
	Search(ctx context.Context, query string, medicineType MedicineType, limit, offset int) ([]*Medicine, int, error)
}

// StockRepository defines persistence for stock levels and the inventory
// ledger.
type StockRepository interface {
	GetByMedicine(ctx context.Context, medicineID uuid.UUID) (*Stock, error)
	// AdjustQuantity atomically adds delta to the medicine's stock and
	// returns the quantities before and after.
	AdjustQuantity(ctx context.Context, medicineID uuid.UUID, delta float64) (before, after float64, err error)
	RecordTransaction(ctx context.Context, tx *Transaction) error
	ListTransactions(ctx context.Context, medicineID uuid.UUID, limit, offset int) ([]*Transaction, int, error)
	LowStock(ctx context.Context) ([]*LowStockEntry, error)
}

// PurchaseOrderRepository defines persistence for purchase orders.
type PurchaseOrderRepository interface {
	Create(ctx context.Context, po *PurchaseOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error)
	Update(ctx context.Context, po *PurchaseOrder) error
	ListItems(ctx context.Context, poID uuid.UUID) ([]*PurchaseOrderItem, error)
	List(ctx context.Context, status PurchaseOrderStatus, limit, offset int) ([]*PurchaseOrder, int, error)
}
