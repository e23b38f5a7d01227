package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinio/clinio/internal/platform/apperr"
	"github.com/clinio/clinio/internal/platform/db"
)

type Service struct {
	categories CategoryRepository
	suppliers  SupplierRepository
	medicines  MedicineRepository
	stock      StockRepository
	orders     PurchaseOrderRepository
	numbers    db.NumberGenerator
	tx         db.Transactor
}

func NewService(categories CategoryRepository, suppliers SupplierRepository, medicines MedicineRepository,
	stock StockRepository, orders PurchaseOrderRepository, numbers db.NumberGenerator, tx db.Transactor) *Service {
	return &Service{
		categories: categories,
		suppliers:  suppliers,
		medicines:  medicines,
		stock:      stock,
		orders:     orders,
		numbers:    numbers,
		tx:         tx,
	}
}

// -- Categories --

func (s *Service) CreateCategory(ctx context.Context, c *MedicineCategory) error {
	if c.Name == "" {
		return apperr.Validation("name is required")
	}
	return s.categories.Create(ctx, c)
}

func (s *Service) UpdateCategory(ctx context.Context, c *MedicineCategory) error {
	if c.Name == "" {
		return apperr.Validation("name is required")
	}
	return s.categories.Update(ctx, c)
}

func (s *Service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.categories.Delete(ctx, id)
}

func (s *Service) ListCategories(ctx context.Context) ([]*MedicineCategory, error) {
	return s.categories.List(ctx)
}

// -- Suppliers --

func (s *Service) CreateSupplier(ctx context.Context, sup *Supplier) error {
	if sup.Name == "" {
		return apperr.Validation("name is required")
	}
	sup.IsActive = true
	return s.suppliers.Create(ctx, sup)
}

func (s *Service) GetSupplier(ctx context.Context, id uuid.UUID) (*Supplier, error) {
	sup, err := s.suppliers.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("supplier not found")
	}
	return sup, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, sup *Supplier) error {
	return s.suppliers.Update(ctx, sup)
}

func (s *Service) ListSuppliers(ctx context.Context, limit, offset int) ([]*Supplier, int, error) {
	return s.suppliers.List(ctx, limit, offset)
}

// -- Medicines --

func (s *Service) CreateMedicine(ctx context.Context, m *Medicine) error {
	if m.Code == "" || m.Name == "" || m.Unit == "" {
		return apperr.Validation("code, name and unit are required")
	}
	if m.MedicineType == "" {
		m.MedicineType = MedicineOther
	}
	if !m.MedicineType.Valid() {
		return apperr.Validation("invalid medicine_type: " + string(m.MedicineType))
	}
	if existing, err := s.medicines.GetByCode(ctx, m.Code); err == nil && existing != nil {
		return apperr.Conflict("medicine code already exists")
	}
	m.IsActive = true
	return s.medicines.Create(ctx, m)
}

func (s *Service) GetMedicine(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	m, err := s.medicines.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("medicine not found")
	}
	return m, nil
}

func (s *Service) UpdateMedicine(ctx context.Context, m *Medicine) error {
	if m.MedicineType != "" && !m.MedicineType.Valid() {
		return apperr.Validation("invalid medicine_type: " + string(m.MedicineType))
	}
	return s.medicines.Update(ctx, m)
}

func (s *Service) SearchMedicines(ctx context.Context, query string, medicineType MedicineType, limit, offset int) ([]*Medicine, int, error) {
	if medicineType != "" && !medicineType.Valid() {
		return nil, 0, apperr.Validation("invalid medicine_type: " + string(medicineType))
	}
	return s.medicines.Search(ctx, query, medicineType, limit, offset)
}

// -- Stock --

func (s *Service) GetStock(ctx context.Context, medicineID uuid.UUID) (*Stock, error) {
	st, err := s.stock.GetByMedicine(ctx, medicineID)
	if err != nil {
		return nil, apperr.NotFound("no stock record for medicine")
	}
	return st, nil
}

// Adjust applies a manual stock correction and writes the matching ledger
// row in one transaction.
func (s *Service) Adjust(ctx context.Context, medicineID uuid.UUID, req AdjustRequest, actor uuid.UUID) (*Transaction, error) {
	if req.Delta == 0 {
		return nil, apperr.Validation("delta must be non-zero")
	}
	if req.Reason == "" {
		return nil, apperr.Validation("reason is required")
	}

	var out *Transaction
	err := s.tx(ctx, func(ctx context.Context) error {
		before, after, err := s.stock.AdjustQuantity(ctx, medicineID, req.Delta)
		if err != nil {
			return apperr.NotFound("no stock record for medicine")
		}
		t := &Transaction{
			MedicineID:     medicineID,
			Type:           TxAdjustment,
			Quantity:       req.Delta,
			BeforeQuantity: before,
			AfterQuantity:  after,
			Notes:          &req.Reason,
		}
		if actor != uuid.Nil {
			t.CreatedBy = &actor
		}
		if err := s.stock.RecordTransaction(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

func (s *Service) ListTransactions(ctx context.Context, medicineID uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	return s.stock.ListTransactions(ctx, medicineID, limit, offset)
}

func (s *Service) LowStock(ctx context.Context) ([]*LowStockEntry, error) {
	return s.stock.LowStock(ctx)
}

// -- Purchase Orders --

func (s *Service) CreatePurchaseOrder(ctx context.Context, po *PurchaseOrder, actor uuid.UUID) (*PurchaseOrder, error) {
	if po.SupplierID == uuid.Nil {
		return nil, apperr.Validation("supplier_id is required")
	}
	if len(po.Items) == 0 {
		return nil, apperr.Validation("at least one item is required")
	}

	var total float64
	for _, item := range po.Items {
		if item.MedicineID == uuid.Nil || item.Quantity <= 0 {
			return nil, apperr.Validation("each item needs a medicine_id and a positive quantity")
		}
		item.Subtotal = item.Quantity * item.UnitCost
		total += item.Subtotal
	}

	number, err := s.numbers.NextNumber(ctx, "PO", time.Now())
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "allocate order number", err)
	}

	po.OrderNumber = number
	po.Status = POStatusDraft
	po.OrderDate = time.Now()
	po.TotalAmount = total
	if actor != uuid.Nil {
		po.CreatedBy = &actor
	}

	if err := s.tx(ctx, func(ctx context.Context) error {
		return s.orders.Create(ctx, po)
	}); err != nil {
		return nil, err
	}
	return po, nil
}

func (s *Service) GetPurchaseOrder(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	po, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("purchase order not found")
	}
	items, err := s.orders.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	po.Items = items
	return po, nil
}

func (s *Service) ListPurchaseOrders(ctx context.Context, status PurchaseOrderStatus, limit, offset int) ([]*PurchaseOrder, int, error) {
	return s.orders.List(ctx, status, limit, offset)
}

// Submit moves a draft order to submitted.
func (s *Service) SubmitPurchaseOrder(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	var out *PurchaseOrder
	err := s.tx(ctx, func(ctx context.Context) error {
		po, err := s.orders.GetByIDForUpdate(ctx, id)
		if err != nil {
			return apperr.NotFound("purchase order not found")
		}
		switch po.Status {
		case POStatusDraft:
		case POStatusSubmitted, POStatusReceived, POStatusCancelled:
			return apperr.Conflict("only draft orders can be submitted")
		default:
			return apperr.Conflict("only draft orders can be submitted")
		}
		po.Status = POStatusSubmitted
		if err := s.orders.Update(ctx, po); err != nil {
			return err
		}
		out = po
		return nil
	})
	return out, err
}

// ReceivePurchaseOrder marks a submitted order received, increments stock
// for every line and writes purchase ledger rows, all in one transaction.
func (s *Service) ReceivePurchaseOrder(ctx context.Context, id uuid.UUID, actor uuid.UUID) (*PurchaseOrder, error) {
	var out *PurchaseOrder
	err := s.tx(ctx, func(ctx context.Context) error {
		po, err := s.orders.GetByIDForUpdate(ctx, id)
		if err != nil {
			return apperr.NotFound("purchase order not found")
		}
		switch po.Status {
		case POStatusSubmitted:
		case POStatusDraft, POStatusReceived, POStatusCancelled:
			return apperr.Conflict("only submitted orders can be received")
		default:
			return apperr.Conflict("only submitted orders can be received")
		}

		items, err := s.orders.ListItems(ctx, id)
		if err != nil {
			return err
		}
		for _, item := range items {
			before, after, err := s.stock.AdjustQuantity(ctx, item.MedicineID, item.Quantity)
			if err != nil {
				return err
			}
			unitCost := item.UnitCost
			t := &Transaction{
				MedicineID:      item.MedicineID,
				Type:            TxPurchase,
				Quantity:        item.Quantity,
				BeforeQuantity:  before,
				AfterQuantity:   after,
				UnitCost:        &unitCost,
				ReferenceNumber: &po.OrderNumber,
			}
			if actor != uuid.Nil {
				t.CreatedBy = &actor
			}
			if err := s.stock.RecordTransaction(ctx, t); err != nil {
				return err
			}
		}

		now := time.Now()
		po.Status = POStatusReceived
		po.ReceivedDate = &now
		if err := s.orders.Update(ctx, po); err != nil {
			return err
		}
		po.Items = items
		out = po
		return nil
	})
	return out, err
}

// CancelPurchaseOrder cancels an order that has not been received.
func (s *Service) CancelPurchaseOrder(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	var out *PurchaseOrder
	err := s.tx(ctx, func(ctx context.Context) error {
		po, err := s.orders.GetByIDForUpdate(ctx, id)
		if err != nil {
			return apperr.NotFound("purchase order not found")
		}
		switch po.Status {
		case POStatusReceived:
			return apperr.Conflict("received orders cannot be cancelled")
		case POStatusDraft, POStatusSubmitted, POStatusCancelled:
		default:
			return apperr.Conflict("invalid purchase order status")
		}
		po.Status = POStatusCancelled
		if err := s.orders.Update(ctx, po); err != nil {
			return err
		}
		out = po
		return nil
	})
	return out, err
}

// StockQuantity returns the current on-hand quantity for a medicine.
func (s *Service) StockQuantity(ctx context.Context, medicineID uuid.UUID) (float64, error) {
	st, err := s.stock.GetByMedicine(ctx, medicineID)
	if err != nil {
		return 0, apperr.NotFound("no stock record for medicine")
	}
	return st.Quantity, nil
}

// DispenseStock is the write contract used by the consultation module: it
// decrements stock and records a dispense ledger row. Callers are expected
// to run it inside their own transaction.
func (s *Service) DispenseStock(ctx context.Context, medicineID uuid.UUID, quantity float64, referenceNumber string, actor uuid.UUID) error {
	if quantity <= 0 {
		return apperr.Validation("dispense quantity must be positive")
	}
	before, after, err := s.stock.AdjustQuantity(ctx, medicineID, -quantity)
	if err != nil {
		return err
	}
	t := &Transaction{
		MedicineID:      medicineID,
		Type:            TxDispense,
		Quantity:        -quantity,
		BeforeQuantity:  before,
		AfterQuantity:   after,
		ReferenceNumber: &referenceNumber,
	}
	if actor != uuid.Nil {
		t.CreatedBy = &actor
	}
	return s.stock.RecordTransaction(ctx, t)
}
