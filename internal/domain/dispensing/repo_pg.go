package dispensing

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinio/clinio/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// =========== Pharmacy Repository ===========

const pharmacyCols = `id, name, pharmacy_type, contact_person, phone, email, address,
	processing_fee, delivery_fee, api_endpoint, api_key, webhook_api_key,
	is_active, created_at, updated_at`

type pharmacyRepoPG struct{ pool *pgxpool.Pool }

func NewPharmacyRepoPG(pool *pgxpool.Pool) PharmacyRepository {
	return &pharmacyRepoPG{pool: pool}
}

func scanPharmacy(row pgx.Row) (*ExternalPharmacy, error) {
	var p ExternalPharmacy
	err := row.Scan(&p.ID, &p.Name, &p.Type, &p.ContactPerson, &p.Phone, &p.Email, &p.Address,
		&p.ProcessingFee, &p.DeliveryFee,
		&p.APIEndpoint, &p.APIKey, &p.WebhookAPIKey, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *pharmacyRepoPG) Create(ctx context.Context, p *ExternalPharmacy) error {
	p.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO external_pharmacies (id, name, pharmacy_type, contact_person,
			phone, email, address, processing_fee, delivery_fee,
			api_endpoint, api_key, webhook_api_key, is_active)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		p.ID, p.Name, p.Type, p.ContactPerson, p.Phone, p.Email, p.Address,
		p.ProcessingFee, p.DeliveryFee,
		p.APIEndpoint, p.APIKey, p.WebhookAPIKey, p.IsActive)
	return err
}

func (r *pharmacyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ExternalPharmacy, error) {
	return scanPharmacy(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+pharmacyCols+` FROM external_pharmacies WHERE id = $1`, id))
}

func (r *pharmacyRepoPG) Update(ctx context.Context, p *ExternalPharmacy) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE external_pharmacies SET name=$2, pharmacy_type=$3, contact_person=$4,
			phone=$5, email=$6, address=$7, processing_fee=$8, delivery_fee=$9,
			api_endpoint=$10, api_key=$11, webhook_api_key=$12, is_active=$13,
			updated_at=now()
		 WHERE id = $1`,
		p.ID, p.Name, p.Type, p.ContactPerson, p.Phone, p.Email, p.Address,
		p.ProcessingFee, p.DeliveryFee,
		p.APIEndpoint, p.APIKey, p.WebhookAPIKey, p.IsActive)
	return err
}

func (r *pharmacyRepoPG) List(ctx context.Context, activeOnly bool) ([]*ExternalPharmacy, error) {
	sql := `SELECT ` + pharmacyCols + ` FROM external_pharmacies`
	if activeOnly {
		sql += ` WHERE is_active`
	}
	sql += ` ORDER BY name`
	rows, err := conn(ctx, r.pool).Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ExternalPharmacy
	for rows.Next() {
		p, err := scanPharmacy(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// =========== Order Repository ===========

const orderCols = `id, order_number, client_order_id, prescription_id,
	external_pharmacy_id, status, medicine_fee, processing_fee, delivery_fee,
	total_amount, recipient_name, recipient_phone, recipient_address,
	notes, sent_at, error_message, response_payload, tracking_company, tracking_number,
	completed_at, created_by, created_at, updated_at`

type orderRepoPG struct{ pool *pgxpool.Pool }

func NewOrderRepoPG(pool *pgxpool.Pool) OrderRepository { return &orderRepoPG{pool: pool} }

func scanOrder(row pgx.Row) (*DispensingOrder, error) {
	var o DispensingOrder
	err := row.Scan(&o.ID, &o.OrderNumber, &o.ClientOrderID, &o.PrescriptionID,
		&o.ExternalPharmacyID, &o.Status, &o.MedicineFee, &o.ProcessingFee,
		&o.DeliveryFee, &o.TotalAmount, &o.RecipientName, &o.RecipientPhone,
		&o.RecipientAddress, &o.Notes, &o.SentAt, &o.ErrorMessage, &o.ResponsePayload,
		&o.TrackingCompany, &o.TrackingNumber, &o.CompletedAt, &o.CreatedBy,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepoPG) Create(ctx context.Context, o *DispensingOrder) error {
	o.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO dispensing_orders (id, order_number, client_order_id,
			prescription_id, external_pharmacy_id, status, medicine_fee,
			processing_fee, delivery_fee, total_amount, recipient_name,
			recipient_phone, recipient_address, notes, created_by)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		o.ID, o.OrderNumber, o.ClientOrderID, o.PrescriptionID, o.ExternalPharmacyID,
		o.Status, o.MedicineFee, o.ProcessingFee, o.DeliveryFee, o.TotalAmount,
		o.RecipientName, o.RecipientPhone, o.RecipientAddress, o.Notes, o.CreatedBy)
	return err
}

func (r *orderRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*DispensingOrder, error) {
	return scanOrder(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+orderCols+` FROM dispensing_orders WHERE id = $1`, id))
}

func (r *orderRepoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*DispensingOrder, error) {
	return scanOrder(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+orderCols+` FROM dispensing_orders WHERE id = $1 FOR UPDATE`, id))
}

func (r *orderRepoPG) GetByClientOrderID(ctx context.Context, clientOrderID uuid.UUID) (*DispensingOrder, error) {
	return scanOrder(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+orderCols+` FROM dispensing_orders WHERE client_order_id = $1 FOR UPDATE`,
		clientOrderID))
}

func (r *orderRepoPG) Update(ctx context.Context, o *DispensingOrder) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE dispensing_orders SET status=$2, sent_at=$3, error_message=$4,
			response_payload=$5, tracking_company=$6, tracking_number=$7,
			completed_at=$8, updated_at=now()
		 WHERE id = $1`,
		o.ID, o.Status, o.SentAt, o.ErrorMessage, o.ResponsePayload,
		o.TrackingCompany, o.TrackingNumber, o.CompletedAt)
	return err
}

func (r *orderRepoPG) ListByPrescription(ctx context.Context, prescriptionID uuid.UUID) ([]*DispensingOrder, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+orderCols+` FROM dispensing_orders WHERE prescription_id = $1
		 ORDER BY created_at DESC`, prescriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (r *orderRepoPG) List(ctx context.Context, status OrderStatus, limit, offset int) ([]*DispensingOrder, int, error) {
	q := conn(ctx, r.pool)
	where := ``
	args := []interface{}{limit, offset}
	if status != "" {
		where = ` WHERE status = $3`
		args = append(args, status)
	}
	var total int
	countSQL := `SELECT COUNT(*) FROM dispensing_orders`
	if status != "" {
		if err := q.QueryRow(ctx, countSQL+` WHERE status = $1`, status).Scan(&total); err != nil {
			return nil, 0, err
		}
	} else {
		if err := q.QueryRow(ctx, countSQL).Scan(&total); err != nil {
			return nil, 0, err
		}
	}
	rows, err := q.Query(ctx,
		`SELECT `+orderCols+` FROM dispensing_orders`+where+
			` ORDER BY created_at DESC LIMIT $1 OFFSET $2`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectOrders(rows)
	return items, total, err
}

func collectOrders(rows pgx.Rows) ([]*DispensingOrder, error) {
	var items []*DispensingOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

func (r *orderRepoPG) PrescriptionInfo(ctx context.Context, prescriptionID uuid.UUID) (*PrescriptionInfo, error) {
	q := conn(ctx, r.pool)
	var info PrescriptionInfo
	err := q.QueryRow(ctx,
		`SELECT prescription_number, total_doses, dispensing_method,
			external_pharmacy_id, medicine_fee
		 FROM prescriptions WHERE id = $1`, prescriptionID).
		Scan(&info.PrescriptionNumber, &info.TotalDoses, &info.DispensingMethod,
			&info.ExternalPharmacyID, &info.MedicineFee)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx,
		`SELECT m.external_sku, m.name, pi.dosage, pi.unit
		 FROM prescription_items pi
		 JOIN medicines m ON m.id = pi.medicine_id
		 WHERE pi.prescription_id = $1
		 ORDER BY pi.id`, prescriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var line OrderLine
		if err := rows.Scan(&line.SKU, &line.Name, &line.Dosage, &line.Unit); err != nil {
			return nil, err
		}
		info.Lines = append(info.Lines, line)
	}
	return &info, rows.Err()
}
