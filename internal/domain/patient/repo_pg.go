package patient

import (
	"context"
	"fmt"

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, chart_number, name, gender, birth_date, id_card_number,
	phone, mobile, address, email,
	emergency_contact_name, emergency_contact_phone, emergency_contact_relation,
	blood_type, allergies, medical_history, notes,
	balance, is_active, created_by, created_at, updated_at`

func (r *repoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.ChartNumber, &p.Name, &p.Gender, &p.BirthDate, &p.IDCardNumber,
		&p.Phone, &p.Mobile, &p.Address, &p.Email,
		&p.EmergencyContactName, &p.EmergencyContactPhone, &p.EmergencyContactRelation,
		&p.BloodType, &p.Allergies, &p.MedicalHistory, &p.Notes,
		&p.Balance, &p.IsActive, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (id, chart_number, name, gender, birth_date, id_card_number,
			phone, mobile, address, email,
			emergency_contact_name, emergency_contact_phone, emergency_contact_relation,
			blood_type, allergies, medical_history, notes,
			balance, is_active, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		p.ID, p.ChartNumber, p.Name, p.Gender, p.BirthDate, p.IDCardNumber,
		p.Phone, p.Mobile, p.Address, p.Email,
		p.EmergencyContactName, p.EmergencyContactPhone, p.EmergencyContactRelation,
		p.BloodType, p.Allergies, p.MedicalHistory, p.Notes,
		p.Balance, p.IsActive, p.CreatedBy)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *repoPG) GetByChartNumber(ctx context.Context, chartNumber string) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE chart_number = $1`, chartNumber))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET name=$2, gender=$3, birth_date=$4, id_card_number=$5,
			phone=$6, mobile=$7, address=$8, email=$9,
			emergency_contact_name=$10, emergency_contact_phone=$11, emergency_contact_relation=$12,
			blood_type=$13, allergies=$14, medical_history=$15, notes=$16,
			is_active=$17, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.Gender, p.BirthDate, p.IDCardNumber,
		p.Phone, p.Mobile, p.Address, p.Email,
		p.EmergencyContactName, p.EmergencyContactPhone, p.EmergencyContactRelation,
		p.BloodType, p.Allergies, p.MedicalHistory, p.Notes,
		p.IsActive)
	return err
}

func (r *repoPG) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	where := `WHERE is_active`
	args := []interface{}{}
	if query != "" {
		where += ` AND (name ILIKE $1 OR chart_number ILIKE $1 OR phone ILIKE $1 OR mobile ILIKE $1)`
		args = append(args, "%"+query+"%")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := fmt.Sprintf(`SELECT %s FROM patients %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		patientCols, where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, dataSQL, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, nil
}

func (r *repoPG) CreditBalance(ctx context.Context, id uuid.UUID, amount float64) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET balance = balance + $2, updated_at=NOW() WHERE id = $1`, id, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
