package consultation

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

// =========== Consultation Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const consultCols = `id, registration_id, patient_id, doctor_id,
	chief_complaint, present_illness, past_history, inspection, tongue_appearance,
	inquiry, pulse, tcm_diagnosis, western_diagnosis, syndrome_differentiation,
	treatment_principle, advice, follow_up_date, notes, created_at, updated_at`

func (r *repoPG) scanConsultation(row pgx.Row) (*Consultation, error) {
	var c Consultation
	err := row.Scan(&c.ID, &c.RegistrationID, &c.PatientID, &c.DoctorID,
		&c.ChiefComplaint, &c.PresentIllness, &c.PastHistory, &c.Inspection, &c.TongueAppearance,
		&c.Inquiry, &c.Pulse, &c.TCMDiagnosis, &c.WesternDiagnosis, &c.SyndromeDifferentiation,
		&c.TreatmentPrinciple, &c.Advice, &c.FollowUpDate, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *repoPG) Create(ctx context.Context, c *Consultation) error {
	c.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO consultations (id, registration_id, patient_id, doctor_id,
			chief_complaint, present_illness, past_history, inspection, tongue_appearance,
			inquiry, pulse, tcm_diagnosis, western_diagnosis, syndrome_differentiation,
			treatment_principle, advice, follow_up_date, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		c.ID, c.RegistrationID, c.PatientID, c.DoctorID,
		c.ChiefComplaint, c.PresentIllness, c.PastHistory, c.Inspection, c.TongueAppearance,
		c.Inquiry, c.Pulse, c.TCMDiagnosis, c.WesternDiagnosis, c.SyndromeDifferentiation,
		c.TreatmentPrinciple, c.Advice, c.FollowUpDate, c.Notes)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return r.scanConsultation(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+consultCols+` FROM consultations WHERE id = $1`, id))
}

func (r *repoPG) GetByRegistration(ctx context.Context, registrationID uuid.UUID) (*Consultation, error) {
	return r.scanConsultation(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+consultCols+` FROM consultations WHERE registration_id = $1`, registrationID))
}

func (r *repoPG) Update(ctx context.Context, c *Consultation) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE consultations SET chief_complaint=$2, present_illness=$3, past_history=$4,
			inspection=$5, tongue_appearance=$6, inquiry=$7, pulse=$8,
			tcm_diagnosis=$9, western_diagnosis=$10, syndrome_differentiation=$11,
			treatment_principle=$12, advice=$13, follow_up_date=$14, notes=$15, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.ChiefComplaint, c.PresentIllness, c.PastHistory,
		c.Inspection, c.TongueAppearance, c.Inquiry, c.Pulse,
		c.TCMDiagnosis, c.WesternDiagnosis, c.SyndromeDifferentiation,
		c.TreatmentPrinciple, c.Advice, c.FollowUpDate, c.Notes)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Consultation, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM consultations WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+consultCols+` FROM consultations WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Consultation
	for rows.Next() {
		c, err := r.scanConsultation(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, nil
}

// =========== Prescription Repository ===========

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

const rxCols = `id, consultation_id, prescription_number, name, total_doses, doses_per_day, days,
	usage_instruction, dispensing_method, external_pharmacy_id, medicine_fee,
	is_dispensed, dispensed_at, notes, created_at`

func (r *prescriptionRepoPG) scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.ConsultationID, &p.PrescriptionNumber, &p.Name, &p.TotalDoses, &p.DosesPerDay, &p.Days,
		&p.UsageInstruction, &p.DispensingMethod, &p.ExternalPharmacyID, &p.MedicineFee,
		&p.IsDispensed, &p.DispensedAt, &p.Notes, &p.CreatedAt)
	return &p, err
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO prescriptions (id, consultation_id, prescription_number, name,
			total_doses, doses_per_day, days, usage_instruction, dispensing_method,
			external_pharmacy_id, medicine_fee, is_dispensed, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,false,$12)`,
		p.ID, p.ConsultationID, p.PrescriptionNumber, p.Name,
		p.TotalDoses, p.DosesPerDay, p.Days, p.UsageInstruction, p.DispensingMethod,
		p.ExternalPharmacyID, p.MedicineFee, p.Notes)
	if err != nil {
		return err
	}
	for _, item := range p.Items {
		item.ID = uuid.New()
		item.PrescriptionID = p.ID
		if _, err := conn(ctx, r.pool).Exec(ctx, `
			INSERT INTO prescription_items (id, prescription_id, medicine_id, dosage, unit,
				decoction_method, unit_price, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			item.ID, item.PrescriptionID, item.MedicineID, item.Dosage, item.Unit,
			item.DecoctionMethod, item.UnitPrice, item.Subtotal); err != nil {
			return err
		}
	}
	return nil
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return r.scanPrescription(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+rxCols+` FROM prescriptions WHERE id = $1`, id))
}

func (r *prescriptionRepoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return r.scanPrescription(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+rxCols+` FROM prescriptions WHERE id = $1 FOR UPDATE`, id))
}

func (r *prescriptionRepoPG) Update(ctx context.Context, p *Prescription) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE prescriptions SET name=$2, total_doses=$3, doses_per_day=$4, days=$5,
			usage_instruction=$6, dispensing_method=$7, external_pharmacy_id=$8,
			medicine_fee=$9, is_dispensed=$10, dispensed_at=$11, notes=$12
		WHERE id = $1`,
		p.ID, p.Name, p.TotalDoses, p.DosesPerDay, p.Days,
		p.UsageInstruction, p.DispensingMethod, p.ExternalPharmacyID,
		p.MedicineFee, p.IsDispensed, p.DispensedAt, p.Notes)
	return err
}

func (r *prescriptionRepoPG) ListItems(ctx context.Context, prescriptionID uuid.UUID) ([]*PrescriptionItem, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, prescription_id, medicine_id, dosage, unit, decoction_method, unit_price, subtotal
		FROM prescription_items WHERE prescription_id = $1`, prescriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*PrescriptionItem
	for rows.Next() {
		var it PrescriptionItem
		if err := rows.Scan(&it.ID, &it.PrescriptionID, &it.MedicineID, &it.Dosage, &it.Unit,
			&it.DecoctionMethod, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (r *prescriptionRepoPG) ListByConsultation(ctx context.Context, consultationID uuid.UUID) ([]*Prescription, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+rxCols+` FROM prescriptions WHERE consultation_id = $1 ORDER BY created_at`, consultationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Prescription
	for rows.Next() {
		p, err := r.scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *prescriptionRepoPG) SumMedicineFeesByRegistration(ctx context.Context, registrationID uuid.UUID) (float64, error) {
	var total float64
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COALESCE(SUM(p.medicine_fee), 0)
		FROM prescriptions p
		JOIN consultations c ON c.id = p.consultation_id
		WHERE c.registration_id = $1`, registrationID).Scan(&total)
	return total, err
}

func (r *prescriptionRepoPG) AnyDispensedByRegistration(ctx context.Context, registrationID uuid.UUID) (bool, error) {
	var dispensed bool
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM prescriptions p
			JOIN consultations c ON c.id = p.consultation_id
			WHERE c.registration_id = $1 AND p.is_dispensed
		)`, registrationID).Scan(&dispensed)
	return dispensed, err
}

// =========== Certificate Repository ===========

type certificateRepoPG struct{ pool *pgxpool.Pool }

func NewCertificateRepoPG(pool *pgxpool.Pool) CertificateRepository {
	return &certificateRepoPG{pool: pool}
}

const certCols = `id, consultation_id, type, certificate_number, content, issue_date,
	sick_leave_start, sick_leave_end, print_count, last_printed_at, created_at`

func (r *certificateRepoPG) scanCertificate(row pgx.Row) (*Certificate, error) {
	var c Certificate
	err := row.Scan(&c.ID, &c.ConsultationID, &c.Type, &c.CertificateNumber, &c.Content, &c.IssueDate,
		&c.SickLeaveStart, &c.SickLeaveEnd, &c.PrintCount, &c.LastPrintedAt, &c.CreatedAt)
	return &c, err
}

func (r *certificateRepoPG) Create(ctx context.Context, c *Certificate) error {
	c.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO certificates (id, consultation_id, type, certificate_number, content,
			issue_date, sick_leave_start, sick_leave_end, print_count)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,0)`,
		c.ID, c.ConsultationID, c.Type, c.CertificateNumber, c.Content,
		c.IssueDate, c.SickLeaveStart, c.SickLeaveEnd)
	return err
}

func (r *certificateRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Certificate, error) {
	return r.scanCertificate(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+certCols+` FROM certificates WHERE id = $1`, id))
}

func (r *certificateRepoPG) Update(ctx context.Context, c *Certificate) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE certificates SET content=$2, sick_leave_start=$3, sick_leave_end=$4,
			print_count=$5, last_printed_at=$6
		WHERE id = $1`,
		c.ID, c.Content, c.SickLeaveStart, c.SickLeaveEnd, c.PrintCount, c.LastPrintedAt)
	return err
}

func (r *certificateRepoPG) ListByConsultation(ctx context.Context, consultationID uuid.UUID) ([]*Certificate, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+certCols+` FROM certificates WHERE consultation_id = $1 ORDER BY created_at`, consultationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Certificate
	for rows.Next() {
		c, err := r.scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
