package registration

import (
	"context"
	"fmt"
	"time"

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

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const apptCols = `id, patient_id, doctor_id, room, appointment_date, appointment_time,
	status, notes, created_by, created_at, updated_at`

func (r *appointmentRepoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.Room, &a.AppointmentDate, &a.AppointmentTime,
		&a.Status, &a.Notes, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, room, appointment_date, appointment_time, status, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.PatientID, a.DoctorID, a.Room, a.AppointmentDate, a.AppointmentTime, a.Status, a.Notes, a.CreatedBy)
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppointment(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE appointments SET doctor_id=$2, room=$3, appointment_date=$4, appointment_time=$5,
			status=$6, notes=$7, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.DoctorID, a.Room, a.AppointmentDate, a.AppointmentTime, a.Status, a.Notes)
	return err
}

func (r *appointmentRepoPG) ListByDate(ctx context.Context, date time.Time, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	where := `WHERE appointment_date = $1`
	args := []interface{}{date.Format("2006-01-02")}
	if doctorID != uuid.Nil {
		args = append(args, doctorID)
		where += fmt.Sprintf(` AND doctor_id = $%d`, len(args))
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM appointments `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := fmt.Sprintf(`SELECT %s FROM appointments %s ORDER BY appointment_time LIMIT $%d OFFSET $%d`,
		apptCols, where, len(args)+1, len(args)+2)
	rows, err := conn(ctx, r.pool).Query(ctx, dataSQL, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}

// =========== Registration Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const regCols = `id, registration_number, patient_id, doctor_id, room, appointment_id,
	queue_number, visit_type, status, registration_date,
	checked_in_at, consultation_started_at, consultation_ended_at,
	registration_fee, notes, created_by, created_at, updated_at`

func (r *repoPG) scanRegistration(row pgx.Row) (*Registration, error) {
	var reg Registration
	err := row.Scan(&reg.ID, &reg.RegistrationNumber, &reg.PatientID, &reg.DoctorID, &reg.Room, &reg.AppointmentID,
		&reg.QueueNumber, &reg.VisitType, &reg.Status, &reg.RegistrationDate,
		&reg.CheckedInAt, &reg.ConsultationStartedAt, &reg.ConsultationEndedAt,
		&reg.RegistrationFee, &reg.Notes, &reg.CreatedBy, &reg.CreatedAt, &reg.UpdatedAt)
	return &reg, err
}

func (r *repoPG) Create(ctx context.Context, reg *Registration) error {
	reg.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO registrations (id, registration_number, patient_id, doctor_id, room, appointment_id,
			queue_number, visit_type, status, registration_date, registration_fee, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		reg.ID, reg.RegistrationNumber, reg.PatientID, reg.DoctorID, reg.Room, reg.AppointmentID,
		reg.QueueNumber, reg.VisitType, reg.Status, reg.RegistrationDate, reg.RegistrationFee, reg.Notes, reg.CreatedBy)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Registration, error) {
	return r.scanRegistration(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+regCols+` FROM registrations WHERE id = $1`, id))
}

func (r *repoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Registration, error) {
	return r.scanRegistration(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+regCols+` FROM registrations WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) Update(ctx context.Context, reg *Registration) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE registrations SET doctor_id=$2, room=$3, status=$4,
			checked_in_at=$5, consultation_started_at=$6, consultation_ended_at=$7,
			registration_fee=$8, notes=$9, updated_at=NOW()
		WHERE id = $1`,
		reg.ID, reg.DoctorID, reg.Room, reg.Status,
		reg.CheckedInAt, reg.ConsultationStartedAt, reg.ConsultationEndedAt,
		reg.RegistrationFee, reg.Notes)
	return err
}

func (r *repoPG) ListByDate(ctx context.Context, date time.Time, doctorID uuid.UUID, room string, limit, offset int) ([]*Registration, int, error) {
	where := `WHERE registration_date = $1`
	args := []interface{}{date.Format("2006-01-02")}
	if doctorID != uuid.Nil {
		args = append(args, doctorID)
		where += fmt.Sprintf(` AND doctor_id = $%d`, len(args))
	}
	if room != "" {
		args = append(args, room)
		where += fmt.Sprintf(` AND room = $%d`, len(args))
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM registrations `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := fmt.Sprintf(`SELECT %s FROM registrations %s ORDER BY queue_number LIMIT $%d OFFSET $%d`,
		regCols, where, len(args)+1, len(args)+2)
	rows, err := conn(ctx, r.pool).Query(ctx, dataSQL, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Registration
	for rows.Next() {
		reg, err := r.scanRegistration(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, reg)
	}
	return items, total, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Registration, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+regCols+` FROM registrations WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Registration
	for rows.Next() {
		reg, err := r.scanRegistration(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, reg)
	}
	return items, total, nil
}
