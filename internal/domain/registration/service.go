package registration

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinio/clinio/internal/platform/apperr"
	"github.com/clinio/clinio/internal/platform/db"
	"github.com/clinio/clinio/internal/platform/metrics"
)

type Service struct {
	registrations Repository
	appointments  AppointmentRepository
	bills         BillCreator
	numbers       db.NumberGenerator
	tx            db.Transactor
	metrics       *metrics.Metrics
}

func NewService(registrations Repository, appointments AppointmentRepository, bills BillCreator,
	numbers db.NumberGenerator, tx db.Transactor, m *metrics.Metrics) *Service {
	return &Service{
		registrations: registrations,
		appointments:  appointments,
		bills:         bills,
		numbers:       numbers,
		tx:            tx,
		metrics:       m,
	}
}

// -- Appointments --

func (s *Service) CreateAppointment(ctx context.Context, a *Appointment, actor uuid.UUID) (*Appointment, error) {
	if a.PatientID == uuid.Nil || a.DoctorID == uuid.Nil {
		return nil, apperr.Validation("patient_id and doctor_id are required")
	}
	if a.AppointmentTime == "" {
		return nil, apperr.Validation("appointment_time is required")
	}
	a.Status = AppointmentScheduled
	if actor != uuid.Nil {
		a.CreatedBy = &actor
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("appointment not found")
	}
	return a, nil
}

func (s *Service) ListAppointments(ctx context.Context, date time.Time, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByDate(ctx, date, doctorID, limit, offset)
}

func (s *Service) ConfirmAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("appointment not found")
	}
	switch a.Status {
	case AppointmentScheduled:
	case AppointmentConfirmed, AppointmentCancelled, AppointmentConverted:
		return nil, apperr.Conflict("only scheduled appointments can be confirmed")
	default:
		return nil, apperr.Conflict("invalid appointment status")
	}
	a.Status = AppointmentConfirmed
	if err := s.appointments.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("appointment not found")
	}
	switch a.Status {
	case AppointmentConverted:
		return nil, apperr.Conflict("converted appointments cannot be cancelled")
	case AppointmentScheduled, AppointmentConfirmed, AppointmentCancelled:
	default:
		return nil, apperr.Conflict("invalid appointment status")
	}
	a.Status = AppointmentCancelled
	if err := s.appointments.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ConvertAppointment creates a registration from a confirmed or scheduled
// appointment and marks the appointment converted.
func (s *Service) ConvertAppointment(ctx context.Context, id uuid.UUID, registrationFee float64, actor uuid.UUID) (*Registration, error) {
	var out *Registration
	err := s.tx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetByID(ctx, id)
		if err != nil {
			return apperr.NotFound("appointment not found")
		}
		switch a.Status {
		case AppointmentScheduled, AppointmentConfirmed:
		case AppointmentCancelled, AppointmentConverted:
			return apperr.Conflict("appointment cannot be converted from status " + string(a.Status))
		default:
			return apperr.Conflict("invalid appointment status")
		}

		reg, err := s.register(ctx, &Registration{
			PatientID:       a.PatientID,
			DoctorID:        a.DoctorID,
			Room:            a.Room,
			AppointmentID:   &a.ID,
			VisitType:       VisitFollowUp,
			RegistrationFee: registrationFee,
			Notes:           a.Notes,
		}, actor)
		if err != nil {
			return err
		}

		a.Status = AppointmentConverted
		if err := s.appointments.Update(ctx, a); err != nil {
			return err
		}
		out = reg
		return nil
	})
	return out, err
}

// -- Registrations --

// Register creates a walk-in registration with the next queue number for
// the doctor's day.
func (s *Service) Register(ctx context.Context, reg *Registration, actor uuid.UUID) (*Registration, error) {
	if reg.PatientID == uuid.Nil || reg.DoctorID == uuid.Nil {
		return nil, apperr.Validation("patient_id and doctor_id are required")
	}
	var out *Registration
	err := s.tx(ctx, func(ctx context.Context) error {
		created, err := s.register(ctx, reg, actor)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	return out, err
}

func (s *Service) register(ctx context.Context, reg *Registration, actor uuid.UUID) (*Registration, error) {
	if reg.VisitType == "" {
		reg.VisitType = VisitFirst
	}
	if !reg.VisitType.Valid() {
		return nil, apperr.Validation("invalid visit_type: " + string(reg.VisitType))
	}

	now := time.Now()
	number, err := s.numbers.NextNumber(ctx, "R", now)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "allocate registration number", err)
	}
	// Queue numbers restart daily per doctor.
	queue, err := s.numbers.Next(ctx, "Q"+now.Format("20060102")+reg.DoctorID.String())
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "allocate queue number", err)
	}

	reg.RegistrationNumber = number
	reg.QueueNumber = queue
	reg.Status = StatusRegistered
	reg.RegistrationDate = now
	if actor != uuid.Nil {
		reg.CreatedBy = &actor
	}
	if err := s.registrations.Create(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Registration, error) {
	reg, err := s.registrations.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("registration not found")
	}
	return reg, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Registration, int, error) {
	return s.registrations.ListByPatient(ctx, patientID, limit, offset)
}

// CheckIn moves a registered visit into the waiting queue.
func (s *Service) CheckIn(ctx context.Context, id uuid.UUID) (*Registration, error) {
	return s.transition(ctx, id, func(reg *Registration) error {
		switch reg.Status {
		case StatusRegistered:
		case StatusWaiting, StatusInConsultation, StatusCompleted, StatusCancelled, StatusNoShow:
			return apperr.Conflict("cannot check in from status " + string(reg.Status))
		default:
			return apperr.Conflict("invalid registration status")
		}
		now := time.Now()
		reg.Status = StatusWaiting
		reg.CheckedInAt = &now
		return nil
	})
}

// StartConsultation moves a waiting visit to the doctor's desk.
func (s *Service) StartConsultation(ctx context.Context, id uuid.UUID) (*Registration, error) {
	return s.transition(ctx, id, func(reg *Registration) error {
		switch reg.Status {
		case StatusWaiting:
		case StatusRegistered, StatusInConsultation, StatusCompleted, StatusCancelled, StatusNoShow:
			return apperr.Conflict("cannot start consultation from status " + string(reg.Status))
		default:
			return apperr.Conflict("invalid registration status")
		}
		now := time.Now()
		reg.Status = StatusInConsultation
		reg.ConsultationStartedAt = &now
		return nil
	})
}

// EndConsultation completes the visit and creates its bill. Bill creation is
// idempotent per registration, so re-running after a partial failure is safe.
func (s *Service) EndConsultation(ctx context.Context, id uuid.UUID, actor uuid.UUID) (*Registration, error) {
	var out *Registration
	err := s.tx(ctx, func(ctx context.Context) error {
		reg, err := s.registrations.GetByIDForUpdate(ctx, id)
		if err != nil {
			return apperr.NotFound("registration not found")
		}
		switch reg.Status {
		case StatusInConsultation:
		case StatusRegistered, StatusWaiting, StatusCompleted, StatusCancelled, StatusNoShow:
			return apperr.Conflict("cannot end consultation from status " + string(reg.Status))
		default:
			return apperr.Conflict("invalid registration status")
		}

		now := time.Now()
		reg.Status = StatusCompleted
		reg.ConsultationEndedAt = &now
		if err := s.registrations.Update(ctx, reg); err != nil {
			return err
		}
		if err := s.bills.CreateBillForRegistration(ctx, reg.ID, reg.PatientID, actor); err != nil {
			return err
		}
		out = reg
		return nil
	})
	if err == nil && s.metrics != nil {
		s.metrics.ConsultationsEnded.Inc()
	}
	return out, err
}

// Cancel cancels a visit that has not completed.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Registration, error) {
	return s.transition(ctx, id, func(reg *Registration) error {
		switch reg.Status {
		case StatusCompleted:
			return apperr.Conflict("completed registrations cannot be cancelled")
		case StatusRegistered, StatusWaiting, StatusInConsultation, StatusCancelled, StatusNoShow:
		default:
			return apperr.Conflict("invalid registration status")
		}
		reg.Status = StatusCancelled
		return nil
	})
}

// NoShow marks a registered or waiting visit as a no-show.
func (s *Service) NoShow(ctx context.Context, id uuid.UUID) (*Registration, error) {
	return s.transition(ctx, id, func(reg *Registration) error {
		switch reg.Status {
		case StatusRegistered, StatusWaiting:
		case StatusInConsultation, StatusCompleted, StatusCancelled, StatusNoShow:
			return apperr.Conflict("cannot mark no-show from status " + string(reg.Status))
		default:
			return apperr.Conflict("invalid registration status")
		}
		reg.Status = StatusNoShow
		return nil
	})
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, apply func(*Registration) error) (*Registration, error) {
	var out *Registration
	err := s.tx(ctx, func(ctx context.Context) error {
		reg, err := s.registrations.GetByIDForUpdate(ctx, id)
		if err != nil {
			return apperr.NotFound("registration not found")
		}
		if err := apply(reg); err != nil {
			return err
		}
		if err := s.registrations.Update(ctx, reg); err != nil {
			return err
		}
		out = reg
		return nil
	})
	return out, err
}

// TodayQueue groups the day's visits by stage for the waiting room display.
func (s *Service) TodayQueue(ctx context.Context, doctorID uuid.UUID, room string) (*QueueSummary, error) {
	regs, _, err := s.registrations.ListByDate(ctx, time.Now(), doctorID, room, 500, 0)
	if err != nil {
		return nil, err
	}

	summary := &QueueSummary{
		Waiting:        []*Registration{},
		InConsultation: []*Registration{},
		Completed:      []*Registration{},
	}
	for _, reg := range regs {
		switch reg.Status {
		case StatusWaiting:
			summary.Waiting = append(summary.Waiting, reg)
		case StatusInConsultation:
			summary.InConsultation = append(summary.InConsultation, reg)
		case StatusCompleted:
			summary.Completed = append(summary.Completed, reg)
		case StatusRegistered, StatusCancelled, StatusNoShow:
		}
	}
	summary.Counts = QueueCounts{
		Waiting:        len(summary.Waiting),
		InConsultation: len(summary.InConsultation),
		Completed:      len(summary.Completed),
		Total:          len(regs),
	}
	return summary, nil
}
