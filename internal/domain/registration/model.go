package registration

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus is the appointment state machine.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentConverted AppointmentStatus = "converted"
)

// RegistrationStatus is the visit state machine.
type RegistrationStatus string

const (
	StatusRegistered     RegistrationStatus = "registered"
	StatusWaiting        RegistrationStatus = "waiting"
	StatusInConsultation RegistrationStatus = "in_consultation"
	StatusCompleted      RegistrationStatus = "completed"
	StatusCancelled      RegistrationStatus = "cancelled"
	StatusNoShow         RegistrationStatus = "no_show"
)

// VisitType distinguishes first visits from follow-ups.
type VisitType string

const (
	VisitFirst    VisitType = "first_visit"
	VisitFollowUp VisitType = "follow_up"
)

func (v VisitType) Valid() bool {
	return v == VisitFirst || v == VisitFollowUp
}

// Appointment is a future booking that may convert into a registration.
type Appointment struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	PatientID       uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	Room            *string           `db:"room" json:"room,omitempty"`
	AppointmentDate time.Time         `db:"appointment_date" json:"appointment_date"`
	AppointmentTime string            `db:"appointment_time" json:"appointment_time"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Notes           *string           `db:"notes" json:"notes,omitempty"`
	CreatedBy       *uuid.UUID        `db:"created_by" json:"created_by,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// Registration is one patient visit moving through the day's queue.
type Registration struct {
	ID                    uuid.UUID          `db:"id" json:"id"`
	RegistrationNumber    string             `db:"registration_number" json:"registration_number"`
	PatientID             uuid.UUID          `db:"patient_id" json:"patient_id"`
	DoctorID              uuid.UUID          `db:"doctor_id" json:"doctor_id"`
	Room                  *string            `db:"room" json:"room,omitempty"`
	AppointmentID         *uuid.UUID         `db:"appointment_id" json:"appointment_id,omitempty"`
	QueueNumber           int                `db:"queue_number" json:"queue_number"`
	VisitType             VisitType          `db:"visit_type" json:"visit_type"`
	Status                RegistrationStatus `db:"status" json:"status"`
	RegistrationDate      time.Time          `db:"registration_date" json:"registration_date"`
	CheckedInAt           *time.Time         `db:"checked_in_at" json:"checked_in_at,omitempty"`
	ConsultationStartedAt *time.Time         `db:"consultation_started_at" json:"consultation_started_at,omitempty"`
	ConsultationEndedAt   *time.Time         `db:"consultation_ended_at" json:"consultation_ended_at,omitempty"`
	RegistrationFee       float64            `db:"registration_fee" json:"registration_fee"`
	Notes                 *string            `db:"notes" json:"notes,omitempty"`
	CreatedBy             *uuid.UUID         `db:"created_by" json:"created_by,omitempty"`
	CreatedAt             time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time          `db:"updated_at" json:"updated_at"`
}

// QueueSummary is the response of GET /registrations/today-queue.
type QueueSummary struct {
	Waiting        []*Registration `json:"waiting"`
	InConsultation []*Registration `json:"in_consultation"`
	Completed      []*Registration `json:"completed"`
	Counts         QueueCounts     `json:"counts"`
}

type QueueCounts struct {
	Waiting        int `json:"waiting"`
	InConsultation int `json:"in_consultation"`
	Completed      int `json:"completed"`
	Total          int `json:"total"`
}
