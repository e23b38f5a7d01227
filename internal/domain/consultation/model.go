package consultation

import (
	"time"

	"github.com/google/uuid"
)

// DispensingMethod says how a prescription's medicine reaches the patient.
type DispensingMethod string

const (
	DispenseInternal            DispensingMethod = "internal"
	DispenseExternalDecoction   DispensingMethod = "external_decoction"
	DispenseExternalConcentrate DispensingMethod = "external_concentrate"
)

func (m DispensingMethod) Valid() bool {
	switch m {
	case DispenseInternal, DispenseExternalDecoction, DispenseExternalConcentrate:
		return true
	}
	return false
}

// External reports whether dispensing is handled by an outside pharmacy.
func (m DispensingMethod) External() bool {
	return m == DispenseExternalDecoction || m == DispenseExternalConcentrate
}

// CertificateType enumerates printable certificate kinds.
type CertificateType string

const (
	CertMedical   CertificateType = "medical"
	CertSickLeave CertificateType = "sick_leave"
	CertReferral  CertificateType = "referral"
	CertOther     CertificateType = "other"
)

func (t CertificateType) Valid() bool {
	switch t {
	case CertMedical, CertSickLeave, CertReferral, CertOther:
		return true
	}
	return false
}

// Consultation is the doctor's record for one registration.
type Consultation struct {
	ID                      uuid.UUID  `db:"id" json:"id"`
	RegistrationID          uuid.UUID  `db:"registration_id" json:"registration_id"`
	PatientID               uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID                uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	ChiefComplaint          *string    `db:"chief_complaint" json:"chief_complaint,omitempty"`
	PresentIllness          *string    `db:"present_illness" json:"present_illness,omitempty"`
	PastHistory             *string    `db:"past_history" json:"past_history,omitempty"`
	Inspection              *string    `db:"inspection" json:"inspection,omitempty"`
	TongueAppearance        *string    `db:"tongue_appearance" json:"tongue_appearance,omitempty"`
	Inquiry                 *string    `db:"inquiry" json:"inquiry,omitempty"`
	Pulse                   *string    `db:"pulse" json:"pulse,omitempty"`
	TCMDiagnosis            *string    `db:"tcm_diagnosis" json:"tcm_diagnosis,omitempty"`
	WesternDiagnosis        *string    `db:"western_diagnosis" json:"western_diagnosis,omitempty"`
	SyndromeDifferentiation *string    `db:"syndrome_differentiation" json:"syndrome_differentiation,omitempty"`
	TreatmentPrinciple      *string    `db:"treatment_principle" json:"treatment_principle,omitempty"`
	Advice                  *string    `db:"advice" json:"advice,omitempty"`
	FollowUpDate            *time.Time `db:"follow_up_date" json:"follow_up_date,omitempty"`
	Notes                   *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt               time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time  `db:"updated_at" json:"updated_at"`
}

// Prescription is one formula prescribed during a consultation.
type Prescription struct {
	ID                 uuid.UUID        `db:"id" json:"id"`
	ConsultationID     uuid.UUID        `db:"consultation_id" json:"consultation_id"`
	PrescriptionNumber string           `db:"prescription_number" json:"prescription_number"`
	Name               string           `db:"name" json:"name"`
	TotalDoses         int              `db:"total_doses" json:"total_doses"`
	DosesPerDay        int              `db:"doses_per_day" json:"doses_per_day"`
	Days               int              `db:"days" json:"days"`
	UsageInstruction   *string          `db:"usage_instruction" json:"usage_instruction,omitempty"`
	DispensingMethod   DispensingMethod `db:"dispensing_method" json:"dispensing_method"`
	ExternalPharmacyID *uuid.UUID       `db:"external_pharmacy_id" json:"external_pharmacy_id,omitempty"`
	MedicineFee        float64          `db:"medicine_fee" json:"medicine_fee"`
	IsDispensed        bool             `db:"is_dispensed" json:"is_dispensed"`
	DispensedAt        *time.Time       `db:"dispensed_at" json:"dispensed_at,omitempty"`
	Notes              *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`

	Items []*PrescriptionItem `db:"-" json:"items,omitempty"`
}

// PrescriptionItem is one medicine line of a prescription. Dosage is per
// dose; total usage is dosage times the prescription's total doses.
type PrescriptionItem struct {
	ID              uuid.UUID `db:"id" json:"id"`
	PrescriptionID  uuid.UUID `db:"prescription_id" json:"prescription_id"`
	MedicineID      uuid.UUID `db:"medicine_id" json:"medicine_id"`
	Dosage          float64   `db:"dosage" json:"dosage"`
	Unit            string    `db:"unit" json:"unit"`
	DecoctionMethod *string   `db:"decoction_method" json:"decoction_method,omitempty"`
	UnitPrice       float64   `db:"unit_price" json:"unit_price"`
	Subtotal        float64   `db:"subtotal" json:"subtotal"`
}

// Certificate is a printable document issued from a consultation.
type Certificate struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	ConsultationID    uuid.UUID       `db:"consultation_id" json:"consultation_id"`
	Type              CertificateType `db:"type" json:"type"`
	CertificateNumber string          `db:"certificate_number" json:"certificate_number"`
	Content           string          `db:"content" json:"content"`
	IssueDate         time.Time       `db:"issue_date" json:"issue_date"`
	SickLeaveStart    *time.Time      `db:"sick_leave_start" json:"sick_leave_start,omitempty"`
	SickLeaveEnd      *time.Time      `db:"sick_leave_end" json:"sick_leave_end,omitempty"`
	PrintCount        int             `db:"print_count" json:"print_count"`
	LastPrintedAt     *time.Time      `db:"last_printed_at" json:"last_printed_at,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

// StockCheckEntry is one line of the bulk availability report.
type StockCheckEntry struct {
	MedicineID uuid.UUID `json:"medicine_id"`
	Required   float64   `json:"required"`
	Available  float64   `json:"available"`
	Sufficient bool      `json:"sufficient"`
}
