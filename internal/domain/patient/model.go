package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table. Balance is the account credit usable
// against future bills; billing writes it through CreditBalance only.
type Patient struct {
	ID                       uuid.UUID  `db:"id" json:"id"`
	ChartNumber              string     `db:"chart_number" json:"chart_number"`
	Name                     string     `db:"name" json:"name"`
	Gender                   string     `db:"gender" json:"gender"`
	BirthDate                *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	IDCardNumber             *string    `db:"id_card_number" json:"id_card_number,omitempty"`
	Phone                    *string    `db:"phone" json:"phone,omitempty"`
	Mobile                   *string    `db:"mobile" json:"mobile,omitempty"`
	Address                  *string    `db:"address" json:"address,omitempty"`
	Email                    *string    `db:"email" json:"email,omitempty"`
	EmergencyContactName     *string    `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone    *string    `db:"emergency_contact_phone" json:"emergency_contact_phone,omitempty"`
	EmergencyContactRelation *string    `db:"emergency_contact_relation" json:"emergency_contact_relation,omitempty"`
	BloodType                *string    `db:"blood_type" json:"blood_type,omitempty"`
	Allergies                *string    `db:"allergies" json:"allergies,omitempty"`
	MedicalHistory           *string    `db:"medical_history" json:"medical_history,omitempty"`
	Notes                    *string    `db:"notes" json:"notes,omitempty"`
	Balance                  float64    `db:"balance" json:"balance"`
	IsActive                 bool       `db:"is_active" json:"is_active"`
	CreatedBy                *uuid.UUID `db:"created_by" json:"created_by,omitempty"`
	CreatedAt                time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time  `db:"updated_at" json:"updated_at"`
}
