package models

import "time"

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type Doctor struct {
	ID            string  `db:"id" json:"id"`
	Name          string  `db:"name" json:"name"`
	Specialty     string  `db:"specialty" json:"specialty"`
	ConsultFee    float64 `db:"consult_fee" json:"consultFee"`
	Rating        float64 `db:"rating" json:"rating"`
	Experience    int     `db:"experience" json:"experience"`
	AvailableDays string  `db:"available_days" json:"availableDays"`
	AvailableTime string  `db:"available_time" json:"availableTime"`
}

// TimeSlot.Date is always held at 12:00 UTC of its calendar day.
type TimeSlot struct {
	ID       string    `db:"id" json:"id"`
	DoctorID string    `db:"doctor_id" json:"doctorId"`
	Date     time.Time `db:"slot_date" json:"date"`
	Time     string    `db:"slot_time" json:"time"`
	Room     string    `db:"room" json:"room"`
	IsBooked bool      `db:"is_booked" json:"isBooked"`
}

// Appointment keeps its own copy of the reserved time and room so slot rows
// can be pruned without touching history.
type Appointment struct {
	ID           string            `db:"id" json:"id"`
	DoctorID     string            `db:"doctor_id" json:"doctorId"`
	PatientName  string            `db:"patient_name" json:"patientName"`
	PatientEmail string            `db:"patient_email" json:"patientEmail"`
	PatientPhone *string           `db:"patient_phone" json:"patientPhone"`
	Date         time.Time         `db:"appointment_date" json:"date"`
	TimeSlot     string            `db:"time_slot" json:"timeSlot"`
	Room         string            `db:"room" json:"room"`
	Status       AppointmentStatus `db:"status" json:"status"`
	Paid         bool              `db:"paid" json:"paid"`
	Notes        *string           `db:"notes" json:"notes"`
	CreatedAt    time.Time         `db:"created_at" json:"createdAt"`

	Doctor *Doctor `db:"-" json:"doctor,omitempty"`
}

type SessionAverages struct {
	HeartRate         float64 `json:"heart_rate"`
	BodyTemp          float64 `json:"body_temp"`
	SpeechNoiseDB     float64 `json:"speech_noise_db"`
	MovementLevel     float64 `json:"movement_level"`
	ECGVariability    float64 `json:"ecg_variability"`
	FacialStressScore float64 `json:"facial_stress_score"`
	Age               int     `json:"age"`
	Gender            string  `json:"gender"`
	Province          string  `json:"province"`
}

// SessionRecord is written once, together with the COMPLETED transition of
// its appointment, and never updated.
type SessionRecord struct {
	ID            string          `db:"id" json:"id"`
	AppointmentID string          `db:"appointment_id" json:"appointmentId"`
	Duration      int             `db:"duration" json:"duration"`
	RecordedTemp  *float64        `db:"recorded_temp" json:"recordedTemp"`
	Prescription  *string         `db:"prescription" json:"prescription"`
	Prediction    string          `db:"prediction" json:"prediction"`
	Probability   float64         `db:"probability" json:"probability"`
	Confidence    float64         `db:"confidence" json:"confidence"`
	Averages      SessionAverages `db:"-" json:"sessionAverages"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

// CalendarDate normalises t to noon UTC of the same calendar day.
func CalendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.UTC)
}

// ParseDate accepts "2006-01-02" or an RFC3339 timestamp whose date part is used.
func ParseDate(s string) (time.Time, error) {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}

	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}

	return CalendarDate(d), nil
}
