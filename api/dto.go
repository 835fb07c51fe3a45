package api

import "clinic-session-service/internal/models"

type ReservationRequest struct {
	DoctorID     string  `json:"doctorId" validate:"required"`
	PatientName  string  `json:"patientName" validate:"required,max=200"`
	PatientEmail string  `json:"patientEmail" validate:"required,email"`
	PatientPhone *string `json:"patientPhone,omitempty" validate:"omitempty,max=32"`
	Date         string  `json:"date" validate:"required"`
	Notes        *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type ReservationResponse struct {
	AppointmentID string `json:"appointmentId"`
	BookingNumber int    `json:"bookingNumber"`
	AssignedTime  string `json:"assignedTime"`
	AssignedRoom  string `json:"assignedRoom"`
}

// DoctorListing is a doctor with the free slots still ahead of today.
type DoctorListing struct {
	models.Doctor
	TimeSlots []models.TimeSlot `json:"timeSlots"`
}

type SlotGenerateRequest struct {
	Date            string `json:"date" validate:"required"`
	StartTime       string `json:"startTime" validate:"required,datetime=15:04"`
	DurationMinutes int    `json:"durationMinutes" validate:"required,min=1,max=480"`
	Count           int    `json:"count" validate:"required,min=1,max=96"`
	Room            string `json:"room,omitempty" validate:"max=64"`
}

type SlotGenerateResponse struct {
	Added int64 `json:"added"`
}

// SlotDeleteRequest removes either one slot or every unbooked slot of a date.
type SlotDeleteRequest struct {
	SlotID *string `json:"slotId,omitempty"`
	Date   *string `json:"date,omitempty"`
	Room   *string `json:"room,omitempty"`
}

type SlotDeleteResponse struct {
	Deleted int64 `json:"deleted"`
	Kept    int64 `json:"kept"`
}

type PortSelectRequest struct {
	Port string `json:"port" validate:"required"`
}

type DemographicsRequest struct {
	Age      int    `json:"age" validate:"required,min=1,max=120"`
	Gender   string `json:"gender" validate:"required,max=32"`
	Province string `json:"province" validate:"required"`
}

type SessionEndRequest struct {
	Prescription *string `json:"prescription,omitempty"`
}

// SessionResultRequest commits a finished session without a live controller.
// Probability is 0..1; the model reports Confidence as a percentage.
type SessionResultRequest struct {
	AppointmentID   string                 `json:"appointmentId" validate:"required"`
	Duration        int                    `json:"duration" validate:"min=0"`
	RecordedTemp    *float64               `json:"recordedTemp,omitempty"`
	Prescription    *string                `json:"prescription,omitempty"`
	Prediction      string                 `json:"prediction"`
	Probability     float64                `json:"probability" validate:"min=0,max=1"`
	Confidence      float64                `json:"confidence" validate:"min=0,max=100"`
	SessionAverages models.SessionAverages `json:"sessionAverages"`
}

func (r SessionResultRequest) Record() models.SessionRecord {
	prediction := r.Prediction
	if prediction == "" {
		prediction = "Unknown"
	}

	return models.SessionRecord{
		AppointmentID: r.AppointmentID,
		Duration:      r.Duration,
		RecordedTemp:  r.RecordedTemp,
		Prescription:  r.Prescription,
		Prediction:    prediction,
		Probability:   r.Probability,
		Confidence:    r.Confidence,
		Averages:      r.SessionAverages,
	}
}
