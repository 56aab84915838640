package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/medibook/scheduling/internal/booking"
	"github.com/medibook/scheduling/internal/schedule"
)

type ReserveRequest struct {
	DoctorID        string    `json:"doctor_id"`
	PatientID       string    `json:"patient_id"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
}

type ValidateRequest struct {
	DoctorID             string    `json:"doctor_id"`
	StartTime            time.Time `json:"start_time"`
	DurationMinutes      int       `json:"duration_minutes"`
	ExcludeAppointmentID string    `json:"exclude_appointment_id,omitempty"`
}

type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	DoctorID        uuid.UUID  `json:"doctor_id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         time.Time  `json:"end_time"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		DoctorID:        a.DoctorID,
		PatientID:       a.PatientID,
		StartTime:       a.StartTime,
		EndTime:         a.EndTime(),
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		ExpiresAt:       a.ExpiresAt,
	}
}

type RejectionResponse struct {
	Code          string   `json:"code"`
	Message       string   `json:"message"`
	Weekday       string   `json:"weekday,omitempty"`
	Windows       []string `json:"windows,omitempty"`
	BlockedAllDay bool     `json:"blocked_all_day,omitempty"`
}

func toRejectionResponse(r *booking.Rejection) *RejectionResponse {
	if r == nil {
		return nil
	}
	resp := &RejectionResponse{
		Code:          string(r.Code),
		Message:       r.Message,
		BlockedAllDay: r.BlockedAllDay,
	}
	if r.Weekday != nil {
		resp.Weekday = r.Weekday.String()
	}
	for _, w := range r.Windows {
		resp.Windows = append(resp.Windows, w.String())
	}
	return resp
}

type DecisionResponse struct {
	Accepted bool               `json:"accepted"`
	Reason   *RejectionResponse `json:"reason,omitempty"`
}

type SlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type SlotsResponse struct {
	DoctorID uuid.UUID      `json:"doctor_id"`
	Slots    []SlotResponse `json:"slots"`
}

type BlockedDateRequest struct {
	Date   string `json:"date"`             // YYYY-MM-DD
	Window string `json:"window,omitempty"` // HH:MM-HH:MM, absent blocks the whole date
}

type BlockedDateResponse struct {
	ID     uuid.UUID `json:"id"`
	Date   string    `json:"date"`
	Window string    `json:"window,omitempty"`
}

func toBlockedDateResponse(b schedule.BlockedDate) BlockedDateResponse {
	resp := BlockedDateResponse{
		ID:   b.ID,
		Date: b.Date.Format("2006-01-02"),
	}
	if b.Window != nil {
		resp.Window = b.Window.String()
	}
	return resp
}

type DayScheduleBody struct {
	Enabled bool     `json:"enabled"`
	Windows []string `json:"windows"` // HH:MM-HH:MM entries
}

type WeeklyTemplateBody struct {
	Days map[string]DayScheduleBody `json:"days"` // keyed by weekday name
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
