package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medibook/scheduling/internal/booking"
	"github.com/medibook/scheduling/internal/schedule"
)

func reserveHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReserveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		if req.DurationMinutes <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration_minutes must be positive")
			return
		}

		appt, rejection, err := svc.Reserve(r.Context(), doctorID, patientID, req.StartTime, req.DurationMinutes)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if rejection != nil {
			status := http.StatusUnprocessableEntity
			if rejection.Code == booking.CodeSlotTaken {
				status = http.StatusConflict
			}
			writeJSON(w, status, DecisionResponse{Accepted: false, Reason: toRejectionResponse(rejection)})
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func validateHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ValidateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		var excludeID *uuid.UUID
		if req.ExcludeAppointmentID != "" {
			id, err := uuid.Parse(req.ExcludeAppointmentID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_exclude_id", "exclude_appointment_id must be a valid UUID")
				return
			}
			excludeID = &id
		}

		decision, err := svc.Validate(r.Context(), doctorID, req.StartTime, req.DurationMinutes, excludeID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, DecisionResponse{
			Accepted: decision.Accepted,
			Reason:   toRejectionResponse(decision.Rejection),
		})
	}
}

func availableSlotsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "from must be RFC3339")
			return
		}
		to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", "to must be RFC3339")
			return
		}

		var slotDuration time.Duration
		if raw := r.URL.Query().Get("duration_minutes"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_duration", "duration_minutes must be a positive integer")
				return
			}
			slotDuration = time.Duration(n) * time.Minute
		}

		slots, err := svc.GetAvailableSlots(r.Context(), doctorID, from, to, slotDuration)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := SlotsResponse{DoctorID: doctorID, Slots: make([]SlotResponse, 0, len(slots))}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, SlotResponse{Start: s.Start, End: s.End})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func transitionHandler(fn func(r *http.Request, id uuid.UUID) (*booking.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := fn(r, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func getTemplateHandler(schedules schedule.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		tpl, err := schedules.GetWeeklyTemplate(r.Context(), doctorID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		body := WeeklyTemplateBody{Days: make(map[string]DayScheduleBody, 7)}
		for wd, day := range tpl.Days {
			entry := DayScheduleBody{Enabled: day.Enabled, Windows: make([]string, 0, len(day.Windows))}
			for _, win := range day.Windows {
				entry.Windows = append(entry.Windows, win.String())
			}
			body.Days[wd.String()] = entry
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func putTemplateHandler(schedules schedule.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var body WeeklyTemplateBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		tpl := schedule.WeeklyTemplate{DoctorID: doctorID, Days: make(map[time.Weekday]schedule.DaySchedule, 7)}
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			tpl.Days[wd] = schedule.DaySchedule{}
		}
		for name, entry := range body.Days {
			wd, err := parseWeekday(name)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_weekday", err.Error())
				return
			}
			day := schedule.DaySchedule{Enabled: entry.Enabled}
			for _, raw := range entry.Windows {
				win, err := parseWindow(raw)
				if err != nil {
					writeError(w, http.StatusBadRequest, "invalid_window", err.Error())
					return
				}
				day.Windows = append(day.Windows, win)
			}
			tpl.Days[wd] = day
		}

		if err := tpl.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_template", err.Error())
			return
		}
		if err := schedules.SaveWeeklyTemplate(r.Context(), tpl); err != nil {
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addBlockedDateHandler(schedules schedule.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req BlockedDateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		block := schedule.BlockedDate{DoctorID: doctorID, Date: date}
		if req.Window != "" {
			win, err := parseWindow(req.Window)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_window", err.Error())
				return
			}
			block.Window = &win
		}

		saved, err := schedules.AddBlockedDate(r.Context(), block)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBlockedDateResponse(saved))
	}
}

func removeBlockedDateHandler(schedules schedule.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		blockID, err := uuid.Parse(chi.URLParam(r, "blockID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_block_id", "blockID must be a valid UUID")
			return
		}

		if err := schedules.RemoveBlockedDate(r.Context(), doctorID, blockID); err != nil {
			if errors.Is(err, schedule.ErrBlockedNotFound) {
				writeError(w, http.StatusNotFound, "blocked_date_not_found", err.Error())
				return
			}
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrDoctorBusy):
		writeError(w, http.StatusConflict, "doctor_busy", "calendar is busy, please retry shortly")
	case errors.Is(err, booking.ErrAppointmentExpiredState):
		writeError(w, http.StatusConflict, "appointment_expired", err.Error())
	case errors.Is(err, booking.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotEnded):
		writeError(w, http.StatusConflict, "appointment_not_ended", err.Error())
	case errors.Is(err, booking.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "booking store unavailable, please retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseWeekday(name string) (time.Weekday, error) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.EqualFold(wd.String(), name) {
			return wd, nil
		}
	}
	return 0, errors.New("unknown weekday " + name)
}

func parseWindow(raw string) (schedule.TimeWindow, error) {
	parts := strings.SplitN(raw, "-", 2)
	if len(parts) != 2 {
		return schedule.TimeWindow{}, errors.New("window must be HH:MM-HH:MM")
	}
	start, err := schedule.ParseMinute(parts[0])
	if err != nil {
		return schedule.TimeWindow{}, err
	}
	end, err := schedule.ParseMinute(parts[1])
	if err != nil {
		return schedule.TimeWindow{}, err
	}
	win := schedule.TimeWindow{Start: start, End: end}
	if !win.Valid() {
		return schedule.TimeWindow{}, schedule.ErrInvalidWindow
	}
	return win, nil
}
