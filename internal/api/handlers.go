package api

import (
	"errors"
	"net/http"
	"strings"

	"villa/internal/apperr"
	"villa/internal/availability"
	"villa/internal/models"
	"villa/internal/service"
)

type calendarResponse struct {
	From string               `json:"from"`
	To   string               `json:"to"`
	Days []models.CalendarDay `json:"days"`
}

// unavailableCalendarResponse keeps the calendar renderable while the
// datastore is down: every day is shown as not bookable.
type unavailableCalendarResponse struct {
	errorBody
	calendarResponse
}

type emailRequest struct {
	Email string `json:"email"`
}

func (s *HTTPServer) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := models.ParseDate(strings.TrimSpace(q.Get("from")))
	if err != nil {
		writeError(w, apperr.Validation("from must be YYYY-MM-DD"))
		return
	}
	to, err := models.ParseDate(strings.TrimSpace(q.Get("to")))
	if err != nil {
		writeError(w, apperr.Validation("to must be YYYY-MM-DD"))
		return
	}

	days, err := s.deps.Calendar.Calendar(r.Context(), from, to)
	if err != nil {
		if errors.Is(err, apperr.ErrCalendarUnavailable) {
			s.logger.Error().Err(err).Msg("calendar load failed")
			e := apperr.As(err)
			writeJSON(w, http.StatusServiceUnavailable, unavailableCalendarResponse{
				errorBody:        errorBody{Error: e.Message, Code: e.Code},
				calendarResponse: calendarResponse{From: models.FormatDate(from), To: models.FormatDate(to), Days: availability.Unavailable(from, to)},
			})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, calendarResponse{From: models.FormatDate(from), To: models.FormatDate(to), Days: days})
}

func (s *HTTPServer) handleMealPlans(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"meal_plans": s.deps.Reservations.MealPlans()})
}

func (s *HTTPServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	var in service.QuoteInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	cost, err := s.deps.Reservations.Quote(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cost)
}

func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var in service.CreateReservationInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.deps.Reservations.Create(r.Context(), in)
	if err != nil {
		s.logFailure(r, err, "create reservation failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *HTTPServer) handleLookup(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Reservations.Lookup(r.Context(), r.PathValue("number"), r.URL.Query().Get("email"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var body emailRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.deps.Reservations.ConfirmPayment(r.Context(), r.PathValue("number"), body.Email)
	if err != nil {
		s.logFailure(r, err, "payment confirmation failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	var body emailRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.deps.Reservations.Cancel(r.Context(), r.PathValue("number"), body.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleAffiliateGuestStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Affiliates.StatsForGuest(r.Context(), r.PathValue("code"), r.URL.Query().Get("email"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *HTTPServer) handleCron(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("job")
	job, ok := s.deps.Jobs.Get(name)
	if !ok {
		writeError(w, apperr.New(apperr.KindNotFound, "job_not_found", "unknown job "+name))
		return
	}
	report, err := job.Run(r.Context(), s.deps.Now())
	if err != nil {
		s.logger.Error().Err(err).Str("job", name).Msg("job failed")
		writeError(w, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// logFailure records unexpected errors. Client mistakes are not logged.
func (s *HTTPServer) logFailure(r *http.Request, err error, msg string) {
	switch apperr.As(err).Kind {
	case apperr.KindValidation, apperr.KindBusiness, apperr.KindNotFound:
		return
	}
	s.logger.Error().Err(err).Str("request_id", RequestID(r.Context())).Msg(msg)
}
