package api

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"villa/internal/apperr"
	"villa/internal/export"
	"villa/internal/service"
)

func (s *HTTPServer) handleListAffiliates(w http.ResponseWriter, r *http.Request) {
	affiliates, err := s.deps.Affiliates.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"affiliates": affiliates})
}

func (s *HTTPServer) handleRegisterAffiliate(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterAffiliateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.deps.Affiliates.Register(r.Context(), in)
	if err != nil {
		s.logFailure(r, err, "register affiliate failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *HTTPServer) handleAffiliateStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Affiliates.Stats(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *HTTPServer) handleRecordPayout(w http.ResponseWriter, r *http.Request) {
	var in service.PayoutInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.deps.Affiliates.RecordPayout(r.Context(), r.PathValue("code"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// handleExportPayouts defaults to the current month when year or month is
// omitted.
func (s *HTTPServer) handleExportPayouts(w http.ResponseWriter, r *http.Request) {
	now := s.deps.Now()
	year, month := now.Year(), now.Month()

	q := r.URL.Query()
	if v := q.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 2000 || y > 9999 {
			writeError(w, apperr.Validation("year must be a four digit number"))
			return
		}
		year = y
	}
	if v := q.Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, apperr.Validation("month must be 1-12"))
			return
		}
		month = time.Month(m)
	}

	rows, err := s.deps.Affiliates.MonthlyStats(r.Context(), year, month)
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WritePayouts(&buf, year, month, rows); err != nil {
		s.logger.Error().Err(err).Msg("payout export failed")
		writeError(w, apperr.Internal(err))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.PayoutFileName(year, month)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
