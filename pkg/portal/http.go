package portal

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/medisetu/platform/pkg/analysis"
	"github.com/medisetu/platform/pkg/common/logger"
	"github.com/medisetu/platform/pkg/common/models"
	"github.com/medisetu/platform/pkg/kvstore"
	"github.com/medisetu/platform/pkg/records"
	"github.com/medisetu/platform/pkg/session"
)

type HTTPHandler struct {
	patients *PatientService
	doctors  *DoctorService
	sessions *session.Resolver
}

func NewHTTPHandler(patients *PatientService, doctors *DoctorService, sessions *session.Resolver) *HTTPHandler {
	return &HTTPHandler{patients: patients, doctors: doctors, sessions: sessions}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/session", h.handleSession).Methods(http.MethodGet)

	router.HandleFunc("/patients/login", h.handlePatientLogin).Methods(http.MethodPost)
	router.HandleFunc("/patients/logout", h.handlePatientLogout).Methods(http.MethodPost)
	router.HandleFunc("/patients/{id}/reports", h.handleListReports).Methods(http.MethodGet)
	router.HandleFunc("/patients/{id}/reports/analyze", h.handleAnalyze).Methods(http.MethodPost)
	router.HandleFunc("/patients/{id}/reports/analyze", h.handleCancelAnalysis).Methods(http.MethodDelete)
	router.HandleFunc("/patients/{id}/notes", h.handleListNotes).Methods(http.MethodGet)
	router.HandleFunc("/patients/{id}/notes", h.handleSaveNote).Methods(http.MethodPost)
	router.HandleFunc("/reports/{id}", h.handleGetReport).Methods(http.MethodGet)
	router.HandleFunc("/reports/{id}", h.handlePutReport).Methods(http.MethodPut)

	router.HandleFunc("/doctors/login", h.handleDoctorLogin).Methods(http.MethodPost)
	router.HandleFunc("/doctors/logout", h.handleDoctorLogout).Methods(http.MethodPost)
	router.HandleFunc("/doctors/{id}/appointments", h.handleListAppointments).Methods(http.MethodGet)
	router.HandleFunc("/doctors/{id}/appointments", h.handleBook).Methods(http.MethodPost)
	router.HandleFunc("/doctors/{id}/profiles/{ref}", h.handleProfile).Methods(http.MethodGet)
	router.HandleFunc("/appointments/{id}/check-in", h.handleCheckIn).Methods(http.MethodPost)
	router.HandleFunc("/appointments/{id}/complete", h.handleComplete).Methods(http.MethodPost)
}

type loginRequest struct {
	Identifier string `json:"identifier"`
}

type analyzeRequest struct {
	Text string `json:"text"`
}

func (h *HTTPHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Resolve(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *HTTPHandler) handlePatientLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	login, err := h.patients.Login(r.Context(), req.Identifier)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if login.Registered {
		status = http.StatusCreated
	}
	writeJSON(w, status, login)
}

func (h *HTTPHandler) handlePatientLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.patients.Logout(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.patients.Reports(r.Context(), mux.Vars(r)["id"], listQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *HTTPHandler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decode(w, r, &req) {
		return
	}
	report, err := h.patients.AnalyzeAndSave(r.Context(), mux.Vars(r)["id"], req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (h *HTTPHandler) handleCancelAnalysis(w http.ResponseWriter, r *http.Request) {
	cancelled, err := h.patients.CancelAnalysis(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if !cancelled {
		http.Error(w, "no analysis in progress", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.patients.Report(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *HTTPHandler) handlePutReport(w http.ResponseWriter, r *http.Request) {
	var report models.MedicalReport
	if !decode(w, r, &report) {
		return
	}
	id := mux.Vars(r)["id"]
	if report.ID == "" {
		report.ID = id
	}
	if report.ID != id {
		http.Error(w, "report id does not match path", http.StatusBadRequest)
		return
	}
	if err := h.patients.SaveReport(r.Context(), report); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *HTTPHandler) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.doctors.Notes(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *HTTPHandler) handleSaveNote(w http.ResponseWriter, r *http.Request) {
	var form NoteForm
	if !decode(w, r, &form) {
		return
	}
	note, err := h.doctors.SaveNote(r.Context(), mux.Vars(r)["id"], form)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (h *HTTPHandler) handleDoctorLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	login, err := h.doctors.Login(r.Context(), req.Identifier)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, login)
}

func (h *HTTPHandler) handleDoctorLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.doctors.Logout(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := h.doctors.Appointments(r.Context(), mux.Vars(r)["id"], listQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appts)
}

func (h *HTTPHandler) handleBook(w http.ResponseWriter, r *http.Request) {
	var form BookingForm
	if !decode(w, r, &form) {
		return
	}
	appt, err := h.doctors.BookAppointment(r.Context(), mux.Vars(r)["id"], form)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (h *HTTPHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	profile, err := h.doctors.PatientProfile(r.Context(), vars["id"], vars["ref"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *HTTPHandler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	appt, err := h.doctors.CheckIn(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *HTTPHandler) handleComplete(w http.ResponseWriter, r *http.Request) {
	appt, err := h.doctors.Complete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func listQuery(r *http.Request) ListQuery {
	q := r.URL.Query()
	return ListQuery{Search: q.Get("q"), Status: q.Get("status")}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.Log.WithError(err).WithField("path", r.URL.Path).Warn("invalid request payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Warn("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case IsValidationError(err), errors.Is(err, records.ErrInvalidRecord):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, records.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, records.ErrSlotTaken),
		errors.Is(err, records.ErrInvalidTransition),
		errors.Is(err, records.ErrIDCollision),
		errors.Is(err, ErrAnalysisCancelled):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrAnalysisInProgress):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, analysis.ErrAnalysis):
		http.Error(w, "failed to process report, please try again", http.StatusBadGateway)
	case errors.Is(err, kvstore.ErrPersistence),
		errors.Is(err, kvstore.ErrCorrupt),
		errors.Is(err, records.ErrCorruptRecord):
		logger.Log.WithError(err).Error("storage unavailable")
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
	default:
		logger.Log.WithError(err).Error("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
