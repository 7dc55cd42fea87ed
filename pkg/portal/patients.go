package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medisetu/platform/pkg/analysis"
	"github.com/medisetu/platform/pkg/common/kafka"
	"github.com/medisetu/platform/pkg/common/logger"
	"github.com/medisetu/platform/pkg/common/middleware"
	"github.com/medisetu/platform/pkg/common/models"
	"github.com/medisetu/platform/pkg/observability/metrics"
	"github.com/medisetu/platform/pkg/records"
	"github.com/medisetu/platform/pkg/session"
)

const (
	extractedTitle    = "Extracted Report"
	extractedSource   = "Extracted"
	extractedFileName = "extracted_analysis.pdf"
	dateLayout        = "2006-01-02"
)

type analysisRun struct {
	token     string
	cancel    context.CancelFunc
	committed bool
}

type PatientService struct {
	repos    *records.Repositories
	sessions *session.Resolver
	analyzer analysis.Analyzer
	events   kafka.Publisher
	timeout  time.Duration
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[string]*analysisRun
}

func NewPatientService(repos *records.Repositories, sessions *session.Resolver, analyzer analysis.Analyzer, events kafka.Publisher, timeout time.Duration) *PatientService {
	return &PatientService{
		repos:    repos,
		sessions: sessions,
		analyzer: analyzer,
		events:   events,
		timeout:  timeout,
		now:      time.Now,
		inFlight: make(map[string]*analysisRun),
	}
}

func (s *PatientService) Login(ctx context.Context, identifier string) (session.PatientLogin, error) {
	login, err := s.sessions.PatientLoginOrRegister(ctx, identifier)
	if errors.Is(err, session.ErrEmptyIdentifier) {
		return login, invalid(err)
	}
	if err != nil {
		return login, err
	}
	if login.Registered {
		publish(ctx, s.events, kafka.EventPatientRegistered, map[string]interface{}{
			"patient_id": login.Patient.ID,
		})
	}
	return login, nil
}

func (s *PatientService) Logout(ctx context.Context) error {
	return s.sessions.LogoutPatient(ctx)
}

func (s *PatientService) Reports(ctx context.Context, patientID string, q ListQuery) ([]models.MedicalReport, error) {
	reports, err := s.repos.Reports.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return FilterReports(reports, q), nil
}

func (s *PatientService) Report(ctx context.Context, id string) (models.MedicalReport, error) {
	return s.repos.Reports.Get(ctx, id)
}

// SaveReport inserts or replaces a report by id.
func (s *PatientService) SaveReport(ctx context.Context, report models.MedicalReport) error {
	if err := s.repos.Reports.Upsert(ctx, report); err != nil {
		if errors.Is(err, records.ErrInvalidRecord) {
			return invalid(err)
		}
		return err
	}
	publish(ctx, s.events, kafka.EventReportSaved, map[string]interface{}{
		"report_id":  report.ID,
		"patient_id": report.PatientID,
		"status":     string(report.Status),
	})
	return nil
}

// AnalyzeAndSave sends pasted report text to the analyzer and stores the
// structured result as a new report. One analysis runs per patient at a time;
// a run cancelled before it commits saves nothing.
func (s *PatientService) AnalyzeAndSave(ctx context.Context, patientID, reportText string) (models.MedicalReport, error) {
	if strings.TrimSpace(reportText) == "" {
		return models.MedicalReport{}, invalid(errEmptyReportText)
	}
	patient, err := s.repos.Patients.FindByIDOrPhone(ctx, patientID)
	if err != nil {
		return models.MedicalReport{}, err
	}

	runCtx, token, err := s.begin(ctx, patient.ID)
	if err != nil {
		metrics.ObserveAnalysis(metrics.ResultBusy, 0)
		return models.MedicalReport{}, err
	}
	defer s.finish(patient.ID, token)

	log := logger.Log.WithFields(map[string]interface{}{
		"patient_id": patient.ID,
		"request_id": middleware.RequestID(ctx),
	})

	start := time.Now()
	structured, err := s.analyzer.AnalyzeReport(runCtx, reportText)
	took := time.Since(start)
	if !s.commit(patient.ID, token) {
		metrics.ObserveAnalysis(metrics.ResultCancelled, took)
		log.Info("Cancelled report analysis discarded")
		return models.MedicalReport{}, ErrAnalysisCancelled
	}
	if err != nil {
		metrics.ObserveAnalysis(metrics.ResultFailed, took)
		log.WithError(err).Warn("Report analysis failed")
		if errors.Is(err, analysis.ErrAnalysis) {
			return models.MedicalReport{}, err
		}
		return models.MedicalReport{}, fmt.Errorf("%w: %v", analysis.ErrAnalysis, err)
	}

	report, err := s.repos.Reports.Create(ctx, reportFromAnalysis(patient.ID, structured, s.now()))
	if err != nil {
		metrics.ObserveAnalysis(metrics.ResultFailed, took)
		return models.MedicalReport{}, err
	}
	metrics.ObserveAnalysis(metrics.ResultOK, took)

	publish(ctx, s.events, kafka.EventReportAnalyzed, map[string]interface{}{
		"report_id":  report.ID,
		"patient_id": report.PatientID,
		"status":     string(report.Status),
		"findings":   len(structured.AbnormalFindings),
	})
	return report, nil
}

// CancelAnalysis drops the patient's in-flight analysis. The patient is
// looked up by id or phone, like AnalyzeAndSave. It reports false when
// nothing is running or the run has already committed its result.
func (s *PatientService) CancelAnalysis(ctx context.Context, patientID string) (bool, error) {
	patient, err := s.repos.Patients.FindByIDOrPhone(ctx, patientID)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.inFlight[patient.ID]
	if !ok || run.committed {
		return false, nil
	}
	run.cancel()
	delete(s.inFlight, patient.ID)
	return true, nil
}

func (s *PatientService) begin(ctx context.Context, patientID string) (context.Context, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[patientID]; busy {
		return nil, "", ErrAnalysisInProgress
	}
	token := uuid.New().String()
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	s.inFlight[patientID] = &analysisRun{token: token, cancel: cancel}
	return runCtx, token, nil
}

// commit marks the run as past the point of cancellation. It fails when the
// run was cancelled or replaced.
func (s *PatientService) commit(patientID, token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.inFlight[patientID]
	if !ok || run.token != token {
		return false
	}
	run.committed = true
	return true
}

func (s *PatientService) finish(patientID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run, ok := s.inFlight[patientID]; ok && run.token == token {
		run.cancel()
		delete(s.inFlight, patientID)
	}
}

func reportFromAnalysis(patientID string, data *models.StructuredReport, now time.Time) records.ReportInput {
	input := records.ReportInput{
		PatientID:     patientID,
		Title:         data.ReportMetadata.ReportType,
		Date:          data.ReportMetadata.Date,
		Source:        data.ReportMetadata.LabName,
		Status:        models.ReportNormal,
		FileName:      extractedFileName,
		ExtractedData: data,
	}
	if input.Title == "" {
		input.Title = extractedTitle
	}
	if input.Date == "" {
		input.Date = now.UTC().Format(dateLayout)
	}
	if input.Source == "" {
		input.Source = extractedSource
	}
	if len(data.AbnormalFindings) > 0 {
		input.Status = models.ReportAbnormal
	}
	return input
}

func publish(ctx context.Context, events kafka.Publisher, eventType string, data map[string]interface{}) {
	if events == nil {
		return
	}
	if err := events.Publish(ctx, eventType, data); err != nil {
		metrics.ObserveDroppedEvent(eventType)
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("domain event dropped")
	}
}
