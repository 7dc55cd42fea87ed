package portal

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/medisetu/platform/pkg/common/kafka"
	"github.com/medisetu/platform/pkg/common/models"
	"github.com/medisetu/platform/pkg/observability/metrics"
	"github.com/medisetu/platform/pkg/records"
	"github.com/medisetu/platform/pkg/session"
)

const (
	tempPatientPrefix = "P_TEMP_"
	unknownPatient    = "Patient"
	noteDateLayout    = "1/2/2006, 3:04:05 PM"
)

type BookingForm struct {
	PatientName string `json:"patientName"`
	Phone       string `json:"phone"`
	Age         string `json:"age"`
	Gender      string `json:"gender"`
	Date        string `json:"date"`
	Slot        string `json:"slot"`
	Reason      string `json:"reason"`
}

type NoteForm struct {
	Complaint string        `json:"complaint"`
	NoteText  string        `json:"noteText"`
	Vitals    models.Vitals `json:"vitals"`
}

// PatientProfile is what a doctor sees when opening a patient. Temporary
// profiles are synthesised from an appointment and have no stored patient.
type PatientProfile struct {
	Patient   models.Patient         `json:"patient"`
	Temporary bool                   `json:"temporary"`
	Notes     []models.PatientNote   `json:"notes"`
	Reports   []models.MedicalReport `json:"reports"`
}

type DoctorService struct {
	repos    *records.Repositories
	sessions *session.Resolver
	events   kafka.Publisher
	now      func() time.Time
}

func NewDoctorService(repos *records.Repositories, sessions *session.Resolver, events kafka.Publisher) *DoctorService {
	return &DoctorService{repos: repos, sessions: sessions, events: events, now: time.Now}
}

func (s *DoctorService) Login(ctx context.Context, identifier string) (session.DoctorLogin, error) {
	if strings.TrimSpace(identifier) == "" {
		return session.DoctorLogin{}, invalidf("please enter doctor id or email")
	}
	return s.sessions.DoctorLoginStrict(ctx, identifier)
}

func (s *DoctorService) Logout(ctx context.Context) error {
	return s.sessions.LogoutDoctor(ctx)
}

func (s *DoctorService) Appointments(ctx context.Context, doctorID string, q ListQuery) ([]models.Appointment, error) {
	appts, err := s.repos.Appointments.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return FilterAppointments(appts, q), nil
}

// BookAppointment schedules a visit unless the doctor already has one at the
// same date and slot.
func (s *DoctorService) BookAppointment(ctx context.Context, doctorID string, form BookingForm) (models.Appointment, error) {
	appt, err := s.book(ctx, doctorID, form)
	switch {
	case err == nil:
		metrics.ObserveBooking(metrics.ResultOK)
	case errors.Is(err, records.ErrSlotTaken):
		metrics.ObserveBooking(metrics.ResultConflict)
		return models.Appointment{}, err
	case IsValidationError(err):
		metrics.ObserveBooking(metrics.ResultInvalid)
		return models.Appointment{}, err
	default:
		metrics.ObserveBooking(metrics.ResultFailed)
		return models.Appointment{}, err
	}

	publish(ctx, s.events, kafka.EventAppointmentBooked, map[string]interface{}{
		"appointment_id": appt.ID,
		"doctor_id":      appt.DoctorID,
		"date":           appt.Date,
		"slot":           appt.Slot,
	})
	return appt, nil
}

func (s *DoctorService) book(ctx context.Context, doctorID string, form BookingForm) (models.Appointment, error) {
	if strings.TrimSpace(doctorID) == "" {
		return models.Appointment{}, invalid(errMissingDoctor)
	}
	if strings.TrimSpace(form.PatientName) == "" {
		return models.Appointment{}, invalid(errMissingPatient)
	}
	if strings.TrimSpace(form.Date) == "" || strings.TrimSpace(form.Slot) == "" {
		return models.Appointment{}, invalid(errMissingSlot)
	}
	doctor, err := s.repos.Doctors.FindByIDOrEmail(ctx, doctorID)
	if err != nil {
		return models.Appointment{}, err
	}

	return s.repos.Appointments.CreateIfSlotFree(ctx, records.AppointmentInput{
		DoctorID:    doctor.ID,
		PatientName: form.PatientName,
		Phone:       form.Phone,
		Age:         form.Age,
		Gender:      form.Gender,
		Date:        form.Date,
		Slot:        form.Slot,
		Reason:      form.Reason,
		Status:      models.AppointmentScheduled,
	})
}

func (s *DoctorService) CheckIn(ctx context.Context, appointmentID string) (models.Appointment, error) {
	return s.transition(ctx, appointmentID, models.AppointmentCheckedIn, models.AppointmentScheduled)
}

// Complete marks a scheduled or checked-in appointment as done.
func (s *DoctorService) Complete(ctx context.Context, appointmentID string) (models.Appointment, error) {
	return s.transition(ctx, appointmentID, models.AppointmentCompleted, models.AppointmentScheduled, models.AppointmentCheckedIn)
}

func (s *DoctorService) transition(ctx context.Context, id string, to models.AppointmentStatus, from ...models.AppointmentStatus) (models.Appointment, error) {
	appt, err := s.repos.Appointments.UpdateStatus(ctx, id, to, from...)
	if err != nil {
		return models.Appointment{}, err
	}
	publish(ctx, s.events, kafka.EventAppointmentStatusChange, map[string]interface{}{
		"appointment_id": appt.ID,
		"doctor_id":      appt.DoctorID,
		"status":         string(appt.Status),
	})
	return appt, nil
}

// PatientProfile resolves ref as a stored patient id or exact name. Failing
// that, a temporary profile is built from the doctor's appointment booked
// under that name.
func (s *DoctorService) PatientProfile(ctx context.Context, doctorID, ref string) (PatientProfile, error) {
	profile := PatientProfile{}

	patient, err := s.repos.Patients.FindByIDOrName(ctx, ref)
	switch {
	case err == nil:
		profile.Patient = patient
	case errors.Is(err, records.ErrNotFound):
		appts, apptErr := s.repos.Appointments.ListByDoctor(ctx, doctorID)
		if apptErr != nil {
			return PatientProfile{}, apptErr
		}
		found := false
		for _, a := range appts {
			if a.PatientName == ref {
				profile.Patient = models.Patient{
					ID:     tempPatientPrefix + a.ID,
					Name:   a.PatientName,
					Phone:  a.Phone,
					Age:    a.Age,
					Gender: a.Gender,
				}
				profile.Temporary = true
				found = true
				break
			}
		}
		if !found {
			return s.danglingProfile(ctx, ref)
		}
	default:
		return PatientProfile{}, err
	}

	return s.withHistory(ctx, profile)
}

// danglingProfile covers notes filed under an id with no patient record,
// such as a temporary profile whose appointment is gone.
func (s *DoctorService) danglingProfile(ctx context.Context, ref string) (PatientProfile, error) {
	notes, err := s.repos.Notes.ListByPatient(ctx, ref)
	if err != nil {
		return PatientProfile{}, err
	}
	if len(notes) == 0 {
		return PatientProfile{}, records.ErrNotFound
	}
	return s.withHistory(ctx, PatientProfile{
		Patient:   models.Patient{ID: ref, Name: unknownPatient},
		Temporary: true,
	})
}

func (s *DoctorService) withHistory(ctx context.Context, profile PatientProfile) (PatientProfile, error) {
	notes, err := s.repos.Notes.ListByPatient(ctx, profile.Patient.ID)
	if err != nil {
		return PatientProfile{}, err
	}
	reports, err := s.repos.Reports.ListByPatient(ctx, profile.Patient.ID)
	if err != nil {
		return PatientProfile{}, err
	}
	profile.Notes = notes
	profile.Reports = reports
	return profile, nil
}

func (s *DoctorService) Notes(ctx context.Context, patientID string) ([]models.PatientNote, error) {
	return s.repos.Notes.ListByPatient(ctx, patientID)
}

// SaveNote appends a consultation note stamped with the local time.
func (s *DoctorService) SaveNote(ctx context.Context, patientID string, form NoteForm) (models.PatientNote, error) {
	if strings.TrimSpace(patientID) == "" {
		return models.PatientNote{}, invalidf("missing patient id")
	}
	if strings.TrimSpace(form.Complaint) == "" && strings.TrimSpace(form.NoteText) == "" {
		return models.PatientNote{}, invalid(errMissingNoteText)
	}

	note, err := s.repos.Notes.Create(ctx, records.NoteInput{
		PatientID: patientID,
		Date:      s.now().Format(noteDateLayout),
		Complaint: form.Complaint,
		NoteText:  form.NoteText,
		Vitals:    form.Vitals,
	})
	if err != nil {
		return models.PatientNote{}, err
	}

	publish(ctx, s.events, kafka.EventNoteSaved, map[string]interface{}{
		"note_id":    note.ID,
		"patient_id": note.PatientID,
	})
	return note, nil
}
