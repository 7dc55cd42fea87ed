// Package session keeps the "active" patient and doctor ids that let a
// restarted client pick up where it left off, and the two login flows that
// set them.
package session

import (
	"context"
	"errors"
	"strings"

	"github.com/medisetu/platform/pkg/common/logger"
	"github.com/medisetu/platform/pkg/common/models"
	"github.com/medisetu/platform/pkg/kvstore"
	"github.com/medisetu/platform/pkg/records"
)

const (
	KeyActivePatient = "medisetu_active_patient_id"
	KeyActiveDoctor  = "medisetu_active_doctor_id"
)

// Defaults for patients registered implicitly at login.
const (
	newPatientName   = "New Patient"
	newPatientAge    = "25"
	newPatientGender = "Not specified"
	unknownPhone     = "N/A"
)

var ErrEmptyIdentifier = errors.New("please enter patient id or phone number")

type State string

const (
	StateAnonymous State = "anonymous"
	StatePatient   State = "patient"
	StateDoctor    State = "doctor"
)

type Session struct {
	State        State                  `json:"state"`
	Patient      *models.Patient        `json:"patient,omitempty"`
	Reports      []models.MedicalReport `json:"reports,omitempty"`
	Doctor       *models.Doctor         `json:"doctor,omitempty"`
	Appointments []models.Appointment   `json:"appointments,omitempty"`
}

type PatientLogin struct {
	Patient    models.Patient         `json:"patient"`
	Reports    []models.MedicalReport `json:"reports"`
	Registered bool                   `json:"registered"`
}

type DoctorLogin struct {
	Doctor       models.Doctor        `json:"doctor"`
	Appointments []models.Appointment `json:"appointments"`
}

type Resolver struct {
	store *kvstore.Store
	repos *records.Repositories
}

func NewResolver(store *kvstore.Store, repos *records.Repositories) *Resolver {
	return &Resolver{store: store, repos: repos}
}

// PatientLoginOrRegister finds the patient by id or phone, creating one when
// nothing matches, and marks it active.
func (r *Resolver) PatientLoginOrRegister(ctx context.Context, identifier string) (PatientLogin, error) {
	if strings.TrimSpace(identifier) == "" {
		return PatientLogin{}, ErrEmptyIdentifier
	}

	registered := false
	patient, err := r.repos.Patients.FindByIDOrPhone(ctx, identifier)
	if errors.Is(err, records.ErrNotFound) {
		phone := identifier
		if strings.Contains(identifier, "@") {
			phone = unknownPhone
		}
		patient, err = r.repos.Patients.Create(ctx, records.PatientInput{
			Name:   newPatientName,
			Phone:  phone,
			Age:    newPatientAge,
			Gender: newPatientGender,
		})
		registered = err == nil
	}
	if err != nil {
		return PatientLogin{}, err
	}

	if err := r.store.SetString(ctx, KeyActivePatient, patient.ID); err != nil {
		return PatientLogin{}, err
	}

	reports, err := r.repos.Reports.ListByPatient(ctx, patient.ID)
	if err != nil {
		return PatientLogin{}, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"patient_id": patient.ID,
		"registered": registered,
	}).Info("Patient logged in")

	return PatientLogin{Patient: patient, Reports: reports, Registered: registered}, nil
}

// DoctorLoginStrict only admits doctors already in the store.
func (r *Resolver) DoctorLoginStrict(ctx context.Context, identifier string) (DoctorLogin, error) {
	doctor, err := r.repos.Doctors.FindByIDOrEmail(ctx, identifier)
	if err != nil {
		return DoctorLogin{}, err
	}

	if err := r.store.SetString(ctx, KeyActiveDoctor, doctor.ID); err != nil {
		return DoctorLogin{}, err
	}

	appointments, err := r.repos.Appointments.ListByDoctor(ctx, doctor.ID)
	if err != nil {
		return DoctorLogin{}, err
	}

	logger.Log.WithField("doctor_id", doctor.ID).Info("Doctor logged in")
	return DoctorLogin{Doctor: doctor, Appointments: appointments}, nil
}

func (r *Resolver) LogoutPatient(ctx context.Context) error {
	return r.store.Delete(ctx, KeyActivePatient)
}

func (r *Resolver) LogoutDoctor(ctx context.Context) error {
	return r.store.Delete(ctx, KeyActiveDoctor)
}

// Resolve restores the session from the active ids. A patient session wins
// over a doctor session. Ids that no longer resolve are ignored but left in
// the store.
func (r *Resolver) Resolve(ctx context.Context) (Session, error) {
	if s, ok, err := r.ResolvePatient(ctx); err != nil || ok {
		return s, err
	}
	if s, ok, err := r.ResolveDoctor(ctx); err != nil || ok {
		return s, err
	}
	return Session{State: StateAnonymous}, nil
}

func (r *Resolver) ResolvePatient(ctx context.Context) (Session, bool, error) {
	id, found, err := r.store.GetString(ctx, KeyActivePatient)
	if err != nil || !found {
		return Session{State: StateAnonymous}, false, err
	}

	patient, err := r.repos.Patients.FindByIDOrPhone(ctx, id)
	if errors.Is(err, records.ErrNotFound) {
		logger.Log.WithField("patient_id", id).Warn("stale patient session ignored")
		return Session{State: StateAnonymous}, false, nil
	}
	if err != nil {
		return Session{State: StateAnonymous}, false, err
	}

	reports, err := r.repos.Reports.ListByPatient(ctx, patient.ID)
	if err != nil {
		return Session{State: StateAnonymous}, false, err
	}
	return Session{State: StatePatient, Patient: &patient, Reports: reports}, true, nil
}

func (r *Resolver) ResolveDoctor(ctx context.Context) (Session, bool, error) {
	id, found, err := r.store.GetString(ctx, KeyActiveDoctor)
	if err != nil || !found {
		return Session{State: StateAnonymous}, false, err
	}

	doctor, err := r.repos.Doctors.FindByIDOrEmail(ctx, id)
	if errors.Is(err, records.ErrNotFound) {
		logger.Log.WithField("doctor_id", id).Warn("stale doctor session ignored")
		return Session{State: StateAnonymous}, false, nil
	}
	if err != nil {
		return Session{State: StateAnonymous}, false, err
	}

	appointments, err := r.repos.Appointments.ListByDoctor(ctx, doctor.ID)
	if err != nil {
		return Session{State: StateAnonymous}, false, err
	}
	return Session{State: StateDoctor, Doctor: &doctor, Appointments: appointments}, true, nil
}
