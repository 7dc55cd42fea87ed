package records

import (
	"time"

	"github.com/medisetu/platform/pkg/common/models"
	"github.com/medisetu/platform/pkg/idgen"
	"github.com/medisetu/platform/pkg/kvstore"
)

// Repositories bundles one repository per entity over a shared store.
type Repositories struct {
	Patients     *PatientRepository
	Doctors      *DoctorRepository
	Reports      *ReportRepository
	Appointments *AppointmentRepository
	Notes        *NoteRepository
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for createdAt stamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func New(store *kvstore.Store, gen idgen.Generator, opts ...Option) *Repositories {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &Repositories{
		Patients: &PatientRepository{
			col: NewCollection[models.Patient](store, KeyPatients),
			gen: gen,
		},
		Doctors: &DoctorRepository{
			col: NewCollection[models.Doctor](store, KeyDoctors),
		},
		Reports: &ReportRepository{
			col: NewCollection[models.MedicalReport](store, KeyReports),
			gen: gen,
		},
		Appointments: &AppointmentRepository{
			col: NewCollection[models.Appointment](store, KeyAppointments),
			gen: gen,
			now: o.now,
		},
		Notes: &NoteRepository{
			col: NewCollection[models.PatientNote](store, KeyNotes),
			gen: gen,
		},
	}
}
