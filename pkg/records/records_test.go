package records

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/medisetu/platform/pkg/common/models"
	"github.com/medisetu/platform/pkg/idgen"
	"github.com/medisetu/platform/pkg/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedGenerator struct{ id string }

func (f fixedGenerator) NewID(string) string { return f.id }

var testNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func newTestRepos(t *testing.T) (*Repositories, *kvstore.Store) {
	t.Helper()
	store := kvstore.New(kvstore.NewMemoryBackend())
	repos := New(store, idgen.NewMonotonic(), WithClock(func() time.Time { return testNow }))
	return repos, store
}

func bookingInput(doctorID, date, slot string) AppointmentInput {
	return AppointmentInput{
		DoctorID:    doctorID,
		PatientName: "Asha Verma",
		Phone:       "9876543210",
		Age:         "34",
		Gender:      "Female",
		Date:        date,
		Slot:        slot,
		Reason:      "Follow-up",
	}
}

func TestCreatedIDsAreUniqueAcrossCollection(t *testing.T) {
	ctx := context.Background()
	repos, _ := newTestRepos(t)

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		p, err := repos.Patients.Create(ctx, PatientInput{Name: "New Patient", Phone: "N/A"})
		require.NoError(t, err)
		require.NotEmpty(t, p.ID)
		_, dup := seen[p.ID]
		require.False(t, dup, "duplicate id %s", p.ID)
		seen[p.ID] = struct{}{}
	}

	for i := 0; i < 20; i++ {
		n, err := repos.Notes.Create(ctx, NoteInput{PatientID: "P1000", Complaint: "cough"})
		require.NoError(t, err)
		require.NotEmpty(t, n.ID)
		_, dup := seen[n.ID]
		require.False(t, dup)
		seen[n.ID] = struct{}{}
	}
}

func TestLegacyPatientIDsAreRedrawnOnCollision(t *testing.T) {
	ctx := context.Background()
	store := kvstore.New(kvstore.NewMemoryBackend())
	repos := New(store, idgen.NewLegacy(7))

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		p, err := repos.Patients.Create(ctx, PatientInput{Name: "P"})
		require.NoError(t, err)
		_, dup := seen[p.ID]
		require.False(t, dup, "duplicate id %s", p.ID)
		seen[p.ID] = struct{}{}
	}
}

func TestCreateFailsWhenGeneratorKeepsColliding(t *testing.T) {
	ctx := context.Background()
	store := kvstore.New(kvstore.NewMemoryBackend())
	repos := New(store, fixedGenerator{id: "NTE1"})

	_, err := repos.Notes.Create(ctx, NoteInput{PatientID: "P1"})
	require.NoError(t, err)

	_, err = repos.Notes.Create(ctx, NoteInput{PatientID: "P1"})
	assert.ErrorIs(t, err, ErrIDCollision)

	notes, err := repos.Notes.List(ctx)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestPatientLookupByIDOrPhone(t *testing.T) {
	ctx := context.Background()
	repos, _ := newTestRepos(t)

	created, err := repos.Patients.Create(ctx, PatientInput{Name: "Ravi", Phone: "9000000001", Age: "40", Gender: "Male"})
	require.NoError(t, err)

	byID, err := repos.Patients.FindByIDOrPhone(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, byID)

	byPhone, err := repos.Patients.FindByIDOrPhone(ctx, "9000000001")
	require.NoError(t, err)
	assert.Equal(t, created, byPhone)

	_, err = repos.Patients.FindByIDOrPhone(ctx, "someone-else")
	assert.ErrorIs(t, err, ErrNotFound)

	byName, err := repos.Patients.FindByIDOrName(ctx, "Ravi")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)
}

func TestDoctorLookupByIDOrEmail(t *testing.T) {
	ctx := context.Background()
	repos, store := newTestRepos(t)

	require.NoError(t, store.Set(ctx, KeyDoctors, []json.RawMessage{
		json.RawMessage(`{"id":"DOC001","name":"Dr. Sameer Sharma","email":"sameer@medisetu.com"}`),
	}))

	byEmail, err := repos.Doctors.FindByIDOrEmail(ctx, "sameer@medisetu.com")
	require.NoError(t, err)
	assert.Equal(t, "DOC001", byEmail.ID)

	byID, err := repos.Doctors.FindByIDOrEmail(ctx, "DOC001")
	require.NoError(t, err)
	assert.Equal(t, byEmail, byID)

	_, err = repos.Doctors.FindByIDOrEmail(ctx, "DOC999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookingConflictLeavesCollectionUntouched(t *testing.T) {
	ctx := context.Background()
	repos, _ := newTestRepos(t)

	_, err := repos.Appointments.CreateIfSlotFree(ctx, bookingInput("D1", "2024-03-15", "10:00 AM"))
	require.NoError(t, err)

	before, err := repos.Appointments.List(ctx)
	require.NoError(t, err)

	_, err = repos.Appointments.CreateIfSlotFree(ctx, bookingInput("D1", "2024-03-15", "10:00 AM"))
	assert.ErrorIs(t, err, ErrSlotTaken)

	after, err := repos.Appointments.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, after, 1)
}

func TestBookingSameSlotForOtherDoctorOrDateIsAllowed(t *testing.T) {
	ctx := context.Background()
	repos, _ := newTestRepos(t)

	_, err := repos.Appointments.CreateIfSlotFree(ctx, bookingInput("D1", "2024-03-15", "10:00 AM"))
	require.NoError(t, err)
	_, err = repos.Appointments.CreateIfSlotFree(ctx, bookingInput("D2", "2024-03-15", "10:00 AM"))
	require.NoError(t, err)
	_, err = repos.Appointments.CreateIfSlotFree(ctx, bookingInput("D1", "2024-03-16", "10:00 AM"))
	require.NoError(t, err)
	_, err = repos.Appointments.CreateIfSlotFree(ctx, bookingInput("D1", "2024-03-15", "11:00 AM"))
	require.NoError(t, err)

	d1, err := repos.Appointments.ListByDoctor(ctx, "D1")
	require.NoError(t, err)
	assert.Len(t, d1, 3)
}

func TestAppointmentCreateAndComplete(t *testing.T) {
	ctx := context.Background()
	repos, _ := newTestRepos(t)

	created, err := repos.Appointments.Create(ctx, bookingInput("D1", "2024-03-15", "10:00 AM"))
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentScheduled, created.Status)
	assert.Equal(t, "2024-03-15T09:30:00.000Z", created.CreatedAt)

	completed, err := repos.Appointments.UpdateStatus(ctx, created.ID, models.AppointmentCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentCompleted, completed.Status)

	expected := created
	expected.Status = models.AppointmentCompleted
	assert.Equal(t, expected, completed)

	stored, err := repos.Appointments.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, expected, stored)
}

func TestAppointmentUpdateStatusGuards(t *testing.T) {
	ctx := context.Background()
	repos, _ := newTestRepos(t)

	_, err := repos.Appointments.UpdateStatus(ctx, "APT-missing", models.AppointmentCompleted)
	assert.ErrorIs(t, err, ErrNotFound)

	created, err := repos.Appointments.Create(ctx, bookingInput("D1", "2024-03-15", "10:00 AM"))
	require.NoError(t, err)

	_, err = repos.Appointments.UpdateStatus(ctx, created.ID, models.AppointmentCheckedIn, models.AppointmentCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = repos.Appointments.UpdateStatus(ctx, created.ID, "Cancelled")
	assert.ErrorIs(t, err, ErrInvalidRecord)

	stored, err := repos.Appointments.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentScheduled, stored.Status)
}

func TestReportUpsertReplacesInPlaceOrAppends(t *testing.T) {
	ctx := context.Background()
	repos, _ := newTestRepos(t)

	first := models.MedicalReport{ID: "REP101", PatientID: "P100", Title: "CBC", Status: models.ReportNormal}
	second := models.MedicalReport{ID: "REP102", PatientID: "P100", Title: "LFT", Status: models.ReportAbnormal}
	require.NoError(t, repos.Reports.Upsert(ctx, first))
	require.NoError(t, repos.Reports.Upsert(ctx, second))

	replacement := first
	replacement.Status = models.ReportPending
	replacement.Title = "CBC (repeat)"
	require.NoError(t, repos.Reports.Upsert(ctx, replacement))

	all, err := repos.Reports.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, replacement, all[0])
	assert.Equal(t, second, all[1])

	third := models.MedicalReport{ID: "REP103", PatientID: "P200", Title: "Lipid", Status: models.ReportNormal}
	require.NoError(t, repos.Reports.Upsert(ctx, third))

	all, err = repos.Reports.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, third, all[2])

	mine, err := repos.Reports.ListByPatient(ctx, "P100")
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestReportUpsertRejectsInvalidStatus(t *testing.T) {
	ctx := context.Background()
	repos, _ := newTestRepos(t)

	err := repos.Reports.Upsert(ctx, models.MedicalReport{ID: "REP1", Status: "Unknown"})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = repos.Reports.Create(ctx, ReportInput{PatientID: "P1", Status: ""})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestRoundTripPreservesEveryField(t *testing.T) {
	ctx := context.Background()
	repos, _ := newTestRepos(t)

	report, err := repos.Reports.Create(ctx, ReportInput{
		PatientID: "P100",
		Title:     "Thyroid Profile",
		Date:      "2024-04-01",
		Source:    "Apollo Diagnostics",
		Status:    models.ReportAbnormal,
		FileName:  "thyroid.pdf",
		FileURL:   "https://files.example/thyroid.pdf",
		ExtractedData: &models.StructuredReport{
			ReportMetadata: models.ReportMetadata{ReportType: "Thyroid Profile", Date: "2024-04-01", LabName: "Apollo"},
			TestValues: []models.TestValue{
				{TestName: "TSH", Value: "6.2", Unit: "mIU/L", NormalRange: "0.4-4.0", Flag: models.FlagHigh},
			},
			Summary:          "TSH is above range.",
			WhatIsWrong:      "May indicate an underactive thyroid.",
			AbnormalFindings: []string{"TSH high"},
		},
	})
	require.NoError(t, err)

	note, err := repos.Notes.Create(ctx, NoteInput{
		PatientID: "P100",
		Date:      "2024-04-02 10:15:00",
		Complaint: "Fatigue",
		NoteText:  "Repeat TSH in 6 weeks",
		Vitals:    models.Vitals{BP: "120/80", Pulse: "72", Temperature: "98.6"},
	})
	require.NoError(t, err)

	appt, err := repos.Appointments.Create(ctx, bookingInput("DOC001", "2024-04-05", "09:00 AM"))
	require.NoError(t, err)

	reports, err := repos.Reports.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.MedicalReport{report}, reports)

	notes, err := repos.Notes.ListByPatient(ctx, "P100")
	require.NoError(t, err)
	assert.Equal(t, []models.PatientNote{note}, notes)

	appts, err := repos.Appointments.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Appointment{appt}, appts)
}

func TestCorruptRecordFailsFast(t *testing.T) {
	ctx := context.Background()
	repos, store := newTestRepos(t)

	require.NoError(t, store.Set(ctx, KeyAppointments, []json.RawMessage{
		json.RawMessage(`{"id":"APT1","status":"Scheduled"}`),
		json.RawMessage(`{"doctorId":"D1","status":"Scheduled"}`),
	}))
	_, err := repos.Appointments.List(ctx)
	assert.ErrorIs(t, err, ErrCorruptRecord)

	require.NoError(t, store.Set(ctx, KeyReports, []json.RawMessage{json.RawMessage(`"not an object"`)}))
	_, err = repos.Reports.List(ctx)
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestPersistenceFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	store := kvstore.New(brokenBackend{})
	repos := New(store, idgen.UUID{})

	_, err := repos.Patients.Create(ctx, PatientInput{Name: "x"})
	assert.ErrorIs(t, err, kvstore.ErrPersistence)
}

type brokenBackend struct{}

func (brokenBackend) Read(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (brokenBackend) Write(context.Context, string, []byte) error {
	return assert.AnError
}
func (brokenBackend) Remove(context.Context, string) error { return nil }
