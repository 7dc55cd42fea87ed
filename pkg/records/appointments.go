package records

import (
	"context"
	"fmt"
	"time"

	"github.com/medisetu/platform/pkg/common/models"
	"github.com/medisetu/platform/pkg/idgen"
)

// createdAtLayout matches JavaScript's Date.toISOString output.
const createdAtLayout = "2006-01-02T15:04:05.000Z"

type AppointmentInput struct {
	DoctorID    string
	PatientName string
	Phone       string
	Age         string
	Gender      string
	Date        string
	Slot        string
	Reason      string
	Status      models.AppointmentStatus
}

type AppointmentRepository struct {
	col *Collection[models.Appointment]
	gen idgen.Generator
	now func() time.Time
}

func (r *AppointmentRepository) List(ctx context.Context) ([]models.Appointment, error) {
	return r.col.List(ctx)
}

func (r *AppointmentRepository) ListByDoctor(ctx context.Context, doctorID string) ([]models.Appointment, error) {
	return r.col.Filter(ctx, func(a models.Appointment) bool {
		return a.DoctorID == doctorID
	})
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (models.Appointment, error) {
	return r.col.Find(ctx, func(a models.Appointment) bool {
		return a.ID == id
	})
}

// Create appends an appointment without any slot check.
func (r *AppointmentRepository) Create(ctx context.Context, input AppointmentInput) (models.Appointment, error) {
	return r.create(ctx, input, false)
}

// CreateIfSlotFree rejects the booking with ErrSlotTaken when the doctor
// already holds an appointment at the same date and slot. The scan and the
// append happen under the same collection lock.
func (r *AppointmentRepository) CreateIfSlotFree(ctx context.Context, input AppointmentInput) (models.Appointment, error) {
	return r.create(ctx, input, true)
}

func (r *AppointmentRepository) create(ctx context.Context, input AppointmentInput, checkSlot bool) (models.Appointment, error) {
	if input.Status == "" {
		input.Status = models.AppointmentScheduled
	}
	if !input.Status.Valid() {
		return models.Appointment{}, fmt.Errorf("%w: invalid appointment status %q", ErrInvalidRecord, input.Status)
	}

	var created models.Appointment
	err := r.col.Mutate(ctx, func(items []models.Appointment) ([]models.Appointment, error) {
		if checkSlot {
			for _, a := range items {
				if a.DoctorID == input.DoctorID && a.Date == input.Date && a.Slot == input.Slot {
					return nil, ErrSlotTaken
				}
			}
		}
		id, err := uniqueID(r.gen, models.PrefixAppointment, items, func(a models.Appointment) string { return a.ID })
		if err != nil {
			return nil, err
		}
		created = models.Appointment{
			ID:          id,
			DoctorID:    input.DoctorID,
			PatientName: input.PatientName,
			Phone:       input.Phone,
			Age:         input.Age,
			Gender:      input.Gender,
			Date:        input.Date,
			Slot:        input.Slot,
			Reason:      input.Reason,
			Status:      input.Status,
			CreatedAt:   r.now().UTC().Format(createdAtLayout),
		}
		return append(items, created), nil
	})
	if err != nil {
		return models.Appointment{}, err
	}
	return created, nil
}

// UpdateStatus sets the status of one appointment in place. When from is
// non-empty the current status must be one of them.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus, from ...models.AppointmentStatus) (models.Appointment, error) {
	if !status.Valid() {
		return models.Appointment{}, fmt.Errorf("%w: invalid appointment status %q", ErrInvalidRecord, status)
	}

	var updated models.Appointment
	err := r.col.Mutate(ctx, func(items []models.Appointment) ([]models.Appointment, error) {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			if len(from) > 0 && !containsStatus(from, items[i].Status) {
				return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, items[i].Status, status)
			}
			items[i].Status = status
			updated = items[i]
			return items, nil
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return models.Appointment{}, err
	}
	return updated, nil
}

func containsStatus(list []models.AppointmentStatus, s models.AppointmentStatus) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}
