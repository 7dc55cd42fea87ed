package records

import (
	"context"

	"github.com/medisetu/platform/pkg/common/models"
	"github.com/medisetu/platform/pkg/idgen"
)

type PatientInput struct {
	Name   string
	Phone  string
	Age    string
	Gender string
}

type PatientRepository struct {
	col *Collection[models.Patient]
	gen idgen.Generator
}

func (r *PatientRepository) List(ctx context.Context) ([]models.Patient, error) {
	return r.col.List(ctx)
}

// FindByIDOrPhone is the patient login lookup.
func (r *PatientRepository) FindByIDOrPhone(ctx context.Context, query string) (models.Patient, error) {
	return r.col.Find(ctx, func(p models.Patient) bool {
		return p.ID == query || p.Phone == query
	})
}

// FindByIDOrName is the lookup doctors use when opening a profile from an
// appointment, which only carries the patient's name.
func (r *PatientRepository) FindByIDOrName(ctx context.Context, query string) (models.Patient, error) {
	return r.col.Find(ctx, func(p models.Patient) bool {
		return p.ID == query || p.Name == query
	})
}

func (r *PatientRepository) Create(ctx context.Context, input PatientInput) (models.Patient, error) {
	var created models.Patient
	err := r.col.Mutate(ctx, func(items []models.Patient) ([]models.Patient, error) {
		id, err := uniqueID(r.gen, models.PrefixPatient, items, func(p models.Patient) string { return p.ID })
		if err != nil {
			return nil, err
		}
		created = models.Patient{
			ID:     id,
			Name:   input.Name,
			Phone:  input.Phone,
			Age:    input.Age,
			Gender: input.Gender,
		}
		return append(items, created), nil
	})
	if err != nil {
		return models.Patient{}, err
	}
	return created, nil
}
