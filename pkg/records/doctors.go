package records

import (
	"context"

	"github.com/medisetu/platform/pkg/common/models"
)

// DoctorRepository is read-only; doctors only enter the store through seeding.
type DoctorRepository struct {
	col *Collection[models.Doctor]
}

func (r *DoctorRepository) List(ctx context.Context) ([]models.Doctor, error) {
	return r.col.List(ctx)
}

func (r *DoctorRepository) FindByIDOrEmail(ctx context.Context, query string) (models.Doctor, error) {
	return r.col.Find(ctx, func(d models.Doctor) bool {
		return d.ID == query || d.Email == query
	})
}
