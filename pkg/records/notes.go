package records

import (
	"context"

	"github.com/medisetu/platform/pkg/common/models"
	"github.com/medisetu/platform/pkg/idgen"
)

type NoteInput struct {
	PatientID string
	Date      string
	Complaint string
	NoteText  string
	Vitals    models.Vitals
}

// NoteRepository is append-only.
type NoteRepository struct {
	col *Collection[models.PatientNote]
	gen idgen.Generator
}

func (r *NoteRepository) List(ctx context.Context) ([]models.PatientNote, error) {
	return r.col.List(ctx)
}

func (r *NoteRepository) ListByPatient(ctx context.Context, patientID string) ([]models.PatientNote, error) {
	return r.col.Filter(ctx, func(n models.PatientNote) bool {
		return n.PatientID == patientID
	})
}

func (r *NoteRepository) Create(ctx context.Context, input NoteInput) (models.PatientNote, error) {
	var created models.PatientNote
	err := r.col.Mutate(ctx, func(items []models.PatientNote) ([]models.PatientNote, error) {
		id, err := uniqueID(r.gen, models.PrefixNote, items, func(n models.PatientNote) string { return n.ID })
		if err != nil {
			return nil, err
		}
		created = models.PatientNote{
			ID:        id,
			PatientID: input.PatientID,
			Date:      input.Date,
			Complaint: input.Complaint,
			NoteText:  input.NoteText,
			Vitals:    input.Vitals,
		}
		return append(items, created), nil
	})
	if err != nil {
		return models.PatientNote{}, err
	}
	return created, nil
}
