package records

import (
	"context"
	"fmt"

	"github.com/medisetu/platform/pkg/common/models"
	"github.com/medisetu/platform/pkg/idgen"
)

type ReportInput struct {
	PatientID     string
	Title         string
	Date          string
	Source        string
	Status        models.ReportStatus
	FileName      string
	FileURL       string
	ExtractedData *models.StructuredReport
}

type ReportRepository struct {
	col *Collection[models.MedicalReport]
	gen idgen.Generator
}

func (r *ReportRepository) List(ctx context.Context) ([]models.MedicalReport, error) {
	return r.col.List(ctx)
}

func (r *ReportRepository) ListByPatient(ctx context.Context, patientID string) ([]models.MedicalReport, error) {
	return r.col.Filter(ctx, func(rep models.MedicalReport) bool {
		return rep.PatientID == patientID
	})
}

func (r *ReportRepository) Get(ctx context.Context, id string) (models.MedicalReport, error) {
	return r.col.Find(ctx, func(rep models.MedicalReport) bool {
		return rep.ID == id
	})
}

// Upsert replaces the report with the same id in place, or appends it.
func (r *ReportRepository) Upsert(ctx context.Context, report models.MedicalReport) error {
	if err := report.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return r.col.Mutate(ctx, func(items []models.MedicalReport) ([]models.MedicalReport, error) {
		for i := range items {
			if items[i].ID == report.ID {
				items[i] = report
				return items, nil
			}
		}
		return append(items, report), nil
	})
}

func (r *ReportRepository) Create(ctx context.Context, input ReportInput) (models.MedicalReport, error) {
	if !input.Status.Valid() {
		return models.MedicalReport{}, fmt.Errorf("%w: invalid report status %q", ErrInvalidRecord, input.Status)
	}
	var created models.MedicalReport
	err := r.col.Mutate(ctx, func(items []models.MedicalReport) ([]models.MedicalReport, error) {
		id, err := uniqueID(r.gen, models.PrefixReport, items, func(rep models.MedicalReport) string { return rep.ID })
		if err != nil {
			return nil, err
		}
		created = models.MedicalReport{
			ID:            id,
			PatientID:     input.PatientID,
			Title:         input.Title,
			Date:          input.Date,
			Source:        input.Source,
			Status:        input.Status,
			FileName:      input.FileName,
			FileURL:       input.FileURL,
			ExtractedData: input.ExtractedData,
		}
		if err := created.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		return append(items, created), nil
	})
	if err != nil {
		return models.MedicalReport{}, err
	}
	return created, nil
}
