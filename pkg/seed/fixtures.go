package seed

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/medisetu/platform/pkg/common/models"
	"gopkg.in/yaml.v3"
)

type Fixtures struct {
	Doctors []models.Doctor        `yaml:"doctors" json:"doctors"`
	Reports []models.MedicalReport `yaml:"reports" json:"reports"`
}

// LoadFixtures reads a YAML fixture file. An empty path yields the defaults.
func LoadFixtures(path string) (Fixtures, error) {
	if path == "" {
		return DefaultFixtures(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultFixtures(), err
	}

	var fx Fixtures
	if err := yaml.Unmarshal(content, &fx); err != nil {
		return Fixtures{}, err
	}

	if len(fx.Doctors) == 0 && len(fx.Reports) == 0 {
		return Fixtures{}, errors.New("fixture file has no doctors or reports")
	}
	for _, d := range fx.Doctors {
		if err := d.Validate(); err != nil {
			return Fixtures{}, err
		}
	}
	for _, r := range fx.Reports {
		if err := r.Validate(); err != nil {
			return Fixtures{}, err
		}
	}

	return fx, nil
}

func DefaultFixtures() Fixtures {
	return Fixtures{
		Doctors: []models.Doctor{
			{ID: "DOC001", Name: "Dr. Sameer Sharma", Email: "sameer@medisetu.com"},
		},
		Reports: []models.MedicalReport{
			{
				ID:        "REP101",
				PatientID: "P100",
				Title:     "Complete Blood Count (CBC)",
				Date:      "2024-03-15",
				Source:    "Apollo Diagnostics",
				Status:    models.ReportNormal,
				FileName:  "cbc_report.pdf",
			},
			{
				ID:        "REP102",
				PatientID: "P100",
				Title:     "Liver Function Test",
				Date:      "2024-03-20",
				Source:    "Max Healthcare",
				Status:    models.ReportAbnormal,
				FileName:  "lft_report.pdf",
			},
		},
	}
}
