package portal

import (
	"strings"

	"github.com/medisetu/platform/pkg/common/models"
)

// StatusAll disables status filtering.
const StatusAll = "All"

// ListQuery is the search box and status dropdown of a list view.
type ListQuery struct {
	Search string
	Status string
}

func (q ListQuery) matchesStatus(status string) bool {
	return q.Status == "" || q.Status == StatusAll || q.Status == status
}

// FilterReports keeps reports whose title or source contains the search term,
// ignoring case.
func FilterReports(reports []models.MedicalReport, q ListQuery) []models.MedicalReport {
	term := strings.ToLower(q.Search)
	out := make([]models.MedicalReport, 0, len(reports))
	for _, r := range reports {
		matchesSearch := strings.Contains(strings.ToLower(r.Title), term) ||
			strings.Contains(strings.ToLower(r.Source), term)
		if matchesSearch && q.matchesStatus(string(r.Status)) {
			out = append(out, r)
		}
	}
	return out
}

// FilterAppointments matches the patient name ignoring case, or the phone
// number verbatim.
func FilterAppointments(appts []models.Appointment, q ListQuery) []models.Appointment {
	term := strings.ToLower(q.Search)
	out := make([]models.Appointment, 0, len(appts))
	for _, a := range appts {
		matchesSearch := strings.Contains(strings.ToLower(a.PatientName), term) ||
			strings.Contains(a.Phone, q.Search)
		if matchesSearch && q.matchesStatus(string(a.Status)) {
			out = append(out, a)
		}
	}
	return out
}
