// Package doctor implements the health checks behind "bd doctor".
//
// Every check takes the .beads directory and returns a DoctorCheck. Checks
// open the database read-only and never fail the caller: problems are
// reported through the check's Status.
package doctor

// Status constants for doctor checks
const (
	StatusOK      = "ok"
	StatusWarning = "warning"
	StatusError   = "error"
)

// Category constants for grouping doctor checks
const (
	CategoryCore        = "Core System"
	CategoryData        = "Data & Config"
	CategoryMaintenance = "Maintenance"
)

// CategoryOrder defines the display order for categories
var CategoryOrder = []string{
	CategoryCore,
	CategoryData,
	CategoryMaintenance,
}

// DoctorCheck represents a single diagnostic check result
type DoctorCheck struct {
	Name     string `json:"name"`
	Status   string `json:"status"` // StatusOK, StatusWarning, or StatusError
	Message  string `json:"message"`
	Detail   string `json:"detail,omitempty"`
	Fix      string `json:"fix,omitempty"`
	Category string `json:"category,omitempty"`
}

func ok(name, message string) DoctorCheck {
	return DoctorCheck{Name: name, Status: StatusOK, Message: message}
}

// joinDetail joins items with ", ", cutting the result at 200 bytes.
func joinDetail(items []string) string {
	detail := ""
	for i, item := range items {
		if i > 0 {
			detail += ", "
		}
		detail += item
		if len(detail) > 200 {
			return detail[:200] + "..."
		}
	}
	return detail
}
