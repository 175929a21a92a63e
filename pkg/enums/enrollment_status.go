package enums

import "fmt"

// EnrollmentStatus describes the allowed values for the enrollment
// `status` column. Values are the Spanish labels the mobile clients and
// existing rows already use.
type EnrollmentStatus string

const (
	EnrollmentStatusPendiente EnrollmentStatus = "pendiente"
	EnrollmentStatusActiva    EnrollmentStatus = "activa"
	EnrollmentStatusCancelada EnrollmentStatus = "cancelada"
)

var validEnrollmentStatuses = []EnrollmentStatus{
	EnrollmentStatusPendiente,
	EnrollmentStatusActiva,
	EnrollmentStatusCancelada,
}

// IsValid reports whether the value matches the canonical enrollment status enum.
func (e EnrollmentStatus) IsValid() bool {
	for _, candidate := range validEnrollmentStatuses {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEnrollmentStatus converts the raw string to EnrollmentStatus.
func ParseEnrollmentStatus(value string) (EnrollmentStatus, error) {
	for _, candidate := range validEnrollmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid enrollment status %q", value)
}
