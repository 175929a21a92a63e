package enums

// ActivityType distinguishes the kinds of purchasable activities a coach
// can publish. Programs carry template day/detail rows that get duplicated
// per enrollment on activation.
type ActivityType string

const (
	ActivityTypeSession ActivityType = "sesion"
	ActivityTypePlan    ActivityType = "plan"
	ActivityTypeProgram ActivityType = "programa"
)

var validActivityTypes = []ActivityType{
	ActivityTypeSession,
	ActivityTypePlan,
	ActivityTypeProgram,
}

// IsValid reports whether the value matches the canonical activity type enum.
func (a ActivityType) IsValid() bool {
	for _, candidate := range validActivityTypes {
		if candidate == a {
			return true
		}
	}
	return false
}
