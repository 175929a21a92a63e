package enums

// UserRole identifies which side of the marketplace a token belongs to.
type UserRole string

const (
	UserRoleClient UserRole = "client"
	UserRoleCoach  UserRole = "coach"
)

func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleClient, UserRoleCoach:
		return true
	}
	return false
}

func (r UserRole) String() string {
	return string(r)
}
