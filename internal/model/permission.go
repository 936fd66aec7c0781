package model

// Role is the coarse account type carried in every access token.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStudent
}

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionExamsRead allows viewing exam lists and details, answers included.
	PermissionExamsRead Permission = "exams:read"

	// PermissionExamsWrite allows creating, updating and deleting exams.
	PermissionExamsWrite Permission = "exams:write"

	// PermissionQuestionsWrite allows adding, editing and removing questions.
	PermissionQuestionsWrite Permission = "questions:write"

	// PermissionAnalyticsRead allows viewing analytics and the live monitor.
	PermissionAnalyticsRead Permission = "analytics:read"

	// PermissionResultsReadAll allows reading any student's results and violations.
	PermissionResultsReadAll Permission = "results:read_all"

	// PermissionResultsReadOwn allows a student to read their own results.
	PermissionResultsReadOwn Permission = "results:read_own"

	// PermissionSessionsTake allows listing, starting and submitting exams.
	PermissionSessionsTake Permission = "sessions:take"

	// PermissionViolationsWrite allows reporting proctoring violations.
	PermissionViolationsWrite Permission = "violations:write"
)

var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermissionExamsRead,
		PermissionExamsWrite,
		PermissionQuestionsWrite,
		PermissionAnalyticsRead,
		PermissionResultsReadAll,
	},
	RoleStudent: {
		PermissionSessionsTake,
		PermissionResultsReadOwn,
		PermissionViolationsWrite,
	},
}

// Permissions returns the capability set granted to a role.
func (r Role) Permissions() []Permission {
	perms := rolePermissions[r]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// Can reports whether the role is granted p.
func (r Role) Can(p Permission) bool {
	for _, have := range rolePermissions[r] {
		if have == p {
			return true
		}
	}
	return false
}
