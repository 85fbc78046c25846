package user

import "strings"

// Capability is a permission granted by roles. Handlers check capabilities, never raw roles.
type Capability string

const (
	ManageUsers     Capability = "manage_users"
	ManageSchool    Capability = "manage_school" // grades, subjects, curriculum & students
	ViewSchool      Capability = "view_school"
	RecordScores    Capability = "record_scores"
	ManageExamTypes Capability = "manage_exam_types"
	GenerateReports Capability = "generate_reports"
	SendSms         Capability = "send_sms"
	ViewJobs        Capability = "view_jobs"
)

// CapabilitySet is the set of capabilities granted to a user.
type CapabilitySet map[Capability]struct{}

func (cs CapabilitySet) Has(c Capability) bool {
	_, ok := cs[c]
	return ok
}

// capabilities per role prefix
var roleCapabilities = map[string][]Capability{
	RoleAdmin: {
		ManageUsers, ManageSchool, ViewSchool, RecordScores,
		ManageExamTypes, GenerateReports, SendSms, ViewJobs,
	},
	RoleTeacher: {ViewSchool, RecordScores, GenerateReports, ViewJobs},
	RoleStaff:   {ViewSchool, SendSms, ViewJobs},
}

// CapabilitiesFor returns the union of the capabilities granted by roles.
// Roles are matched on their prefix, eg. "admin:principal" grants the "admin:" capabilities.
func CapabilitiesFor(roles []string) CapabilitySet {
	set := make(CapabilitySet)
	for _, role := range roles {
		for prefix, caps := range roleCapabilities {
			if strings.HasPrefix(role, prefix) {
				for _, c := range caps {
					set[c] = struct{}{}
				}
			}
		}
	}
	return set
}
