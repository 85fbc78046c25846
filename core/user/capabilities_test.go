package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_Can(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		can   []Capability
		cant  []Capability
	}{
		{name: "no roles", cant: []Capability{ViewSchool, ManageUsers}},
		{
			name: "admin", roles: []string{RoleAdmin},
			can: []Capability{ManageUsers, ManageSchool, ViewSchool, RecordScores, ManageExamTypes, GenerateReports, SendSms, ViewJobs},
		},
		{name: "principal", roles: []string{RoleAdminPrincipal}, can: []Capability{ManageUsers, ManageSchool}},
		{
			name: "teacher", roles: []string{RoleTeacher},
			can:  []Capability{ViewSchool, RecordScores, GenerateReports, ViewJobs},
			cant: []Capability{ManageUsers, ManageSchool, ManageExamTypes, SendSms},
		},
		{
			name: "staff", roles: []string{RoleStaff},
			can:  []Capability{ViewSchool, SendSms, ViewJobs},
			cant: []Capability{RecordScores, GenerateReports, ManageSchool},
		},
		{
			name: "teacher & staff", roles: []string{RoleTeacher, RoleStaff},
			can:  []Capability{RecordScores, SendSms},
			cant: []Capability{ManageUsers},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr := User{Roles: tt.roles}
			for _, c := range tt.can {
				assert.Truef(t, usr.Can(c), "Can(%s)", c)
			}
			for _, c := range tt.cant {
				assert.Falsef(t, usr.Can(c), "Can(%s)", c)
			}
		})
	}
}

func TestMaxRolePriority(t *testing.T) {
	assert.Equal(t, 0, MaxRolePriority(nil))
	assert.Equal(t, 1, MaxRolePriority([]string{RoleStaff}))
	assert.Equal(t, 11, MaxRolePriority([]string{RoleStaff, RoleTeacher}))
	assert.Equal(t, 30, MaxRolePriority([]string{RoleAdmin, RoleAdminPrincipal}))
}
