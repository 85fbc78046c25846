package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
)

func TestPasswordPolicy(t *testing.T) {
	validate, translator := core.NewValidator()
	RegisterValidators(validate, translator)

	tests := []struct {
		name    string
		pwd     string
		wantErr string
	}{
		{name: "min len", pwd: "lol", wantErr: "password must contain at least 8 characters"},
		{name: "whitespace", pwd: "l o loll", wantErr: "password must not contain whitespace"},
		{name: "all numeric", pwd: "12345678", wantErr: "password cannot be entirely numeric"},
		{name: "too common", pwd: "Password123", wantErr: "password is too common"},
		{name: "complexity", pwd: "lol12345", wantErr: "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"},
		{name: "similar to username", pwd: "Jonathan@1", wantErr: "password cannot be similar to user attributes"},
		{name: "valid", pwd: "LolC@t123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := NewUser{
				Name:            "Someone",
				Username:        "jonathan1",
				Password:        tt.pwd,
				PasswordConfirm: tt.pwd,
			}
			err := validate.Struct(nu)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			vErrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok)
			require.Len(t, vErrs, 1)
			assert.Equal(t, "password", vErrs[0].Field())
			assert.Equal(t, tt.wantErr, vErrs[0].Translate(translator))
		})
	}
}

func TestAllRolesValidation(t *testing.T) {
	validate, translator := core.NewValidator()
	RegisterValidators(validate, translator)

	type roles struct {
		Roles []string `json:"roles" validate:"allroles"`
	}
	assert.NoError(t, validate.Struct(roles{Roles: []string{RoleAdmin, RoleStaff}}))
	assert.Error(t, validate.Struct(roles{Roles: []string{RoleAdmin, "student:"}}))
}
