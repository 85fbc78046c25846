package tests

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/tests"
)

func Test_userApi_login(t *testing.T) {
	e := setup(t)
	testutil.CreateUser(t, e.users, "Admin", "admin", "admin@test.cd", "Pwd.12345", []string{user.RoleAdmin}, true)
	testutil.CreateUser(t, e.users, "N Dog", "ndog", "ndog@test.cd", "Pwd.12345", []string{user.RoleTeacher}, false)

	login := func(uname, pwd string) []byte {
		return marchallObj(t, LoginRequest{Username: uname, Password: pwd})
	}

	tests := []httpTest{
		{name: "missing credentials", body: login("", ""), wantCode: http.StatusBadRequest},
		{
			name: "unknown user", body: login("ghost", "Pwd.12345"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", body: login("admin", "lol"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated", body: login("ndog", "Pwd.12345"), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "by username", body: login("ADMIN", "Pwd.12345"), wantCode: http.StatusOK},
		{name: "by email", body: login("admin@test.cd", "Pwd.12345"), wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPost
			tt.path = "/api/users/login"
			rec := e.serve(tt)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var resp LoginResponse
				unmarshal(t, rec, &resp)
				assert.NotEmpty(t, resp.Token)
			}
		})
	}
}

func Test_userApi_query(t *testing.T) {
	e := setup(t)
	admin := testutil.CreateUser(t, e.users, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, e.users, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	clerk := testutil.CreateUser(t, e.users, "Clerk", "clerk", "clerk@test.cd", "", []string{user.RoleStaff}, false)
	adminToken := getToken(t, e.conf, admin)

	path := func(search string, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/api/users?" + v.Encode()
	}

	tests := []httpTest{
		{name: "auth required", path: "/api/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "user manager required", path: "/api/users", token: getToken(t, e.conf, teacher),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "all", path: "/api/users", token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, admin, teacher, clerk)},
		{name: "search (unknown)", path: path("lol"), token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t)},
		{name: "role=teacher:", path: path("", user.RoleTeacher), token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, teacher)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}
}

func Test_userApi_retrieve(t *testing.T) {
	e := setup(t)
	admin := testutil.CreateUser(t, e.users, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, e.users, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	clerk := testutil.CreateUser(t, e.users, "Clerk", "clerk", "clerk@test.cd", "", []string{user.RoleStaff}, true)
	teacherToken := getToken(t, e.conf, teacher)

	tests := []httpTest{
		{name: "self", path: "/api/users/" + teacher.ID, token: teacherToken, wantCode: http.StatusOK, wantData: marchallObj(t, teacher)},
		{
			name: "someone else", path: "/api/users/" + clerk.ID, token: teacherToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{name: "as user manager", path: "/api/users/" + clerk.ID, token: getToken(t, e.conf, admin), wantCode: http.StatusOK, wantData: marchallObj(t, clerk)},
		{
			name: "unknown", path: "/api/users/lol", token: getToken(t, e.conf, admin),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}
}

func Test_userApi_update(t *testing.T) {
	e := setup(t)
	teacher := testutil.CreateUser(t, e.users, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	teacherToken := getToken(t, e.conf, teacher)

	t.Run("cannot change own roles", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPut, path: "/api/users/" + teacher.ID, token: teacherToken,
			body:     marchallObj(t, map[string]interface{}{"roles": []string{user.RoleAdmin}}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		}
		checkCodeAndData(t, tt, e.serve(tt))
	})

	t.Run("change own name", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPut, path: "/api/users/" + teacher.ID, token: teacherToken,
			body: marchallObj(t, map[string]interface{}{"name": "  Mr Teacher "}), wantCode: http.StatusOK,
		}
		rec := e.serve(tt)
		checkCodeAndData(t, tt, rec)

		var got user.User
		unmarshal(t, rec, &got)
		assert.Equal(t, "Mr Teacher", got.Name)
		assert.Equal(t, teacher.Roles, got.Roles)
	})
}

func Test_userApi_destroy(t *testing.T) {
	e := setup(t)
	admin := testutil.CreateUser(t, e.users, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	principal := testutil.CreateUser(t, e.users, "Principal", "princip", "princip@test.cd", "", []string{user.RoleAdminPrincipal}, true)
	teacher := testutil.CreateUser(t, e.users, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	adminToken := getToken(t, e.conf, admin)

	tests := []httpTest{
		{name: "self", path: "/api/users/" + admin.ID, token: adminToken, wantCode: http.StatusForbidden},
		{name: "higher role", path: "/api/users/" + principal.ID, token: adminToken, wantCode: http.StatusForbidden},
		{name: "not a user manager", path: "/api/users/" + teacher.ID, token: getToken(t, e.conf, teacher), wantCode: http.StatusForbidden},
		{name: "ok", path: "/api/users/" + teacher.ID, token: adminToken, wantCode: http.StatusNoContent},
		{name: "already deleted", path: "/api/users/" + teacher.ID, token: adminToken, wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodDelete
			rec := e.serve(tt)
			if rec.Code != tt.wantCode {
				t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}
}

func Test_userApi_passwordReset(t *testing.T) {
	e := setup(t)
	testutil.CreateUser(t, e.users, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)

	for _, email := range []string{"teacher@test.cd", "ghost@test.cd"} {
		t.Run(email, func(t *testing.T) {
			e.mail.Reset()
			tt := httpTest{
				method: http.MethodPost, path: "/api/users/password-reset",
				body: marchallObj(t, PasswordResetRequest{Email: email}), wantCode: http.StatusOK,
			}
			checkCodeAndData(t, tt, e.serve(tt))

			// unknown emails are not disclosed, nor mailed
			if email == "teacher@test.cd" {
				assert.Len(t, e.mail.Sent(), 1)
			} else {
				assert.Empty(t, e.mail.Sent())
			}
		})
	}
}

func Test_userApi_confirmPasswordReset(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.users, "Teacher", "teacher", "teacher@test.cd", "Pwd.12345", []string{user.RoleTeacher}, true)
	token := user.MakeToken(e.conf, usr)

	reset := func(uid, token, pwd string) []byte {
		return marchallObj(t, user.ResetUserPassword{Token: token, UID: uid, Password: pwd, PasswordConfirm: pwd})
	}
	invalid := func(field string) []byte {
		return marchallObj(t, map[string]string{field: "invalid value"})
	}

	tests := []httpTest{
		{name: "missing data", body: reset("", "", ""), wantCode: http.StatusBadRequest},
		{name: "unknown user", body: reset(user.EncodeUID(user.User{ID: "ghost"}), token, "N3w.Pwd!"), wantCode: http.StatusBadRequest, wantData: invalid("uid")},
		{name: "bad token", body: reset(user.EncodeUID(usr), "1-lol", "N3w.Pwd!"), wantCode: http.StatusBadRequest, wantData: invalid("token")},
		{name: "reset", body: reset(user.EncodeUID(usr), token, "N3w.Pwd!"), wantCode: http.StatusOK},
		// the password changed: the token is spent
		{name: "token reused", body: reset(user.EncodeUID(usr), token, "Other.Pwd1"), wantCode: http.StatusBadRequest, wantData: invalid("token")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPost
			tt.path = "/api/users/password-reset-confirm"
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}

	rec := e.serve(httpTest{
		method: http.MethodPost,
		path:   "/api/users/login",
		body:   marchallObj(t, LoginRequest{Username: "teacher", Password: "N3w.Pwd!"}),
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}
