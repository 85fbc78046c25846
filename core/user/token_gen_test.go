package user

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
)

func TestResetToken(t *testing.T) {
	conf := core.NewTestConfig()
	now := time.Now()
	usr := User{
		ID:        "8b7e6a3c-4f3e-4c1a-9a55-1d2f6b1c0a01",
		Username:  "t",
		Email:     "t@test.test",
		LastLogin: now.Add(-time.Hour),
	}
	require.NoError(t, usr.SetPassword("pwd"))

	rt := newResetToken(conf)
	valid := rt.make(usr, now)
	expired := rt.make(usr, now.Add(-conf.Server.PasswordResetTimeoutDelta-24*time.Hour))

	// a new login or password invalidates previous tokens
	loggedIn := usr
	loggedIn.LastLogin = now
	otherPwd := usr
	require.NoError(t, otherPwd.SetPassword("pwd2"))

	otherKey := core.NewTestConfig()
	otherKey.SecretKey = "other"
	forged := newResetToken(otherKey).make(usr, now)

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "no separator", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid timestamp", usr: usr, token: "h!h-sigsig", wantErr: errInvalidToken},
		{name: "invalid signature", usr: usr, token: strconv.FormatInt(now.Unix()/3600, 36) + "-sigsig", wantErr: errInvalidToken},
		{name: "other secret key", usr: usr, token: forged, wantErr: errInvalidToken},
		{name: "expired", usr: usr, token: expired, wantErr: errTokenExpired},
		{name: "logged in since", usr: loggedIn, token: valid, wantErr: errInvalidToken},
		{name: "password changed", usr: otherPwd, token: valid, wantErr: errInvalidToken},
		{name: "valid", usr: usr, token: valid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, rt.verify(tt.usr, tt.token, now))
		})
	}
}

func TestMakeToken(t *testing.T) {
	conf := core.NewTestConfig()
	usr := User{ID: "8b7e6a3c-4f3e-4c1a-9a55-1d2f6b1c0a01"}
	assert.NoError(t, verifyToken(conf, usr, MakeToken(conf, usr)))
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "8b7e6a3c-4f3e-4c1a-9a55-1d2f6b1c0a01"}
	id, err := decodeUID(EncodeUID(usr))
	require.NoError(t, err)
	assert.Equal(t, usr.ID, id)

	_, err = decodeUID("not base64!")
	assert.Error(t, err)
}
