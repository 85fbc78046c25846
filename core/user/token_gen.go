package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/trezcool/shule/core"
)

var (
	tokenSalt = []byte("shule.core.user.password-reset")

	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// EncodeUID encodes the user ID for password reset links.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	id, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

// resetToken signs password reset tokens: "<issue hour, base 36>-<signature>".
// The signature covers the user password hash & last login,
// so a token stops working once the password changes or the user logs in.
type resetToken struct {
	key    []byte
	maxAge time.Duration
}

func newResetToken(conf *core.Config) resetToken {
	key := sha256.Sum256(append(append([]byte{}, tokenSalt...), conf.SecretKey...))
	return resetToken{key: key[:], maxAge: conf.Server.PasswordResetTimeoutDelta}
}

func (rt resetToken) make(usr User, issued time.Time) string {
	hour := issued.Unix() / 3600
	return strconv.FormatInt(hour, 36) + "-" + rt.sign(usr, hour)
}

func (rt resetToken) verify(usr User, token string, now time.Time) error {
	hourB36, _, ok := strings.Cut(token, "-")
	if !ok {
		return errInvalidToken
	}
	hour, err := strconv.ParseInt(hourB36, 36, 64)
	if err != nil {
		return errInvalidToken
	}
	if !hmac.Equal([]byte(token), []byte(hourB36+"-"+rt.sign(usr, hour))) {
		return errInvalidToken
	}
	if now.Sub(time.Unix(hour*3600, 0)) > rt.maxAge {
		return errTokenExpired
	}
	return nil
}

func (rt resetToken) sign(usr User, hour int64) string {
	mac := hmac.New(sha256.New, rt.key)
	mac.Write([]byte(usr.ID))
	mac.Write(usr.PasswordHash)
	var buf [8]byte
	if !usr.LastLogin.IsZero() {
		binary.BigEndian.PutUint64(buf[:], uint64(usr.LastLogin.Unix()))
		mac.Write(buf[:])
	}
	binary.BigEndian.PutUint64(buf[:], uint64(hour))
	mac.Write(buf[:])
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// MakeToken generates a password reset token for usr.
func MakeToken(conf *core.Config, usr User) string {
	return newResetToken(conf).make(usr, core.NowFunc())
}

func verifyToken(conf *core.Config, usr User, token string) error {
	return newResetToken(conf).verify(usr, token, core.NowFunc())
}
