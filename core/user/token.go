package user

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/thesispool/thesispool/core"
)

var (
	feedTokenSalt = []byte("thesispool.core.user.feed_token")
	b32           = base32.StdEncoding.WithPadding(base32.NoPadding)

	// errors
	ErrInvalidToken = core.NewDomainError(core.KindNotFound, "invalid token")
)

// EncodeUID base64 encodes the username of usr for use in URLs.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.Username))
}

func decodeUID(uid string) (string, error) {
	uname, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(uname), nil
}

// MakeFeedToken signs a calendar feed token for usr.
// Changing the flags or the password of usr invalidates its tokens.
func MakeFeedToken(conf *core.Config, usr User) (string, error) {
	return makeTokenWithTimestamp(conf.SecretKey, usr, numDaysSince2001(nowFunc()))
}

// verifyFeedToken checks that token was made for usr and has not expired.
func verifyFeedToken(conf *core.Config, usr User, token string) error {
	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return ErrInvalidToken
	}
	data, err := b32.DecodeString(parts[0])
	if err != nil {
		return ErrInvalidToken
	}
	ts, err := strconv.Atoi(string(data))
	if err != nil {
		return ErrInvalidToken
	}

	// check that token has not been tampered with
	want, err := makeTokenWithTimestamp(conf.SecretKey, usr, ts)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(token)) == 0 {
		return ErrInvalidToken
	}

	maxDays := int(conf.Server.FeedTokenExpirationDelta / (24 * time.Hour))
	if numDaysSince2001(nowFunc())-ts > maxDays {
		return ErrInvalidToken
	}
	return nil
}

func makeTokenWithTimestamp(secret string, usr User, ts int) (string, error) {
	sig, err := sign(secret, hashValue(usr, ts))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", b32.EncodeToString([]byte(strconv.Itoa(ts))), sig), nil
}

func numDaysSince2001(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(ref).Hours() / 24))
}

func sign(secret string, val []byte) (string, error) {
	key := sha256.Sum256(append(append([]byte{}, feedTokenSalt...), secret...))
	h := hmac.New(sha256.New, key[:])
	if _, err := h.Write(val); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

func hashValue(usr User, ts int) []byte {
	var val bytes.Buffer
	val.WriteString(usr.Username)
	for _, f := range []bool{usr.IsProf, usr.IsStaff, usr.IsSecretary, usr.IsExcom, usr.IsHead} {
		if f {
			val.WriteByte('1')
		} else {
			val.WriteByte('0')
		}
	}
	val.Write(usr.PasswordHash)
	val.WriteString(strconv.Itoa(ts))
	return val.Bytes()
}
