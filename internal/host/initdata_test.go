package host

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123456:TEST-token"

func TestSignInitData_MatchesWebAppAlgorithm(t *testing.T) {
	user := WebAppUser{ID: 42, FirstName: "Ivan", Username: "ivan"}
	at := time.Unix(1700000000, 0)

	data, err := SignInitData(testToken, user, at, "AAH")
	require.NoError(t, err)

	values, err := url.ParseQuery(data)
	require.NoError(t, err)
	assert.Equal(t, "1700000000", values.Get("auth_date"))
	assert.Equal(t, `{"id":42,"first_name":"Ivan","username":"ivan"}`, values.Get("user"))

	// ручной расчёт: secret = HMAC("WebAppData", token), hash = HMAC(secret, check string)
	sk := hmac.New(sha256.New, []byte("WebAppData"))
	sk.Write([]byte(testToken))
	h := hmac.New(sha256.New, sk.Sum(nil))
	h.Write([]byte("auth_date=1700000000\nquery_id=AAH\nuser=" + values.Get("user")))
	assert.Equal(t, hex.EncodeToString(h.Sum(nil)), values.Get("hash"))
}

func TestValidateInitData(t *testing.T) {
	now := time.Unix(1700000000, 0)
	user := WebAppUser{ID: 7, FirstName: "Anna"}
	good, err := SignInitData(testToken, user, now.Add(-10*time.Minute), "")
	require.NoError(t, err)
	old, err := SignInitData(testToken, user, now.Add(-2*time.Hour), "")
	require.NoError(t, err)
	tampered := func() string {
		v, _ := url.ParseQuery(good)
		v.Set("user", `{"id":8,"first_name":"Anna"}`)
		return v.Encode()
	}()
	noHash := func() string {
		v, _ := url.ParseQuery(good)
		v.Del("hash")
		return v.Encode()
	}()

	tests := []struct {
		desc    string
		token   string
		data    string
		wantErr error
	}{
		{"valid", testToken, good, nil},
		{"wrong token", "other:token", good, ErrBadHash},
		{"expired", testToken, old, ErrExpired},
		{"tampered user", testToken, tampered, ErrBadHash},
		{"missing hash", testToken, noHash, ErrMissingHash},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, err := ValidateInitData(tt.token, tt.data, time.Hour, now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, user, got)
		})
	}
}

func TestSigner_CachesUntilTTL(t *testing.T) {
	s := NewSigner(testToken, time.Minute)
	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }
	u := WebAppUser{ID: 1}

	first := s.For(u)
	now = now.Add(30 * time.Second)
	assert.Equal(t, first, s.For(u))

	now = now.Add(time.Minute)
	second := s.For(u)
	assert.NotEqual(t, first, second)

	_, err := ValidateInitData(testToken, second, time.Hour, now)
	assert.NoError(t, err)

	s.Forget(u.ID)
	now = now.Add(time.Second)
	assert.NotEqual(t, second, s.For(u))
}
