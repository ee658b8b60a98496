package host

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	ErrMissingHash = errors.New("init data: missing hash")
	ErrBadHash     = errors.New("init data: invalid hash")
	ErrExpired     = errors.New("init data: auth_date expired")
)

// WebAppUser - поле user в init data
type WebAppUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

func secretKey(botToken string) []byte {
	m := hmac.New(sha256.New, []byte("WebAppData"))
	m.Write([]byte(botToken))
	return m.Sum(nil)
}

func dataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+values.Get(k))
	}
	return strings.Join(parts, "\n")
}

func computeHash(botToken string, values url.Values) string {
	m := hmac.New(sha256.New, secretKey(botToken))
	m.Write([]byte(dataCheckString(values)))
	return hex.EncodeToString(m.Sum(nil))
}

// SignInitData собирает строку init data так же, как её выдаёт Telegram WebApp
func SignInitData(botToken string, user WebAppUser, authDate time.Time, queryID string) (string, error) {
	raw, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("marshal user: %w", err)
	}
	values := url.Values{}
	values.Set("user", string(raw))
	values.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	if queryID != "" {
		values.Set("query_id", queryID)
	}
	values.Set("hash", computeHash(botToken, values))
	return values.Encode(), nil
}

// ValidateInitData проверяет подпись и возраст init data, maxAge <= 0 - без проверки возраста
func ValidateInitData(botToken, initData string, maxAge time.Duration, now time.Time) (WebAppUser, error) {
	var user WebAppUser
	values, err := url.ParseQuery(initData)
	if err != nil {
		return user, fmt.Errorf("init data: %w", err)
	}
	hash := values.Get("hash")
	if hash == "" {
		return user, ErrMissingHash
	}
	if !hmac.Equal([]byte(hash), []byte(computeHash(botToken, values))) {
		return user, ErrBadHash
	}
	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return user, fmt.Errorf("init data: invalid auth_date: %w", err)
	}
	if maxAge > 0 && now.Sub(time.Unix(authDate, 0)) > maxAge {
		return user, ErrExpired
	}
	if u := values.Get("user"); u != "" {
		if err := json.Unmarshal([]byte(u), &user); err != nil {
			return user, fmt.Errorf("init data: user: %w", err)
		}
	}
	return user, nil
}

// Signer выдаёт init data пользователя и перевыпускает её, когда она стареет
type Signer struct {
	token string
	ttl   time.Duration
	now   func() time.Time

	mu     sync.Mutex
	cached map[int64]signed
}

type signed struct {
	data string
	at   time.Time
}

func NewSigner(botToken string, ttl time.Duration) *Signer {
	return &Signer{token: botToken, ttl: ttl, now: time.Now, cached: make(map[int64]signed)}
}

func (s *Signer) For(user WebAppUser) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if c, ok := s.cached[user.ID]; ok && now.Sub(c.at) < s.ttl {
		return c.data
	}
	data, err := SignInitData(s.token, user, now, "")
	if err != nil {
		return ""
	}
	s.cached[user.ID] = signed{data: data, at: now}
	return data
}

// Forget сбрасывает кэш, например когда сменились имя или язык пользователя
func (s *Signer) Forget(userID int64) {
	s.mu.Lock()
	delete(s.cached, userID)
	s.mu.Unlock()
}
