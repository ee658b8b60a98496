package bot

import (
	"golang.org/x/time/rate"
	"sync"
	"time"
	"zyvpn-miniapp/internal/views"
)

// Классы действий с отдельными лимитами
const (
	actionDefault = "default"
	actionPay     = "pay"
	actionInput   = "input"
)

type limit struct {
	every time.Duration
	burst int
}

// RateLimiter - token bucket на пользователя и класс действия
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[int64]map[string]*rate.Limiter
	limits   map[string]limit
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limiters: make(map[int64]map[string]*rate.Limiter),
		limits: map[string]limit{
			actionDefault: {every: 300 * time.Millisecond, burst: 8},
			actionPay:     {every: 5 * time.Second, burst: 2},
			actionInput:   {every: time.Second, burst: 3},
		},
	}
}

// Allow - false, если пользователь превысил лимит для этого класса действий
func (r *RateLimiter) Allow(userID int64, action string) bool {
	l, ok := r.limits[action]
	if !ok {
		action = actionDefault
		l = r.limits[actionDefault]
	}
	r.mu.Lock()
	byAction := r.limiters[userID]
	if byAction == nil {
		byAction = make(map[string]*rate.Limiter)
		r.limiters[userID] = byAction
	}
	lim := byAction[action]
	if lim == nil {
		lim = rate.NewLimiter(rate.Every(l.every), l.burst)
		byAction[action] = lim
	}
	r.mu.Unlock()
	return lim.Allow()
}

func (r *RateLimiter) Forget(userID int64) {
	r.mu.Lock()
	delete(r.limiters, userID)
	r.mu.Unlock()
}

// actionClass относит callback data или команду к классу лимита
func actionClass(data string) string {
	switch data {
	case views.CbPay, views.CbTopUp, views.CbTrial:
		return actionPay
	}
	return actionDefault
}
