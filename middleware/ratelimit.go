package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Dosada05/tournament-engine/metrics"
	"golang.org/x/time/rate"
)

const (
	// cleanupThreshold - минимальный размер карты, после которого идет очистка.
	cleanupThreshold = 500
	// maxIdleAge - через сколько простоя запись можно удалить.
	maxIdleAge = 10 * time.Minute
)

type userEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserRateLimiter держит по одному token bucket на пользователя и чистит неактивные по ходу.
type UserRateLimiter struct {
	users map[string]*userEntry
	mu    sync.Mutex
	r     rate.Limit
	b     int
}

func NewUserRateLimiter(r rate.Limit, b int) *UserRateLimiter {
	return &UserRateLimiter{
		users: make(map[string]*userEntry),
		r:     r,
		b:     b,
	}
}

func (l *UserRateLimiter) GetLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.users) > cleanupThreshold {
		cutoff := time.Now().Add(-maxIdleAge)
		for k, e := range l.users {
			if e.lastSeen.Before(cutoff) {
				delete(l.users, k)
			}
		}
	}

	e, exists := l.users[key]
	if !exists {
		e = &userEntry{limiter: rate.NewLimiter(l.r, l.b)}
		l.users[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

// RateLimitByUser ограничивает запросы по user id из токена, для анонимных по адресу.
// Должен стоять после Authenticate.
func RateLimitByUser(limiter *UserRateLimiter, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if userID, err := GetUserIDFromContext(r.Context()); err == nil {
				key = "user:" + strconv.Itoa(userID)
			}

			if !limiter.GetLimiter(key).Allow() {
				m.VetoSubmission(metrics.VetoRateLimited)
				writeError(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
