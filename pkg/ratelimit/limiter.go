package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter - Token Bucket для запросов к API биржи.
//
// Ведро наполняется со скоростью rate токенов в секунду до burst,
// каждый запрос забирает один токен.
//
// Использование:
//
//	limiter := NewRateLimiter(5, 5) // 5 req/sec
//	err := limiter.Wait(ctx)       // блокирующее ожидание
//	if limiter.Allow() { ... }     // неблокирующая проверка
type RateLimiter struct {
	rate       float64
	burst      float64
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewRateLimiter создаёт rate limiter.
//
// Лимиты GMO Coin (Tier 1): 20 GET и 20 POST в секунду на аккаунт.
// Бот работает с запасом, по умолчанию 5 req/sec.
func NewRateLimiter(rate, burst float64) *RateLimiter {
	if rate <= 0 {
		rate = 5
	}
	if burst < rate {
		burst = rate
	}

	rl := &RateLimiter{
		rate:  rate,
		burst: burst,
		now:   time.Now,
	}
	rl.tokens = burst
	rl.lastRefill = rl.now()
	return rl
}

// refill пополняет токены; вызывается под lock'ом
func (rl *RateLimiter) refill() {
	now := rl.now()
	rl.tokens += now.Sub(rl.lastRefill).Seconds() * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
	rl.lastRefill = now
}

// Wait блокирует до получения токена или отмены контекста
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill()

		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}

		waitTime := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
		rl.mu.Unlock()

		timer := time.NewTimer(waitTime)
		select {
		case <-timer.C:
			continue
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Allow забирает токен без ожидания
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// Tokens возвращает текущее количество токенов
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// ============================================================
// MultiLimiter - отдельные лимиты на категории запросов
// ============================================================

// Категории запросов GMO Coin
const (
	CategoryPublic      = "public"
	CategoryPrivateGet  = "private_get"
	CategoryPrivatePost = "private_post"
)

// MultiLimiter управляет несколькими RateLimiter по категориям
type MultiLimiter struct {
	limiters map[string]*RateLimiter
	mu       sync.RWMutex
}

// NewMultiLimiter создаёт пустой MultiLimiter
func NewMultiLimiter() *MultiLimiter {
	return &MultiLimiter{limiters: make(map[string]*RateLimiter)}
}

// Add добавляет лимит для категории
func (ml *MultiLimiter) Add(category string, rate, burst float64) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	ml.limiters[category] = NewRateLimiter(rate, burst)
}

// Wait ожидает токен категории; категория без лимита не ждет
func (ml *MultiLimiter) Wait(ctx context.Context, category string) error {
	ml.mu.RLock()
	limiter, ok := ml.limiters[category]
	ml.mu.RUnlock()

	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}
