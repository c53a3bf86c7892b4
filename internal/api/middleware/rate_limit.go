package middleware

import (
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"ingredient-detector/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxTrackedClients 超過此數量時清除閒置的客戶端令牌桶
const maxTrackedClients = 4096

// NewRateLimiter 創建令牌桶：每個 window 補充 requests 個令牌，最多累積 burst 個
func NewRateLimiter(requests int, window time.Duration, burst int) *rate.Limiter {
	if requests <= 0 || window <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = requests
	}
	return rate.NewLimiter(rate.Limit(float64(requests)/window.Seconds()), burst)
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter 依客戶端 IP 分別限流
type ClientLimiter struct {
	mu       sync.Mutex
	requests int
	window   time.Duration
	burst    int
	clients  map[string]*clientBucket
	now      func() time.Time
}

// NewClientLimiter 創建依 IP 區分的限流器
func NewClientLimiter(requests int, window time.Duration, burst int) *ClientLimiter {
	return &ClientLimiter{
		requests: requests,
		window:   window,
		burst:    burst,
		clients:  make(map[string]*clientBucket),
		now:      time.Now,
	}
}

// Allow 取得 client 的一個令牌
func (l *ClientLimiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.clients[client]
	if !ok {
		if len(l.clients) >= maxTrackedClients {
			l.pruneLocked(now)
		}
		b = &clientBucket{limiter: NewRateLimiter(l.requests, l.window, l.burst)}
		l.clients[client] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// pruneLocked 移除超過一個 window 未出現的客戶端
func (l *ClientLimiter) pruneLocked(now time.Time) {
	for client, b := range l.clients {
		if now.Sub(b.lastSeen) > l.window {
			delete(l.clients, client)
		}
	}
}

// Handler 限流中間件
func (l *ClientLimiter) Handler() gin.HandlerFunc {
	retryAfter := 1
	if l.requests > 0 {
		retryAfter = int(math.Ceil(l.window.Seconds() / float64(l.requests)))
	}

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !l.Allow(ip) {
			common.LogInfo("Rate limit exceeded",
				zap.String("ip", ip),
				zap.String("path", c.Request.URL.Path),
			)

			c.Header("Retry-After", fmt.Sprintf("%d", max(1, retryAfter)))
			common.WriteErrorResponse(c, http.StatusTooManyRequests,
				common.ErrCodeTooManyRequests, "Too many requests")
			return
		}

		c.Next()
	}
}

// RateLimit 依客戶端 IP 限流的中間件
func RateLimit(requests int, window time.Duration, burst int) gin.HandlerFunc {
	return NewClientLimiter(requests, window, burst).Handler()
}
