package server

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/yoganurrahman/moolai-gym-api/internal/auth"
	"github.com/yoganurrahman/moolai-gym-api/internal/config"
)

// RateLimiter keeps one token bucket per client key. Logged-in members
// are keyed by user id so a whole branch behind one NAT does not share
// a single bucket; anonymous traffic is keyed by IP.
type RateLimiter struct {
	clients map[string]*rateClient
	mu      sync.Mutex
	rate    rate.Limit
	burst   int
	ttl     time.Duration
}

type rateClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(rps float64, burst int, ttl time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*rateClient),
		rate:    rate.Limit(rps),
		burst:   burst,
		ttl:     ttl,
	}

	go rl.evictIdle()

	return rl
}

func (rl *RateLimiter) evictIdle() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		for key, cl := range rl.clients {
			if time.Since(cl.lastSeen) > rl.ttl {
				delete(rl.clients, key)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	cl, ok := rl.clients[key]
	if !ok {
		cl = &rateClient{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[key] = cl
	}
	cl.lastSeen = time.Now()
	rl.mu.Unlock()

	return cl.limiter.Allow()
}

// clientKey prefers the user id from the bearer token. The claims are
// read without verifying the signature; a forged id only picks a
// different bucket, it grants nothing.
func clientKey(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		claims := &auth.JWTClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil && claims.UserID > 0 {
			return "user:" + strconv.Itoa(claims.UserID)
		}
	}
	return "ip:" + c.ClientIP()
}

// RateLimitMiddleware throttles per client with the rate and burst
// from config.
func RateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 3*time.Minute)

	return func(c *gin.Context) {
		if !limiter.Allow(clientKey(c)) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
