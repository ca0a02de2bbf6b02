package handlers

import (
	"log"
	"net/http"
	"os"
	"strconv"

	"lunch-voting-backend/cache"

	"github.com/gin-gonic/gin"
)

var (
	userLimiter      *cache.UserRateLimiter
	rateLimitEnabled bool
)

// InitRateLimiters configures the request limiter from the environment.
// ENABLE_RATE_LIMIT=true turns it on; GLOBAL_RATE_LIMIT and USER_RATE_LIMIT
// tune the per-second rates.
func InitRateLimiters() {
	rateLimitEnabled = os.Getenv("ENABLE_RATE_LIMIT") == "true"
	if !rateLimitEnabled {
		log.Println("rate limiting disabled")
		return
	}

	globalRate := envInt("GLOBAL_RATE_LIMIT", 100)
	userRate := envInt("USER_RATE_LIMIT", 10)

	client, err := cache.GetClient()
	if err != nil {
		log.Printf("rate limiting falling back to in-process buckets: %v", err)
		client = nil
	}
	userLimiter = cache.NewUserRateLimiter(client, "lunchvote",
		globalRate, globalRate*2, userRate, userRate*2)
	log.Printf("rate limiting enabled: global=%d/s user=%d/s", globalRate, userRate)
}

// RateLimitMiddleware rejects requests over the configured budget with 429.
func RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rateLimitEnabled || userLimiter == nil {
			c.Next()
			return
		}

		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			userID = c.ClientIP()
		}

		allowed, err := userLimiter.AllowUser(c.Request.Context(), userID)
		if err != nil {
			// Fail open: a broken limiter must not take the API down.
			log.Printf("rate limit check failed: %v", err)
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
