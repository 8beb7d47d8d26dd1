package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SecurityMiddleware guards the admin API surface. The public webhook
// endpoint is not behind it: there the HMAC signature is the credential.
type SecurityMiddleware struct {
	logger       *zap.Logger
	apiKeys      map[string]string // clientID -> apiKey
	apiKeyHeader string
}

func NewSecurityMiddleware(logger *zap.Logger, apiKeys map[string]string, apiKeyHeader string) *SecurityMiddleware {
	return &SecurityMiddleware{
		logger:       logger,
		apiKeys:      apiKeys,
		apiKeyHeader: apiKeyHeader,
	}
}

func (m *SecurityMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(m.apiKeyHeader)
		if apiKey == "" {
			m.logger.Warn("Missing API key", zap.String("ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing API key"})
			c.Abort()
			return
		}

		clientID := m.validateAPIKey(apiKey)
		if clientID == "" {
			prefixLen := len(apiKey)
			if prefixLen > 8 {
				prefixLen = 8
			}
			m.logger.Warn("Invalid API key", zap.String("ip", c.ClientIP()), zap.String("api_key_prefix", apiKey[:prefixLen]))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			c.Abort()
			return
		}

		c.Set("clientID", clientID)
		m.logger.Debug("Successfully authenticated client", zap.String("client_id", clientID))
		c.Next()
	}
}

func (m *SecurityMiddleware) CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, "+m.apiKeyHeader)
		c.Header("Access-Control-Max-Age", "3600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (m *SecurityMiddleware) RateLimit() gin.HandlerFunc {
	// Simple token bucket per authenticated client
	type bucket struct {
		tokens     float64
		lastRefill time.Time
	}

	var mu sync.Mutex
	buckets := make(map[string]*bucket)

	return func(c *gin.Context) {
		clientID, exists := c.Get("clientID")
		if !exists {
			c.Next()
			return
		}

		id := clientID.(string)

		mu.Lock()
		b, exists := buckets[id]
		if !exists {
			b = &bucket{
				tokens:     10, // Initial tokens
				lastRefill: time.Now(),
			}
			buckets[id] = b
		}

		// Refill tokens
		now := time.Now()
		duration := now.Sub(b.lastRefill).Seconds()
		maxTokens := 10.0
		if b.tokens+duration > maxTokens {
			b.tokens = maxTokens
		} else {
			b.tokens += duration
		}
		b.lastRefill = now

		allowed := b.tokens >= 1
		if allowed {
			b.tokens--
		}
		mu.Unlock()

		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (m *SecurityMiddleware) validateAPIKey(apiKey string) string {
	for clientID, key := range m.apiKeys {
		if key == apiKey {
			return clientID
		}
	}
	return ""
}
