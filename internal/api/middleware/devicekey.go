package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/JvSe/deep-logs/internal/database/models"
	"github.com/JvSe/deep-logs/internal/metrics"
	"github.com/JvSe/deep-logs/internal/services"
	"github.com/gin-gonic/gin"
)

const (
	// APIKeyHeader is the header devices send their key in
	APIKeyHeader = "X-API-Key"

	deviceKeyContextKey = "device_key"
)

// DeviceKeyAuthenticator resolves the secret sent by a device
type DeviceKeyAuthenticator interface {
	Authenticate(ctx context.Context, secret string) (*models.DeviceKey, error)
}

// DeviceKeyMiddleware admits requests carrying an active device key, stores
// the key in the request context and counts the request against it.
// Rejections are counted as unauthorized ingest events.
func DeviceKeyMiddleware(keys DeviceKeyAuthenticator, m *metrics.IngestMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := c.GetHeader(APIKeyHeader)
		if secret == "" {
			m.Event(metrics.StatusUnauthorized)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "API key is required",
			})
			return
		}

		key, err := keys.Authenticate(c.Request.Context(), secret)
		switch {
		case err == nil:
		case errors.Is(err, services.ErrDeviceKeyNotFound):
			m.Event(metrics.StatusUnauthorized)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			return
		case errors.Is(err, services.ErrDeviceKeyRevoked):
			m.Event(metrics.StatusUnauthorized)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "API key has been revoked",
			})
			return
		default:
			log.Printf("[API] %s %s: device key lookup failed: %v", c.Request.Method, c.Request.URL.Path, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "internal error",
			})
			return
		}

		m.KeyUse(key.Name)
		SetDeviceKey(c, key)
		c.Next()
	}
}

// SetDeviceKey attaches the authenticated device key to the request context
func SetDeviceKey(c *gin.Context, key *models.DeviceKey) {
	c.Set(deviceKeyContextKey, key)
}

// GetDeviceKey retrieves the device key from the request context
func GetDeviceKey(c *gin.Context) (*models.DeviceKey, bool) {
	v, exists := c.Get(deviceKeyContextKey)
	if !exists {
		return nil, false
	}
	key, ok := v.(*models.DeviceKey)
	return key, ok
}
