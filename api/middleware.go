package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brpix/pix-processor/models"
	"github.com/brpix/pix-processor/utils"
)

// ApiClientFetcher resolves an api-key header to a registered client.
type ApiClientFetcher interface {
	FetchApiClientByKey(apiKey string) utils.Result[*models.ApiClient]
}

// APIKeyAuth accepts either the static master key or the key of an active
// registered client.
func APIKeyAuth(masterKey string, clients ApiClientFetcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("api-key")
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "API key is required",
			})
			return
		}

		if masterKey != "" && apiKey == masterKey {
			c.Next()
			return
		}

		result := clients.FetchApiClientByKey(apiKey)
		if result.Failure() {
			status := http.StatusUnauthorized
			message := "Invalid API key"
			if result.IsRetryable() {
				status = http.StatusInternalServerError
				message = "Authentication failed"
			}

			c.AbortWithStatusJSON(status, gin.H{
				"success": false,
				"error":   message,
			})
			return
		}

		c.Set("client", result.Value())
		c.Next()
	}
}
