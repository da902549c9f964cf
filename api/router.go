package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brpix/pix-processor/models"
)

// RouterStore is the store surface the HTTP layer needs: charge lookups for
// the status endpoint plus api-key resolution for auth.
type RouterStore interface {
	models.ChargeStorer
	ApiClientFetcher
}

type RouterConfig struct {
	MasterAPIKey string
	ArtifactDir  string
}

func NewRouter(issuer ChargeIssuing, store RouterStore, cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "pix-processor"})
	})

	r.Static("/qrcodes", cfg.ArtifactDir)

	paymentHandler := NewPaymentHandler(issuer, store)
	payments := r.Group("/api/payments", APIKeyAuth(cfg.MasterAPIKey, store))
	{
		payments.POST("/pix/create", paymentHandler.CreatePixPayment)
		payments.GET("/status", paymentHandler.GetPaymentStatus)
	}

	return r
}
