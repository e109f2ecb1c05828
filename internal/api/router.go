package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"transport-dispatch-backend/config"
	"transport-dispatch-backend/internal/dispatch"
	"transport-dispatch-backend/internal/mw"
	"transport-dispatch-backend/internal/store"
	"transport-dispatch-backend/internal/tracker"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.ServerConfig, s store.Store, coord *dispatch.Coordinator, t *tracker.Service, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, coord, t, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, cfg.RequestIPHeader)

	// Short response cache for the read-mostly tracker views only; the
	// request store has its own TTL cache underneath.
	responseTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := gocache.New(responseTTL, 0)
	caching := mw.ResponseCache(cacheStore, responseTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/requests", handler.GetRequests)
		api.POST("/requests", handler.CreateRequest)
		api.GET("/requests/:id", handler.GetRequest)
		api.PATCH("/requests/:id", handler.UpdateRequest)
		api.DELETE("/requests/:id", handler.DeleteRequest)
		api.PATCH("/requests/:id/status", handler.TransitionRequest)

		api.POST("/requests/:id/assign", handler.AutoAssign)
		api.POST("/requests/:id/assign/manual", handler.ManualAssign)

		api.GET("/vehicles", caching, handler.GetVehicles)
		api.GET("/alerts", caching, handler.GetAlerts)
		api.POST("/alerts/:id/resolve", handler.ResolveAlert)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
