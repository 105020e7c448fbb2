package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/edubridge/campusconnect/internal/http/handlers"
	httpMW "github.com/edubridge/campusconnect/internal/http/middleware"
)

type RouterConfig struct {
	HealthHandler     *httpH.HealthHandler
	BrokerHandler     *httpH.BrokerHandler
	SyncHandler       *httpH.SyncHandler
	DirectoryHandler  *httpH.DirectoryHandler
	ExportHandler     *httpH.ExportHandler
	CourseLinkHandler *httpH.CourseLinkHandler

	// CORSOrigins restricts browser origins; empty allows all.
	CORSOrigins []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Queue backlog + manual sync
		if cfg.SyncHandler != nil {
			api.GET("/queue", cfg.SyncHandler.QueueDepths)
			api.POST("/sync", cfg.SyncHandler.RunAll)
		}

		// Broker connections
		if cfg.BrokerHandler != nil {
			api.GET("/brokers", cfg.BrokerHandler.List)
			api.GET("/brokers/:brokerID", cfg.BrokerHandler.Get)
			api.PUT("/brokers/:brokerID", cfg.BrokerHandler.Save)
			api.DELETE("/brokers/:brokerID", cfg.BrokerHandler.Delete)
		}
		if cfg.SyncHandler != nil {
			api.POST("/brokers/:brokerID/sync", cfg.SyncHandler.RunBroker)
			api.POST("/brokers/:brokerID/refresh", cfg.SyncHandler.Refresh)
		}

		// Directory mapping
		if cfg.DirectoryHandler != nil {
			api.GET("/brokers/:brokerID/trees", cfg.DirectoryHandler.ListTrees)
			api.GET("/brokers/:brokerID/trees/:rootID/nodes", cfg.DirectoryHandler.ListNodes)
			api.POST("/brokers/:brokerID/trees/:rootID/mode", cfg.DirectoryHandler.SetMode)
			api.POST("/brokers/:brokerID/trees/:rootID/nodes/:directoryID/map", cfg.DirectoryHandler.Map)
			api.POST("/brokers/:brokerID/trees/:rootID/nodes/:directoryID/unmap", cfg.DirectoryHandler.Unmap)
		}

		// Outbound course exports
		if cfg.ExportHandler != nil {
			api.PUT("/brokers/:brokerID/courses/:courseID/exports", cfg.ExportHandler.SetTargets)
		}

		// Course link redirect and inbound token verification
		if cfg.CourseLinkHandler != nil {
			api.GET("/brokers/:brokerID/courses/:courseID/link", cfg.CourseLinkHandler.Redirect)
			api.POST("/brokers/:brokerID/tokens/verify", cfg.CourseLinkHandler.VerifyToken)
		}
	}

	return r
}
