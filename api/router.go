package api

import (
	"github.com/gin-gonic/gin"

	"vidpress/config"
	"vidpress/job"
	"vidpress/pipeline"
	"vidpress/storage"
)

func SetupRouter(cfg *config.Config, jobs *job.Store, files *storage.Manager, prober pipeline.Prober, orch *pipeline.Orchestrator) *gin.Engine {
	r := gin.Default()
	r.MaxMultipartMemory = 32 << 20
	r.Use(CORSMiddleware())

	h := NewHandler(cfg, jobs, files, prober, orch)

	api := r.Group("/api")
	{
		api.GET("/health", h.handleHealth)
		api.GET("/processing-status/:jobId", h.handleStatus)
		api.GET("/download/:filename", h.handleDownload)

		video := api.Group("/video")
		{
			video.POST("/info", h.handleInfo)
			video.POST("/compress/size", h.handleCompressSize)
			video.POST("/compress/percent", h.handleCompressPercent)
			video.POST("/convert", h.handleConvert)
			video.POST("/compress-convert", h.handleCompressConvert)
		}
	}
	return r
}
