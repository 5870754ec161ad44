package ports

import (
	"github.com/gin-gonic/gin"
)

type HTTPHandler interface {
	ResolveConfig(c *gin.Context)
	ListCameras(c *gin.Context)

	GetStatus(c *gin.Context)
	StartSession(c *gin.Context)
	StopSession(c *gin.Context)
	SetVideoConfig(c *gin.Context)
	SetAudioConfig(c *gin.Context)
	SetCamera(c *gin.Context)
	SetTorch(c *gin.Context)
	SetZoom(c *gin.Context)
	SetMute(c *gin.Context)

	Connect(c *gin.Context)
	ListConnections(c *gin.Context)
	ReleaseConnection(c *gin.Context)
	DisconnectAll(c *gin.Context)

	SetStatsInterval(c *gin.Context)
	GetStats(c *gin.Context)

	StartRecord(c *gin.Context)
	StopRecord(c *gin.Context)
	TakeSnapshot(c *gin.Context)
}
