package http

import (
	"net/http"
	"strconv"

	"castmux/internal/core/domain"
	"castmux/internal/core/ports"
	"castmux/internal/core/services"
	apperrors "castmux/pkg/errors"
	"castmux/pkg/validation"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	session ports.SessionService
}

func NewSessionHandler(session ports.SessionService) *SessionHandler {
	return &SessionHandler{session: session}
}

// SetupRoutes mounts the control API on group, normally "/api/v1".
func (h *SessionHandler) SetupRoutes(api *gin.RouterGroup) {
	api.POST("/config/resolve", h.ResolveConfig)
	api.GET("/cameras", h.ListCameras)

	session := api.Group("/session")
	{
		session.GET("", h.GetStatus)
		session.POST("/start", h.StartSession)
		session.POST("/stop", h.StopSession)
		session.PUT("/video", h.SetVideoConfig)
		session.PUT("/audio", h.SetAudioConfig)
		session.PUT("/camera", h.SetCamera)
		session.PUT("/torch", h.SetTorch)
		session.PUT("/zoom", h.SetZoom)
		session.PUT("/mute", h.SetMute)
	}

	api.POST("/connections", h.Connect)
	api.GET("/connections", h.ListConnections)
	api.DELETE("/connections", h.DisconnectAll)
	api.DELETE("/connections/:id", h.ReleaseConnection)

	api.PUT("/stats/interval", h.SetStatsInterval)
	api.GET("/stats", h.GetStats)

	api.POST("/record/start", h.StartRecord)
	api.POST("/record/stop", h.StopRecord)
	api.POST("/snapshot", h.TakeSnapshot)
}

type targetRequest struct {
	Target  string                   `json:"target"`
	Options map[string]interface{}   `json:"options"`
	Config  *domain.ConnectionConfig `json:"config"`
}

// destination is the target the resolver will use: the explicit target, else
// options.url.
func (r targetRequest) destination() string {
	if r.Target != "" {
		return r.Target
	}
	url, _ := r.Options["url"].(string)
	return url
}

// cameraView is the wire form of a camera: sizes as "WxH", fps ranges as "30" or
// "15-30", and maxZoom only for cameras that can zoom.
type cameraView struct {
	CameraID        string       `json:"cameraId"`
	LensFacing      string       `json:"lensFacing"`
	TorchSupported  bool         `json:"isTorchSupported"`
	RecordSizes     []string     `json:"recordSizes"`
	FpsRanges       []string     `json:"fpsRanges"`
	MaxZoom         *float64     `json:"maxZoom,omitempty"`
	PhysicalCameras []cameraView `json:"physicalCameras,omitempty"`
}

func newCameraView(c domain.CameraDescriptor) cameraView {
	v := cameraView{
		CameraID:       c.ID,
		LensFacing:     c.Facing.String(),
		TorchSupported: c.TorchSupported,
		RecordSizes:    make([]string, 0, len(c.RecordSizes)),
		FpsRanges:      make([]string, 0, len(c.FpsRanges)),
	}
	for _, s := range c.RecordSizes {
		v.RecordSizes = append(v.RecordSizes, s.String())
	}
	for _, r := range c.FpsRanges {
		v.FpsRanges = append(v.FpsRanges, services.FormatFpsRange(r))
	}
	if c.ZoomSupported {
		maxZoom := c.MaxZoom
		v.MaxZoom = &maxZoom
	}
	for _, p := range c.PhysicalCameras {
		v.PhysicalCameras = append(v.PhysicalCameras, newCameraView(p))
	}
	return v
}

// bind decodes the JSON body into req, recording a 400 on failure.
func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		_ = c.Error(apperrors.NewInvalidInputError(err.Error()))
		return false
	}
	return true
}

// valid records a 400 for err and reports whether the input passed.
func valid(c *gin.Context, err error) bool {
	if err != nil {
		_ = c.Error(apperrors.NewInvalidInputError(err.Error()))
		return false
	}
	return true
}

// respond writes body with status, or records err for the error middleware.
func respond(c *gin.Context, err error, status int, body interface{}) {
	if err != nil {
		_ = c.Error(err)
		return
	}
	if body == nil {
		c.Status(status)
		return
	}
	c.JSON(status, body)
}

func (h *SessionHandler) ResolveConfig(c *gin.Context) {
	var req targetRequest
	if !bind(c, &req) || !valid(c, validation.ValidateTarget(req.destination())) {
		return
	}
	cfg, err := h.session.ResolveConfig(req.Target, domain.Options(req.Options))
	respond(c, err, http.StatusOK, gin.H{"config": cfg})
}

func (h *SessionHandler) ListCameras(c *gin.Context) {
	cameras, err := h.session.Cameras(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	views := make([]cameraView, 0, len(cameras))
	for _, camera := range cameras {
		views = append(views, newCameraView(camera))
	}
	body := gin.H{"cameras": views}
	if active, err := h.session.ActiveCamera(c.Request.Context()); err == nil {
		body["active"] = active.ID
	}
	c.JSON(http.StatusOK, body)
}

func (h *SessionHandler) GetStatus(c *gin.Context) {
	status, err := h.session.Status(c.Request.Context())
	respond(c, err, http.StatusOK, status)
}

func (h *SessionHandler) StartSession(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.session.Start(ctx); err != nil {
		_ = c.Error(err)
		return
	}
	status, err := h.session.Status(ctx)
	respond(c, err, http.StatusOK, status)
}

func (h *SessionHandler) StopSession(c *gin.Context) {
	respond(c, h.session.Stop(c.Request.Context()), http.StatusNoContent, nil)
}

func (h *SessionHandler) SetVideoConfig(c *gin.Context) {
	var req struct {
		Options map[string]interface{} `json:"options" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	respond(c, h.session.SetVideoConfig(c.Request.Context(), req.Options), http.StatusNoContent, nil)
}

func (h *SessionHandler) SetAudioConfig(c *gin.Context) {
	var req struct {
		Options map[string]interface{} `json:"options" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	respond(c, h.session.SetAudioConfig(c.Request.Context(), req.Options), http.StatusNoContent, nil)
}

func (h *SessionHandler) SetCamera(c *gin.Context) {
	var req struct {
		CameraID   string `json:"camera_id"`
		LensFacing string `json:"lens_facing"`
	}
	if !bind(c, &req) {
		return
	}
	if req.CameraID == "" && req.LensFacing == "" {
		_ = c.Error(apperrors.NewInvalidInputError("camera_id or lens_facing is required"))
		return
	}
	if req.CameraID != "" && !valid(c, validation.ValidateCameraID(req.CameraID)) {
		return
	}
	if !valid(c, validation.ValidateLensFacing(req.LensFacing)) {
		return
	}
	err := h.session.SetCamera(c.Request.Context(), req.CameraID, domain.ParseLensFacing(req.LensFacing))
	respond(c, err, http.StatusAccepted, nil)
}

func (h *SessionHandler) SetTorch(c *gin.Context) {
	var req struct {
		On *bool `json:"on" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	respond(c, h.session.SetTorch(c.Request.Context(), *req.On), http.StatusNoContent, nil)
}

func (h *SessionHandler) SetZoom(c *gin.Context) {
	var req struct {
		Factor float64 `json:"factor" binding:"required,gt=0"`
	}
	if !bind(c, &req) || !valid(c, validation.ValidateZoom(req.Factor)) {
		return
	}
	respond(c, h.session.SetZoom(c.Request.Context(), req.Factor), http.StatusNoContent, nil)
}

func (h *SessionHandler) SetMute(c *gin.Context) {
	var req struct {
		Mute *bool `json:"mute" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	respond(c, h.session.SetMute(c.Request.Context(), *req.Mute), http.StatusNoContent, nil)
}

// Connect accepts either a target string with options or an explicit config.
func (h *SessionHandler) Connect(c *gin.Context) {
	var req targetRequest
	if !bind(c, &req) {
		return
	}

	if req.Config == nil && !valid(c, validation.ValidateTarget(req.destination())) {
		return
	}

	var (
		handle domain.ConnectionHandle
		err    error
	)
	if req.Config != nil {
		handle, err = h.session.ConnectConfig(c.Request.Context(), *req.Config)
	} else {
		handle, err = h.session.Connect(c.Request.Context(), req.Target, domain.Options(req.Options))
	}
	respond(c, err, http.StatusCreated, gin.H{"connection_id": handle})
}

func (h *SessionHandler) ListConnections(c *gin.Context) {
	connections, err := h.session.Connections(c.Request.Context())
	respond(c, err, http.StatusOK, gin.H{"connections": connections})
}

func (h *SessionHandler) DisconnectAll(c *gin.Context) {
	respond(c, h.session.DisconnectAll(c.Request.Context()), http.StatusNoContent, nil)
}

func (h *SessionHandler) ReleaseConnection(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 0 {
		_ = c.Error(apperrors.NewInvalidInputError("connection id must be a non-negative integer"))
		return
	}
	err = h.session.ReleaseConnection(c.Request.Context(), domain.ConnectionHandle(id))
	respond(c, err, http.StatusNoContent, nil)
}

func (h *SessionHandler) SetStatsInterval(c *gin.Context) {
	var req struct {
		Seconds *float64 `json:"seconds" binding:"required"`
	}
	if !bind(c, &req) || !valid(c, validation.ValidateStatsInterval(*req.Seconds)) {
		return
	}
	respond(c, h.session.SetStatsInterval(c.Request.Context(), *req.Seconds), http.StatusNoContent, nil)
}

func (h *SessionHandler) GetStats(c *gin.Context) {
	snapshot, err := h.session.LatestStats(c.Request.Context())
	respond(c, err, http.StatusOK, snapshot)
}

func (h *SessionHandler) StartRecord(c *gin.Context) {
	var req struct {
		Filename string `json:"filename"`
	}
	if c.Request.ContentLength > 0 && !bind(c, &req) {
		return
	}
	if req.Filename != "" && !valid(c, validation.ValidateFilename(req.Filename, validation.RecordingExtensions)) {
		return
	}
	respond(c, h.session.StartRecord(c.Request.Context(), req.Filename), http.StatusAccepted, nil)
}

func (h *SessionHandler) StopRecord(c *gin.Context) {
	respond(c, h.session.StopRecord(c.Request.Context()), http.StatusAccepted, nil)
}

func (h *SessionHandler) TakeSnapshot(c *gin.Context) {
	var req struct {
		Filename string `json:"filename"`
	}
	if c.Request.ContentLength > 0 && !bind(c, &req) {
		return
	}
	if req.Filename != "" && !valid(c, validation.ValidateFilename(req.Filename, validation.SnapshotExtensions)) {
		return
	}
	respond(c, h.session.TakeSnapshot(c.Request.Context(), req.Filename), http.StatusAccepted, nil)
}

var _ ports.HTTPHandler = (*SessionHandler)(nil)
