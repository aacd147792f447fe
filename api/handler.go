package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"vidpress/config"
	"vidpress/ffmpeg"
	"vidpress/job"
	"vidpress/pipeline"
	"vidpress/storage"
)

type Handler struct {
	cfg    *config.Config
	jobs   *job.Store
	files  *storage.Manager
	prober pipeline.Prober
	orch   *pipeline.Orchestrator
}

func NewHandler(cfg *config.Config, jobs *job.Store, files *storage.Manager, prober pipeline.Prober, orch *pipeline.Orchestrator) *Handler {
	return &Handler{
		cfg:    cfg,
		jobs:   jobs,
		files:  files,
		prober: prober,
		orch:   orch,
	}
}

func (h *Handler) handleHealth(c *gin.Context) {
	availability := "не найден"
	if ffmpeg.Available(h.cfg.FFBin) {
		availability = "доступен"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Сервер работает",
		"ffmpeg":  availability,
	})
}

type videoInfoBlock struct {
	Codec  string   `json:"codec"`
	Width  int      `json:"width"`
	Height int      `json:"height"`
	FPS    *float64 `json:"fps"`
}

type audioInfoBlock struct {
	Codec    string `json:"codec"`
	Channels int    `json:"channels"`
}

// handleInfo probes the upload and returns its metadata synchronously. The
// stored input is removed on the way out; nothing else references it.
func (h *Handler) handleInfo(c *gin.Context) {
	in, ok := h.acceptUpload(c, "Файл не загружен")
	if !ok {
		return
	}
	defer h.files.ScheduleRemoval(in.Path, 0)

	info, err := h.prober.Probe(c.Request.Context(), in.Path)
	if err != nil {
		log.Printf("info probe failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка анализа видео"})
		return
	}

	var video *videoInfoBlock
	if info.Video != nil {
		video = &videoInfoBlock{
			Codec:  info.Video.Codec,
			Width:  info.Video.Width,
			Height: info.Video.Height,
		}
		if info.Video.FPS > 0 {
			fps := info.Video.FPS
			video.FPS = &fps
		}
	}
	var audio *audioInfoBlock
	if info.Audio != nil {
		audio = &audioInfoBlock{Codec: info.Audio.Codec, Channels: info.Audio.Channels}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"filename": in.OriginalName,
		"size":     in.Size,
		"duration": info.Duration,
		"format":   info.Format,
		"video":    video,
		"audio":    audio,
	})
}

func (h *Handler) handleCompressSize(c *gin.Context) {
	target, err := strconv.ParseFloat(c.PostForm("targetSize"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Недостаточно данных"})
		return
	}
	in, ok := h.acceptUpload(c, "Недостаточно данных")
	if !ok {
		return
	}

	jobID := h.jobs.Create()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"jobId":   jobID,
		"message": "Начинаем обработку...",
	})

	go h.orch.CompressToSize(context.Background(), jobID, in, target)
}

func (h *Handler) handleCompressPercent(c *gin.Context) {
	percent, err := strconv.Atoi(c.PostForm("percent"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Недостаточно данных"})
		return
	}
	in, ok := h.acceptUpload(c, "Недостаточно данных")
	if !ok {
		return
	}
	defer h.files.ScheduleRemoval(in.Path, 0)

	out, err := h.orch.CompressByPercent(c.Request.Context(), in, percent)
	if err != nil {
		log.Printf("percent compression failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка сжатия видео"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"message":          "Видео успешно сжато",
		"originalFile":     out.OriginalFile,
		"processedFile":    out.ProcessedFile,
		"downloadUrl":      out.DownloadURL,
		"originalSize":     out.OriginalSize,
		"compressedSize":   out.CompressedSize,
		"compressionRatio": out.CompressionRatio,
		"targetPercent":    out.TargetPercent,
	})
}

func (h *Handler) handleConvert(c *gin.Context) {
	format := strings.TrimSpace(c.PostForm("format"))
	if format == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Недостаточно данных"})
		return
	}
	quality := qualityOrDefault(c.PostForm("quality"))
	in, ok := h.acceptUpload(c, "Недостаточно данных")
	if !ok {
		return
	}

	jobID := h.jobs.Create()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"jobId":   jobID,
		"message": "Начинаем конвертацию...",
	})

	go h.orch.Convert(context.Background(), jobID, in, format, quality)
}

func (h *Handler) handleCompressConvert(c *gin.Context) {
	format := strings.TrimSpace(c.PostForm("format"))
	target, err := strconv.ParseFloat(c.PostForm("targetSize"), 64)
	if format == "" || err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Недостаточно данных"})
		return
	}
	quality := qualityOrDefault(c.PostForm("quality"))
	in, ok := h.acceptUpload(c, "Недостаточно данных")
	if !ok {
		return
	}

	jobID := h.jobs.Create()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"jobId":   jobID,
		"message": "Начинаем обработку...",
	})

	go h.orch.CompressConvert(context.Background(), jobID, in, format, target, quality)
}

// handleStatus always answers 200: unknown ids get a synthetic record so
// pollers see a uniform shape instead of a hard error.
func (h *Handler) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.jobs.Get(c.Param("jobId")))
}

// handleDownload streams an output file as an attachment and schedules its
// deletion after the grace period so retried downloads still succeed.
func (h *Handler) handleDownload(c *gin.Context) {
	filename := c.Param("filename")
	if decoded, err := url.QueryUnescape(filename); err == nil {
		filename = decoded
	}

	path, err := h.files.Resolve(filename)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Файл не найден"})
		return
	}

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(path); err == nil {
		contentType = mt.String()
	}

	base := filepath.Base(path)
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`,
		toASCII(base), url.PathEscape(base)))
	c.File(path)

	h.files.ScheduleRemoval(path, h.cfg.DownloadGrace)
}

// acceptUpload checks the disk guard, then stores the multipart "video"
// part under a generated name. Replies for the caller on failure.
func (h *Handler) acceptUpload(c *gin.Context, missingMsg string) (pipeline.Input, bool) {
	fh, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": missingMsg})
		return pipeline.Input{}, false
	}

	if err := h.files.CheckDiskSpace(); err != nil {
		log.Printf("upload rejected: %v", err)
		c.JSON(http.StatusInsufficientStorage, gin.H{"error": "Недостаточно места на диске"})
		return pipeline.Input{}, false
	}

	path, err := h.files.SaveUpload(fh)
	if err != nil {
		log.Printf("upload store failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ошибка загрузки файла"})
		return pipeline.Input{}, false
	}

	return pipeline.Input{
		Path:         path,
		OriginalName: fh.Filename,
		Size:         fh.Size,
	}, true
}

func qualityOrDefault(q string) string {
	switch q {
	case "high", "medium", "low":
		return q
	default:
		return "medium"
	}
}

// toASCII degrades a filename to the printable ASCII range for the plain
// Content-Disposition filename; the UTF-8 variant carries the real name.
func toASCII(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 0x20 && r <= 0x7E {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
