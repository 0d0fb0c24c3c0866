package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quidome/carvtrainer-go/pkg/analysis"
	"github.com/quidome/carvtrainer-go/pkg/config"
	"github.com/quidome/carvtrainer-go/pkg/createdat"
	"github.com/quidome/carvtrainer-go/pkg/jsontext"
)

const (
	imagesField = "images"

	// timestampLayout matches the naive local timestamps the frontend already parses.
	timestampLayout = "2006-01-02T15:04:05.000000"

	rawResponseLimit  = 500
	metadataWorkers   = 4
	analysisFailedMsg = "Something went wrong during analysis. Error: "
	planFailedMsg     = "Something went wrong generating your training plan. Error: "
)

// Analyzer is the model-backed work behind /analyze and /generate-plan.
type Analyzer interface {
	AnalyzeScreenshots(ctx context.Context, images []analysis.Image) (map[string]any, string, error)
	GeneratePlan(ctx context.Context, data map[string]any) (analysis.Plan, error)
}

type Handler struct {
	analyzer Analyzer
	resolver createdat.Resolver
	cfg      *config.Config
	log      *zap.Logger
	now      func() time.Time
}

func NewHandler(analyzer Analyzer, cfg *config.Config, log *zap.Logger) *Handler {
	return &Handler{
		analyzer: analyzer,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

func (h *Handler) timestamp() string {
	return h.now().Format(timestampLayout)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "healthy",
		"api_key_configured": h.cfg.Model.APIKey() != "",
		"timestamp":          h.timestamp(),
	})
}

// uploads returns the image parts of a multipart request. present reports whether the
// images field was sent at all; parts with an empty filename arrive as plain values and
// are counted in empty.
func uploads(c *gin.Context) (files []*multipart.FileHeader, empty int, present bool) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, 0, false
	}
	files = form.File[imagesField]
	empty = len(form.Value[imagesField])
	return files, empty, len(files) > 0 || empty > 0
}

func (h *Handler) ExtractMetadata(c *gin.Context) {
	files, _, present := uploads(c)
	if !present {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "No image files provided",
			"message": "Please upload images to extract metadata",
		})
		return
	}

	named := make([]*multipart.FileHeader, 0, len(files))
	for _, fh := range files {
		if fh.Filename != "" {
			named = append(named, fh)
		}
	}

	results := make([]createdat.Result, len(named))
	g, _ := errgroup.WithContext(c.Request.Context())
	g.SetLimit(metadataWorkers)
	for i, fh := range named {
		g.Go(func() error {
			data, err := readUpload(fh)
			if err != nil {
				return err
			}
			results[i] = h.resolver.Resolve(fh.Filename, data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.log.Error("Failed to extract metadata", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Metadata extraction failed",
			"message": err.Error(),
		})
		return
	}

	h.log.Debug("Metadata extracted", zap.Int("files", len(results)))

	c.JSON(http.StatusOK, gin.H{
		"metadata":     results,
		"extracted_at": h.timestamp(),
	})
}

func (h *Handler) Analyze(c *gin.Context) {
	files, empty, present := uploads(c)
	if !present {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "No image files provided",
			"message": "Please upload at least one CARV screenshot",
		})
		return
	}
	if len(files) == 0 && empty == 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "No files selected",
			"message": "Please select at least one CARV screenshot to upload",
		})
		return
	}

	maxBytes := h.cfg.Server.MaxUploadBytes
	images := make([]analysis.Image, 0, len(files))
	filenames := make([]string, 0, len(files))
	for _, fh := range files {
		if fh.Filename == "" {
			continue
		}
		if fh.Size > maxBytes {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "File too large",
				"message": fmt.Sprintf("%s is larger than %s", fh.Filename, humanBytes(maxBytes)),
			})
			return
		}

		data, err := readUpload(fh)
		if err != nil {
			h.log.Error("Failed to read upload", zap.String("filename", fh.Filename), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Analysis failed",
				"message": analysisFailedMsg + err.Error(),
			})
			return
		}

		images = append(images, analysis.Image{
			Filename:  fh.Filename,
			MediaType: analysis.MediaType(fh.Filename),
			Data:      data,
		})
		filenames = append(filenames, fh.Filename)
	}

	if len(images) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "No valid images",
			"message": "Please upload at least one valid image file",
		})
		return
	}

	result, raw, err := h.analyzer.AnalyzeScreenshots(c.Request.Context(), images)
	if err != nil {
		if errors.Is(err, jsontext.ErrUnparseable) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":        "Failed to parse AI response",
				"message":      "The AI response wasn't in the expected format. Please try again.",
				"raw_response": truncateRunes(raw, rawResponseLimit),
			})
			return
		}
		h.modelError(c, err, "Analysis failed", analysisFailedMsg)
		return
	}

	result["analyzed_at"] = h.timestamp()
	result["filenames"] = filenames
	result["num_screenshots"] = len(images)

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GeneratePlan(c *gin.Context) {
	maxBytes := h.cfg.Server.MaxUploadBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

	var data map[string]any
	body, err := io.ReadAll(c.Request.Body)
	if tooLarge := (*http.MaxBytesError)(nil); errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":   "Request too large",
			"message": fmt.Sprintf("Analysis data is larger than %s", humanBytes(maxBytes)),
		})
		return
	}
	if err == nil && len(body) > 0 {
		err = json.Unmarshal(body, &data)
	}
	if err != nil || len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "No analysis data provided",
			"message": "Please analyze screenshots first before generating a training plan",
		})
		return
	}

	plan, err := h.analyzer.GeneratePlan(c.Request.Context(), data)
	if err != nil {
		h.modelError(c, err, "Plan generation failed", planFailedMsg)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"training_plan":        plan.TrainingPlan,
		"generated_at":         h.timestamp(),
		"based_on_ski_iq":      plan.SkiIQ,
		"based_on_screenshots": plan.NumRuns,
	})
}

func (h *Handler) modelError(c *gin.Context, err error, title, prefix string) {
	switch analysis.Classify(err) {
	case analysis.KindAuth:
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "API Key Error",
			"message": "Your API key is missing or invalid. Please check your .env file.",
		})
	case analysis.KindRateLimit:
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":   "Rate Limited",
			"message": "Too many requests. Please wait a moment and try again.",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   title,
			"message": prefix + err.Error(),
		})
	}
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return data, nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func humanBytes(n int64) string {
	const mb = 1024 * 1024
	if n >= mb && n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}
