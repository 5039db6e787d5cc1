package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codyseavey/tcg-scan/internal/ocr"
	"github.com/codyseavey/tcg-scan/internal/services"
)

// maxImageBytes caps uploaded card photos.
const maxImageBytes = 10 << 20

type CardHandler struct {
	identifier *services.CardIdentifier
	catalog    *services.CatalogStore
	runs       *services.OCRRunRecorder
	logger     *zap.Logger
}

// NewCardHandler wires the identify and card endpoints. runs may be nil when
// OCR runs are not persisted.
func NewCardHandler(identifier *services.CardIdentifier, catalog *services.CatalogStore, runs *services.OCRRunRecorder, logger *zap.Logger) *CardHandler {
	return &CardHandler{
		identifier: identifier,
		catalog:    catalog,
		runs:       runs,
		logger:     logger.Named("cards"),
	}
}

// IdentifyCard runs the pipeline on OCR text supplied by the client.
func (h *CardHandler) IdentifyCard(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	result, err := h.identifier.IdentifyText(c.Request.Context(), req.Text)
	if err != nil {
		h.logger.Error("identification failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// IdentifyCardFromImage runs OCR on an uploaded image, then the pipeline.
// The image comes either as multipart field "image" or as base64 in a JSON body.
func (h *CardHandler) IdentifyCardFromImage(c *gin.Context) {
	if !h.identifier.OCRAvailable() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Card identification from images is not available",
			"message": "OCR engine not configured",
		})
		return
	}

	filename, image, err := readImage(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.identifier.IdentifyImage(c.Request.Context(), filename, image)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)
	case errors.Is(err, services.ErrEmptyImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "image is empty"})
	case errors.Is(err, services.ErrOCRUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, ocr.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, result)
	default:
		h.logger.Warn("image identification failed",
			zap.String("filename", filename),
			zap.Int64("elapsed_ms", result.ElapsedMS),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, result)
	}
}

func readImage(c *gin.Context) (string, []byte, error) {
	if file, err := c.FormFile("image"); err == nil {
		if file.Size > maxImageBytes {
			return "", nil, errors.New("image exceeds 10MB limit")
		}
		src, err := file.Open()
		if err != nil {
			return "", nil, errors.New("failed to open uploaded file")
		}
		defer src.Close()

		var buf bytes.Buffer
		if _, err := buf.ReadFrom(src); err != nil {
			return "", nil, errors.New("failed to read uploaded file")
		}
		return file.Filename, buf.Bytes(), nil
	}

	var req struct {
		Image    string `json:"image" binding:"required"` // base64, optionally a data URL
		Filename string `json:"filename"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return "", nil, errors.New("upload an image file or provide a base64 image in the JSON body")
	}
	data, err := ocr.DecodeBase64Image(req.Image)
	if err != nil {
		return "", nil, err
	}
	if len(data) > maxImageBytes {
		return "", nil, errors.New("image exceeds 10MB limit")
	}
	return req.Filename, data, nil
}

// GetOCRStatus reports whether image identification is available.
func (h *CardHandler) GetOCRStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ocr_available":      h.identifier.OCRAvailable(),
		"runs_persisted":     h.runs != nil,
		"vocabulary_version": h.identifier.VocabularyVersion(),
	})
}

// GetCard returns one card with its latest prices.
func (h *CardHandler) GetCard(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "card id must be a positive integer"})
		return
	}

	card, err := h.catalog.GetCard(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if card == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}
	c.JSON(http.StatusOK, card)
}

// ListRuns returns the most recent recorded OCR runs.
func (h *CardHandler) ListRuns(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "OCR runs are not persisted"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := h.runs.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}
