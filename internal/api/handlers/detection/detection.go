// Package detection 提供食材辨識的 HTTP 處理器。
package detection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"ingredient-detector/internal/core/ai/image"
	"ingredient-detector/internal/core/ai/vision"
	detectionService "ingredient-detector/internal/core/detection"
	"ingredient-detector/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// imageField multipart 圖片欄位名稱
const imageField = "image"

// Detector 食材辨識服務
type Detector interface {
	DetectIngredients(ctx context.Context, image []byte, opts detectionService.Options) (*detectionService.Result, error)
	AvailableProviders() []vision.Provider
	DefaultProvider() (vision.Provider, bool)
}

// UploadQuery 上傳辨識的查詢參數
type UploadQuery struct {
	MaxResults          *int     `form:"maxResults" binding:"omitempty,min=1,max=20"`
	ConfidenceThreshold *float64 `form:"confidenceThreshold" binding:"omitempty,min=0.1,max=1"`
	Provider            string   `form:"provider" binding:"omitempty,oneof=openai gemini"`
}

// UploadResponse 上傳辨識響應
type UploadResponse struct {
	DetectedIngredients []detectionService.MatchedIngredient `json:"detectedIngredients"`
	TotalDetected       int                                  `json:"totalDetected"`
}

// ProvidersResponse 可用供應商
type ProvidersResponse struct {
	Providers []vision.Provider `json:"providers"`
	Default   *vision.Provider  `json:"default"`
}

// Handler 食材辨識處理器
type Handler struct {
	detector Detector
	images   *image.Processor
	maxSize  int64
}

// NewHandler 創建食材辨識處理器
func NewHandler(detector Detector, images *image.Processor, maxSize int64) *Handler {
	return &Handler{detector: detector, images: images, maxSize: maxSize}
}

// HandleUpload 處理 multipart 圖片上傳並辨識食材
func (h *Handler) HandleUpload(c *gin.Context) {
	requestID := requestid.Get(c)

	var query UploadQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		common.LogWarn("查詢參數無效",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		common.WriteError(c, common.NewInputError("invalid query parameters", err))
		return
	}

	data, err := h.readImage(c)
	if err != nil {
		common.LogWarn("圖片無效",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		common.WriteError(c, err)
		return
	}

	opts := detectionService.Options{Provider: vision.Provider(query.Provider)}
	if query.MaxResults != nil {
		opts.MaxResults = *query.MaxResults
	}
	if query.ConfidenceThreshold != nil {
		opts.ConfidenceThreshold = *query.ConfidenceThreshold
	}

	common.LogInfo("開始處理食材辨識請求",
		zap.String("request_id", requestID),
		zap.String("client_ip", c.ClientIP()),
		zap.Int("image_size", len(data)),
		zap.String("provider", query.Provider),
	)

	result, err := h.detector.DetectIngredients(c.Request.Context(), data, opts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = common.NewError(common.ErrCodeGatewayTimeout, "detection timed out", http.StatusGatewayTimeout, err)
		}
		common.LogError("食材辨識失敗",
			zap.Error(err),
			zap.String("code", common.ErrorCode(err)),
			zap.String("request_id", requestID),
		)
		common.WriteError(c, err)
		return
	}

	common.SuccessResponse(c, http.StatusOK, UploadResponse{
		DetectedIngredients: result.DetectedIngredients,
		TotalDetected:       len(result.DetectedIngredients),
	})
}

// readImage 讀取並檢查上傳的圖片
func (h *Handler) readImage(c *gin.Context) ([]byte, error) {
	header, err := c.FormFile(imageField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, common.NewInputError("request body too large", common.ErrInvalidImageSize)
		}
		return nil, common.NewInputError("missing image file", err)
	}
	if h.maxSize > 0 && header.Size > h.maxSize {
		return nil, common.NewInputError(
			fmt.Sprintf("image size exceeds maximum limit of %d bytes", h.maxSize),
			common.ErrInvalidImageSize,
		)
	}
	if !image.IsImageContentType(header.Header.Get("Content-Type")) {
		return nil, common.NewInputError("only image uploads are allowed", common.ErrInvalidImageType)
	}

	file, err := header.Open()
	if err != nil {
		return nil, common.NewInputError("failed to open image", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, common.NewInputError("failed to read image", err)
	}
	if err := h.images.Validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

// HandleProviders 列出已設定金鑰的供應商
func (h *Handler) HandleProviders(c *gin.Context) {
	resp := ProvidersResponse{Providers: h.detector.AvailableProviders()}
	if p, ok := h.detector.DefaultProvider(); ok {
		resp.Default = &p
	}
	common.SuccessResponse(c, http.StatusOK, resp)
}
