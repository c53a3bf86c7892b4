package common

import (
	"errors"
	"net/http"
)

// ErrorResponse 定義 API 錯誤響應結構
type ErrorResponse struct {
	Code    string `json:"code"`              // 錯誤代碼
	Message string `json:"message"`           // 錯誤信息
	Details string `json:"details,omitempty"` // 詳細信息（僅在開發模式顯示）
}

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 錯誤信息
	Err     error  // 原始錯誤
	Status  int    // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap 返回原始錯誤
func (e *CustomError) Unwrap() error {
	return e.Err
}

// Is 以錯誤代碼比對，讓 errors.Is(err, ErrInputError) 成立
func (e *CustomError) Is(target error) bool {
	var t *CustomError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// 預定義錯誤代碼
const (
	// 客戶端錯誤 (4xx)
	ErrCodeInvalidRequest  = "INVALID_REQUEST"   // 400
	ErrCodeNotFound        = "NOT_FOUND"         // 404
	ErrCodeRequestTimeout  = "REQUEST_TIMEOUT"   // 408
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS" // 429

	// 服務器錯誤 (5xx)
	ErrCodeInternalError      = "INTERNAL_ERROR"      // 500
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503
	ErrCodeGatewayTimeout     = "GATEWAY_TIMEOUT"     // 504

	// 食材辨識流程
	ErrCodeConfiguration  = "CONFIGURATION_ERROR"   // 供應商未設定金鑰
	ErrCodeInput          = "INPUT_ERROR"           // 圖片為空或參數無效
	ErrCodeUpstream       = "UPSTREAM_ERROR"        // 視覺模型回應失敗
	ErrCodeResponseFormat = "RESPONSE_FORMAT_ERROR" // 視覺模型回應不符合 schema
)

// 預定義錯誤
var (
	ErrInvalidRequest     = NewError(ErrCodeInvalidRequest, "無效的請求", http.StatusBadRequest, nil)
	ErrNotFound           = NewError(ErrCodeNotFound, "資源不存在", http.StatusNotFound, nil)
	ErrTooManyRequests    = NewError(ErrCodeTooManyRequests, "請求過於頻繁", http.StatusTooManyRequests, nil)
	ErrInternalError      = NewError(ErrCodeInternalError, "服務器內部錯誤", http.StatusInternalServerError, nil)
	ErrServiceUnavailable = NewError(ErrCodeServiceUnavailable, "服務暫時不可用", http.StatusServiceUnavailable, nil)

	// 業務錯誤
	ErrInvalidImageSize = NewError("INVALID_IMAGE_SIZE", "圖片大小超出限制", http.StatusBadRequest, nil)
	ErrInvalidImageType = NewError("INVALID_IMAGE_TYPE", "不支持的圖片類型", http.StatusBadRequest, nil)
	ErrCacheMiss        = NewError("CACHE_MISS", "快取未命中", http.StatusNotFound, nil)
	ErrCacheFull        = NewError("CACHE_FULL", "緩存已滿", http.StatusServiceUnavailable, nil)

	// 食材辨識錯誤分類，用於 errors.Is 比對
	ErrConfiguration  = NewError(ErrCodeConfiguration, "configuration error", http.StatusServiceUnavailable, nil)
	ErrInput          = NewError(ErrCodeInput, "invalid input", http.StatusBadRequest, nil)
	ErrUpstream       = NewError(ErrCodeUpstream, "upstream error", http.StatusBadGateway, nil)
	ErrResponseFormat = NewError(ErrCodeResponseFormat, "response format error", http.StatusBadGateway, nil)
)

// NewConfigurationError 供應商缺少憑證等設定錯誤
func NewConfigurationError(message string, err error) *CustomError {
	return NewError(ErrCodeConfiguration, message, http.StatusServiceUnavailable, err)
}

// NewInputError 圖片或參數無效
func NewInputError(message string, err error) *CustomError {
	return NewError(ErrCodeInput, message, http.StatusBadRequest, err)
}

// NewUpstreamError 視覺模型回應非成功狀態或缺少內容
func NewUpstreamError(message string, err error) *CustomError {
	return NewError(ErrCodeUpstream, message, http.StatusBadGateway, err)
}

// NewResponseFormatError 視覺模型回應無法通過 schema 驗證
func NewResponseFormatError(message string, err error) *CustomError {
	return NewError(ErrCodeResponseFormat, message, http.StatusBadGateway, err)
}

// ErrorCode 取出錯誤代碼，非 CustomError 時回傳 INTERNAL_ERROR
func ErrorCode(err error) string {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrCodeInternalError
}

// ErrorStatus 取出 HTTP 狀態碼
func ErrorStatus(err error) int {
	var ce *CustomError
	if errors.As(err, &ce) && ce.Status != 0 {
		return ce.Status
	}
	return http.StatusInternalServerError
}
