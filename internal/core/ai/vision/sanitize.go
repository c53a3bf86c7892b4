package vision

import (
	"strings"

	"ingredient-detector/internal/pkg/common"
)

const maxErrorBodyLength = 512

// upstreamMessage 從錯誤回應中取出供應商訊息；無法解析時回傳清理後的原文
func upstreamMessage(body []byte) string {
	var e apiError
	if err := common.ParseJSONBytes(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return sanitizeBody(body)
}

// sanitizeBody 移除回應內容中的圖片數據並截斷
func sanitizeBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if strings.Contains(s, "data:image/") {
		return "[IMAGE_DATA_REMOVED]"
	}
	if len(s) > 100 && strings.Contains(s, "base64") {
		return "[BASE64_DATA_REMOVED]"
	}
	if len(s) > maxErrorBodyLength {
		s = s[:maxErrorBodyLength] + "..."
	}
	return s
}
