package image

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"net/http"
	"strings"

	_ "image/gif"  // 支援 GIF
	_ "image/jpeg" // 支援 JPEG
	_ "image/png"  // 支援 PNG

	_ "golang.org/x/image/webp" // 支援 WebP

	"ingredient-detector/internal/pkg/common"
)

// DefaultMimeType 無法辨識格式時使用
const DefaultMimeType = "image/jpeg"

// supportedFormats image.DecodeConfig 回傳的格式名稱對應 MIME
var supportedFormats = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// Processor 圖片處理器（只做檢查與編碼，不壓縮、不轉檔）
type Processor struct {
	maxSize int64
}

// NewProcessor 創建圖片處理器；maxSize <= 0 表示不限制
func NewProcessor(maxSize int64) *Processor {
	return &Processor{
		maxSize: maxSize,
	}
}

// Validate 檢查圖片大小與格式
func (p *Processor) Validate(data []byte) error {
	if len(data) == 0 {
		return common.NewInputError("image is empty", nil)
	}
	if p.maxSize > 0 && int64(len(data)) > p.maxSize {
		return common.NewInputError(
			fmt.Sprintf("image size exceeds maximum limit of %d bytes", p.maxSize),
			common.ErrInvalidImageSize,
		)
	}
	if _, ok := Format(data); !ok {
		return common.NewInputError("unsupported or corrupt image", common.ErrInvalidImageType)
	}
	return nil
}

// Format 從圖片內容判斷格式，只讀取標頭
func Format(data []byte) (string, bool) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", false
	}
	_, ok := supportedFormats[format]
	return format, ok
}

// MimeType 從內容推斷 MIME，先看解碼器再看 http.DetectContentType，最後回退為 JPEG
func MimeType(data []byte) string {
	if format, ok := Format(data); ok {
		return supportedFormats[format]
	}
	if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	return DefaultMimeType
}

// IsImageContentType 檢查上傳時宣告的 Content-Type
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

// DataURI 將圖片編碼為 data URI
func DataURI(data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", MimeType(data), base64.StdEncoding.EncodeToString(data))
}
