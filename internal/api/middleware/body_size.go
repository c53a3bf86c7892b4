package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ingredient-detector/internal/pkg/common"
)

// multipartOverhead multipart 邊界與欄位標頭的額外空間
const multipartOverhead = 64 << 10

// BodySizeLimit 限制請求體大小的中間件；maxSize 為圖片上限，另保留 multipart 額外空間
func BodySizeLimit(maxSize int64) gin.HandlerFunc {
	limit := maxSize + multipartOverhead
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			common.LogWarn("Request body too large",
				zap.Int64("content_length", c.Request.ContentLength),
				zap.Int64("max_size", maxSize),
				zap.String("client_ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path),
			)
			common.WriteErrorResponse(c, http.StatusRequestEntityTooLarge, common.ErrCodeInput,
				fmt.Sprintf("request body exceeds maximum limit of %d bytes", maxSize))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

		c.Next()
	}
}
