package common

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GenerateUUID 生成 UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// SuccessResponse 寫入成功響應
func SuccessResponse(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success":   true,
		"message":   "Success",
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// WriteErrorResponse 寫入錯誤響應
func WriteErrorResponse(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"message": message,
			"code":    code,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// WriteError 依錯誤類型寫入錯誤響應
func WriteError(c *gin.Context, err error) {
	WriteErrorResponse(c, ErrorStatus(err), ErrorCode(err), err.Error())
}
