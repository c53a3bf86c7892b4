// Package vision 呼叫具視覺能力的語言模型，取得圖片中的候選食材。
package vision

import (
	"context"
	"strings"

	"ingredient-detector/internal/pkg/common"
)

// Provider 視覺模型供應商
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// KnownProviders 支援的供應商，順序即預設回退順序
var KnownProviders = []Provider{ProviderOpenAI, ProviderGemini}

// ParseProvider 解析供應商名稱；空字串回傳空值代表使用預設
func ParseProvider(s string) (Provider, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	for _, p := range KnownProviders {
		if Provider(s) == p {
			return p, nil
		}
	}
	return "", common.NewInputError("unknown vision provider: "+s, nil)
}

// Candidate 模型回傳、尚未對應到目錄的候選食材
type Candidate struct {
	NameLocal   string          `json:"nameLocal"`
	NameForeign string          `json:"nameForeign"`
	Category    common.Category `json:"category,omitempty"`
	Confidence  float64         `json:"confidence"`
}

// Recognizer 單一供應商的辨識介面
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) ([]Candidate, error)
	Provider() Provider
	Model() string
	Configured() bool
}

// chat completions 請求結構

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type       string     `json:"type"`
	JSONSchema jsonSchema `json:"json_schema"`
}

type jsonSchema struct {
	Name   string                 `json:"name"`
	Schema map[string]interface{} `json:"schema"`
	Strict bool                   `json:"strict"`
}

// chatResponse 只取需要的欄位
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// apiError 供應商錯誤回應
type apiError struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}
