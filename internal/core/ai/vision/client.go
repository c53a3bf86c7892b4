package vision

import (
	"context"
	"fmt"
	"strings"
	"time"

	aiimage "ingredient-detector/internal/core/ai/image"
	"ingredient-detector/internal/infrastructure/config"
	"ingredient-detector/internal/pkg/common"
	"ingredient-detector/internal/pkg/metrics"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Client OpenAI 相容的 chat completions 客戶端，OpenAI 與 Gemini 共用
type Client struct {
	provider  Provider
	model     string
	apiKey    string
	maxTokens int
	http      *resty.Client
	decoder   *responseDecoder
	schema    ResponseSchema
	system    string
}

// NewClient 創建視覺模型客戶端
func NewClient(provider Provider, cfg config.ProviderConfig, schema ResponseSchema) *Client {
	http := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)
	if cfg.Timeout > 0 {
		http.SetTimeout(cfg.Timeout)
	}
	if cfg.APIKey != "" {
		http.SetAuthToken(cfg.APIKey)
	}

	return &Client{
		provider:  provider,
		model:     cfg.Model,
		apiKey:    strings.TrimSpace(cfg.APIKey),
		maxTokens: cfg.MaxTokens,
		http:      http,
		decoder:   newResponseDecoder(schema),
		schema:    schema,
		system:    SystemPrompt(schema),
	}
}

// Provider 供應商名稱
func (c *Client) Provider() Provider { return c.provider }

// Model 模型名稱
func (c *Client) Model() string { return c.model }

// Configured 是否已設定金鑰
func (c *Client) Configured() bool { return c.apiKey != "" }

// Recognize 送出圖片並解析候選食材；不重試
func (c *Client) Recognize(ctx context.Context, image []byte) ([]Candidate, error) {
	if !c.Configured() {
		return nil, common.NewConfigurationError(
			fmt.Sprintf("%s API key not configured", strings.ToUpper(string(c.provider))), nil)
	}
	if len(image) == 0 {
		return nil, common.NewInputError("image is empty", nil)
	}

	start := time.Now()
	candidates, err := c.call(ctx, image)
	elapsed := time.Since(start)

	metrics.RecordVisionCall(string(c.provider), elapsed, errorCode(err))
	common.LogAICall(string(c.provider), c.model, elapsed, err)
	if err != nil {
		return nil, err
	}

	common.LogDebug("視覺模型回傳候選食材",
		zap.String("provider", string(c.provider)),
		zap.Int("候選數量", len(candidates)),
	)
	return candidates, nil
}

func (c *Client) call(ctx context.Context, image []byte) ([]Candidate, error) {
	req := c.buildRequest(image)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/chat/completions")
	if err != nil {
		return nil, common.NewUpstreamError(c.label()+" request failed", err)
	}

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, common.NewUpstreamError(
			fmt.Sprintf("%s API error (status %d): %s", c.label(), resp.StatusCode(), upstreamMessage(resp.Body())), nil)
	}

	var result chatResponse
	if err := common.ParseJSONBytes(resp.Body(), &result); err != nil {
		return nil, common.NewUpstreamError(c.label()+" returned an unreadable response", err)
	}
	if len(result.Choices) == 0 {
		return nil, common.NewUpstreamError(c.label()+" returned no choices", nil)
	}
	content := strings.TrimSpace(result.Choices[0].Message.Content)
	if content == "" {
		return nil, common.NewUpstreamError("no content from "+c.label(), nil)
	}

	return c.decoder.decode(content)
}

// buildRequest 構建 structured output 請求
func (c *Client) buildRequest(image []byte) chatRequest {
	return chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: c.system},
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: userPrompt},
					{Type: "image_url", ImageURL: &imageURL{URL: aiimage.DataURI(image)}},
				},
			},
		},
		MaxTokens: c.maxTokens,
		ResponseFormat: responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchema{
				Name:   c.schema.Name,
				Schema: c.schema.JSONSchema(),
				Strict: true,
			},
		},
	}
}

func (c *Client) label() string {
	return strings.ToUpper(string(c.provider))
}

// errorCode 成功時回傳空字串
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	return common.ErrorCode(err)
}
