package vision

import (
	"fmt"
	"strings"

	"ingredient-detector/internal/pkg/common"

	"github.com/go-playground/validator/v10"
)

// ResponseSchema 視覺模型輸出的唯一定義。
// 送出的 JSON schema、回應驗證規則與提示詞中的信心分級都由它產生。
type ResponseSchema struct {
	Name          string
	MinConfidence float64
	MaxConfidence float64
	Categories    []common.Category
}

// DefaultSchema 預設 schema：信心 0.6 ~ 1，分類為封閉集合
func DefaultSchema() ResponseSchema {
	return ResponseSchema{
		Name:          "ingredient_detection",
		MinConfidence: 0.6,
		MaxConfidence: 1,
		Categories:    common.IngredientCategories,
	}
}

// JSONSchema 送給供應商的 structured output schema
func (s ResponseSchema) JSONSchema() map[string]interface{} {
	categories := make([]interface{}, 0, len(s.Categories)+1)
	for _, c := range s.Categories {
		categories = append(categories, string(c))
	}
	categories = append(categories, nil)

	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"items"},
		"properties": map[string]interface{}{
			"items": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"nameLocal", "nameForeign", "category", "confidence"},
					"properties": map[string]interface{}{
						"nameLocal":   map[string]interface{}{"type": "string", "minLength": 1},
						"nameForeign": map[string]interface{}{"type": "string", "minLength": 1},
						"category": map[string]interface{}{
							"type": []interface{}{"string", "null"},
							"enum": categories,
						},
						"confidence": map[string]interface{}{
							"type":    "number",
							"minimum": s.MinConfidence,
							"maximum": s.MaxConfidence,
						},
					},
				},
			},
		},
	}
}

// Rubric 提示詞中的信心分級
func (s ResponseSchema) Rubric() string {
	var b strings.Builder
	b.WriteString("- 0.9-1.0: TUYỆT ĐỐI chắc chắn, nhìn thấy rõ ràng hoàn toàn\n")
	b.WriteString("- 0.8-0.9: Rất chắc chắn, có thể phân biệt rõ ràng\n")
	b.WriteString("- 0.7-0.8: Khá chắc chắn, nhưng có thể có một chút mơ hồ\n")
	fmt.Fprintf(&b, "- %.1f-0.7: Không chắc lắm, có khả năng nhầm lẫn cao, hạn chế đưa vào\n", s.MinConfidence)
	fmt.Fprintf(&b, "- <%.1f: KHÔNG đưa vào kết quả", s.MinConfidence)
	return b.String()
}

// CategoryList 提示詞中的分類清單
func (s ResponseSchema) CategoryList() string {
	names := make([]string, len(s.Categories))
	for i, c := range s.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// wireResponse 回應的解析目標，驗證規則由 schema 註冊
type wireResponse struct {
	Items []wireItem `json:"items" validate:"required,dive"`
}

type wireItem struct {
	NameLocal   string   `json:"nameLocal" validate:"required"`
	NameForeign string   `json:"nameForeign" validate:"required"`
	Category    *string  `json:"category" validate:"omitnil,ingredient_category"`
	Confidence  *float64 `json:"confidence" validate:"required,confidence_range"`
}

// responseDecoder 解析並重新驗證模型輸出
type responseDecoder struct {
	schema   ResponseSchema
	validate *validator.Validate
}

func newResponseDecoder(s ResponseSchema) *responseDecoder {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("ingredient_category", func(fl validator.FieldLevel) bool {
		c := common.Category(fl.Field().String())
		for _, known := range s.Categories {
			if c == known {
				return true
			}
		}
		return false
	})
	_ = v.RegisterValidation("confidence_range", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return f >= s.MinConfidence && f <= s.MaxConfidence
	})
	return &responseDecoder{schema: s, validate: v}
}

// itemKeys 只記錄每個項目出現的鍵，用來區分 category 為 null 與缺少 category
type itemKeys struct {
	Items []map[string]interface{} `json:"items"`
}

// decode 解析模型回傳的 content
func (d *responseDecoder) decode(content string) ([]Candidate, error) {
	payload := common.ExtractJSONObject(content)

	var resp wireResponse
	if err := common.ParseJSONStrict(payload, &resp); err != nil {
		return nil, common.NewResponseFormatError("vision response is not valid JSON", err)
	}
	var keys itemKeys
	if err := common.ParseJSON(payload, &keys); err != nil {
		return nil, common.NewResponseFormatError("vision response is not valid JSON", err)
	}
	for i, item := range keys.Items {
		if _, ok := item["category"]; !ok {
			return nil, common.NewResponseFormatError(
				fmt.Sprintf("vision response item %d is missing category", i), nil)
		}
	}

	for i := range resp.Items {
		resp.Items[i].NameLocal = strings.TrimSpace(resp.Items[i].NameLocal)
		resp.Items[i].NameForeign = strings.TrimSpace(resp.Items[i].NameForeign)
	}
	if err := d.validate.Struct(&resp); err != nil {
		return nil, common.NewResponseFormatError("vision response failed schema validation", err)
	}

	candidates := make([]Candidate, 0, len(resp.Items))
	for _, item := range resp.Items {
		c := Candidate{
			NameLocal:   item.NameLocal,
			NameForeign: item.NameForeign,
			Confidence:  *item.Confidence,
		}
		if item.Category != nil {
			c.Category = common.Category(*item.Category)
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}
