package common

// Category 食材分類（越南料理分類，與食材目錄一致）
type Category string

const (
	CategoryVegetable  Category = "rau_cu"     // rau củ
	CategorySeasoning  Category = "gia_vi"     // gia vị
	CategoryHerb       Category = "rau_thom"   // rau thơm
	CategoryMeat       Category = "thit"       // thịt
	CategoryDrySpice   Category = "gia_vi_kho" // gia vị khô
	CategoryGrain      Category = "ngu_coc"    // ngũ cốc
	CategorySeafood    Category = "hai_san"    // hải sản
	CategoryOther      Category = "khac"       // khác
	CategoryUnassigned Category = ""
)

// IngredientCategories 封閉的分類集合，順序固定
var IngredientCategories = []Category{
	CategoryVegetable,
	CategorySeasoning,
	CategoryHerb,
	CategoryMeat,
	CategoryDrySpice,
	CategoryGrain,
	CategorySeafood,
	CategoryOther,
}

// legacyCategories 舊版英文分類對應
var legacyCategories = map[string]Category{
	"vegetables": CategoryVegetable,
	"seasoning":  CategorySeasoning,
	"herbs":      CategoryHerb,
	"meat":       CategoryMeat,
	"spices":     CategoryDrySpice,
	"grains":     CategoryGrain,
	"seafood":    CategorySeafood,
	"other":      CategoryOther,
}

// Valid 是否屬於封閉集合
func (c Category) Valid() bool {
	for _, known := range IngredientCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory 解析分類字串，支援舊版英文分類；無法辨識時回傳空分類
func ParseCategory(s string) Category {
	c := Category(s)
	if c.Valid() {
		return c
	}
	if mapped, ok := legacyCategories[s]; ok {
		return mapped
	}
	return CategoryUnassigned
}

// Ptr 空分類轉為 nil，供 JSON null 使用
func (c Category) Ptr() *string {
	if c == CategoryUnassigned {
		return nil
	}
	s := string(c)
	return &s
}
