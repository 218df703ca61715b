package model

// CategoryMeta describes one entry of the fixed expense category
// catalog. The catalog is static configuration, not user-editable.
type CategoryMeta struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Categories is the frozen category catalog, code-ordered.
var Categories = []CategoryMeta{
	{Code: "CAT001", Name: "인건비", Description: "일용직/외주 인건비"},
	{Code: "CAT002", Name: "식대/다과", Description: "현장 식대, 회의 다과비"},
	{Code: "CAT003", Name: "교통/주유", Description: "교통비, 주유비, 통행료"},
	{Code: "CAT004", Name: "자재구매", Description: "소모성 자재 및 현장 소모품"},
	{Code: "CAT005", Name: "공구/장비임대", Description: "공구 구입 및 장비 렌탈 비용"},
	{Code: "CAT006", Name: "안전관리", Description: "안전 장비, 교육비"},
	{Code: "CAT007", Name: "사무/통신", Description: "사무용품, 통신비"},
	{Code: "CAT008", Name: "복지/경조사", Description: "현장 복지 및 경조사 지원"},
	{Code: "CAT999", Name: "기타", Description: "기타 비용"},
}

// CategoryByCode looks up a catalog entry by its code.
func CategoryByCode(code string) (CategoryMeta, bool) {
	for _, c := range Categories {
		if c.Code == code {
			return c, true
		}
	}
	return CategoryMeta{}, false
}

// ValidCategory reports whether code exists in the catalog.
func ValidCategory(code string) bool {
	_, ok := CategoryByCode(code)
	return ok
}
