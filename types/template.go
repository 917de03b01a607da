package types

// Template 合同模板
type Template struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Industry     Industry   `json:"industry"`
	ContractType string     `json:"contract_type"`
	Category     Category   `json:"category"`
	Content      string     `json:"content"`
	Variables    []Variable `json:"variables,omitempty"`
}

// Variable 模板变量
type Variable struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// TemplateLibrary 某行业的模板集合
type TemplateLibrary struct {
	Industry   Industry   `json:"industry"`
	Templates  []Template `json:"templates"`
	TotalCount int        `json:"total_count"`
	Categories []Category `json:"categories"`
}
