package types

import (
	"fmt"
	"sort"
	"strings"
)

// Industry 合同所属行业
type Industry string

const (
	IndustryTechnology    Industry = "technology"
	IndustryHealthcare    Industry = "healthcare"
	IndustryFinance       Industry = "finance"
	IndustryRealEstate    Industry = "real_estate"
	IndustryManufacturing Industry = "manufacturing"
	IndustryRetail        Industry = "retail"
	IndustryEducation     Industry = "education"
	IndustryGovernment    Industry = "government"
	IndustryOther         Industry = "other"
)

// Industries 全部可选行业
var Industries = []Industry{
	IndustryTechnology, IndustryHealthcare, IndustryFinance, IndustryRealEstate,
	IndustryManufacturing, IndustryRetail, IndustryEducation, IndustryGovernment, IndustryOther,
}

// NormalizeIndustry 大小写折叠，空值视为 other
func NormalizeIndustry(i Industry) Industry {
	v := Industry(strings.ToLower(strings.TrimSpace(string(i))))
	if v == "" {
		return IndustryOther
	}
	return v
}

// Valid 是否为已知行业
func (i Industry) Valid() bool {
	for _, known := range Industries {
		if known == i {
			return true
		}
	}
	return false
}

// Category 风险分析类别
type Category string

const (
	CategoryLegal      Category = "legal"
	CategoryFinancial  Category = "financial"
	CategoryCompliance Category = "compliance"
)

// DefaultCategories 未指定类别时的默认集合
var DefaultCategories = []Category{CategoryLegal, CategoryFinancial, CategoryCompliance}

// Valid 是否为可请求的类别
func (c Category) Valid() bool {
	switch c {
	case CategoryLegal, CategoryFinancial, CategoryCompliance:
		return true
	}
	return false
}

// NormalizeCategories 折叠大小写、去重并排序；空集合使用默认类别
func NormalizeCategories(cats []Category) []Category {
	seen := make(map[Category]struct{}, len(cats))
	out := make([]Category, 0, len(cats))
	for _, c := range cats {
		v := Category(strings.ToLower(strings.TrimSpace(string(c))))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		out = append(out, DefaultCategories...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ContractSubmission 一次分析请求的输入，计算指纹后不再修改
type ContractSubmission struct {
	Text       string     `json:"contract_text"`
	Industry   Industry   `json:"industry"`
	Categories []Category `json:"analysis_types"`
	FileRef    string     `json:"file_ref,omitempty"`
	FileName   string     `json:"file_name,omitempty"`
}

// Normalized 返回规范化后的副本
func (s ContractSubmission) Normalized() ContractSubmission {
	s.Industry = NormalizeIndustry(s.Industry)
	s.Categories = NormalizeCategories(s.Categories)
	return s
}

// Validate 校验行业与类别，文本为空由指纹计算负责
func (s ContractSubmission) Validate() error {
	n := s.Normalized()
	if !n.Industry.Valid() {
		return fmt.Errorf("%w: unknown industry %q", ErrInvalidInput, s.Industry)
	}
	for _, c := range n.Categories {
		if !c.Valid() {
			return fmt.Errorf("%w: unknown analysis type %q", ErrInvalidInput, c)
		}
	}
	return nil
}

// Fingerprint 提交内容的确定性摘要，作为缓存与去重的键
type Fingerprint string

func (f Fingerprint) String() string { return string(f) }
