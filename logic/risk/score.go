package risk

import (
	"math"

	"contract-guard/types"
)

// Weights 类别权重
type Weights map[types.Category]float64

// Table 行业 → 类别权重
type Table map[types.Industry]Weights

// severityPoints 模型未给出 risk_score 时按严重程度取值
var severityPoints = map[types.Severity]float64{
	types.SeverityLow:      25,
	types.SeverityMedium:   50,
	types.SeverityHigh:     75,
	types.SeverityCritical: 100,
}

// DefaultTable 内置权重表，所有行业等权
func DefaultTable() Table {
	t := make(Table, len(types.Industries))
	for _, ind := range types.Industries {
		t[ind] = Weights{
			types.CategoryLegal:      1,
			types.CategoryFinancial:  1,
			types.CategoryCompliance: 1,
		}
	}
	return t
}

// WithOverrides 在默认表上应用配置中的行业权重
func WithOverrides(overrides map[string]map[string]float64) Table {
	t := DefaultTable()
	for ind, ws := range overrides {
		key := types.NormalizeIndustry(types.Industry(ind))
		base, ok := t[key]
		if !ok {
			base = Weights{}
			t[key] = base
		}
		for cat, w := range ws {
			if w < 0 {
				continue
			}
			base[types.Category(cat)] = w
		}
	}
	return t
}

// Scorer 按行业权重聚合问题风险
type Scorer struct {
	table Table
}

func NewScorer(table Table) *Scorer {
	if table == nil {
		table = DefaultTable()
	}
	return &Scorer{table: table}
}

// IssuePoints 单个问题的风险值 0~100
func IssuePoints(issue types.Issue) float64 {
	if issue.RiskScore > 0 {
		return math.Min(issue.RiskScore, 100)
	}
	return severityPoints[issue.Severity]
}

// Score 加权融合
// 每个请求类别取未修复问题中的最大风险值，score = Σ w·max / Σ w
func (s *Scorer) Score(industry types.Industry, categories []types.Category, issues []types.Issue) float64 {
	weights := s.weights(industry)

	maxByCat := make(map[types.Category]float64, len(categories))
	for _, issue := range issues {
		if !issue.IsOpen() {
			continue
		}
		if p := IssuePoints(issue); p > maxByCat[issue.Category] {
			maxByCat[issue.Category] = p
		}
	}

	var sum, total float64
	for _, c := range categories {
		w, ok := weights[c]
		if !ok {
			w = 1
		}
		sum += w * maxByCat[c]
		total += w
	}
	if total == 0 {
		return 0
	}
	return math.Round(sum/total*100) / 100
}

// Assess 计算分数与等级
func (s *Scorer) Assess(industry types.Industry, categories []types.Category, issues []types.Issue) (float64, types.RiskLevel) {
	score := s.Score(industry, categories, issues)
	return score, Level(score)
}

func (s *Scorer) weights(industry types.Industry) Weights {
	if w, ok := s.table[types.NormalizeIndustry(industry)]; ok {
		return w
	}
	return s.table[types.IndustryOther]
}

// Level 分数映射到风险等级
func Level(score float64) types.RiskLevel {
	switch {
	case score < 25:
		return types.RiskLow
	case score < 50:
		return types.RiskMedium
	case score < 75:
		return types.RiskHigh
	default:
		return types.RiskCritical
	}
}
