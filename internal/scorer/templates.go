package scorer

import "hr-agent-go/internal/types"

// Template 评分模板：一套命名的权重配置
type Template struct {
	ID      string             `json:"id"`
	Name    string             `json:"name"`
	Weights types.ScoreWeights `json:"weights"`
}

// PresetTemplates 内置评分模板
// t1偏技术岗，t2偏管理岗，t3通用均衡
var PresetTemplates = []Template{
	{
		ID:   "t1",
		Name: "技术岗位模板",
		Weights: types.ScoreWeights{
			Education:  0.2,
			Experience: 0.25,
			Skill:      0.35,
			Stability:  0.1,
			Growth:     0.1,
		},
	},
	{
		ID:   "t2",
		Name: "管理岗位模板",
		Weights: types.ScoreWeights{
			Education:  0.25,
			Experience: 0.4,
			Skill:      0.15,
			Stability:  0.15,
			Growth:     0.05,
		},
	},
	{
		ID:   "t3",
		Name: "通用均衡模板",
		Weights: types.ScoreWeights{
			Education:  0.3,
			Experience: 0.3,
			Skill:      0.2,
			Stability:  0.1,
			Growth:     0.1,
		},
	},
}

// TemplateByID 按ID查找内置模板
func TemplateByID(id string) (Template, bool) {
	for _, t := range PresetTemplates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}
