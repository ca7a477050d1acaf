package backend

import (
	"strings"

	"career-compass/internal/constants"
	"career-compass/internal/types"
)

// PredictRequest POST /api/predict 的请求体，字段名与后端约定一致
type PredictRequest struct {
	Name            string                      `json:"name"`
	TechnicalSkills []types.SkillRating         `json:"technicalSkills"`
	SoftSkills      []types.SkillRating         `json:"softSkills"`
	Industries      []string                    `json:"industries"`
	Values          []string                    `json:"values"`
	Experience      string                      `json:"experience"`
	Education       string                      `json:"education"`
	Personality     string                      `json:"personality,omitempty"`
	WorkStyle       *types.WorkStylePreferences `json:"workStyle,omitempty"`
	CurrentRole     string                      `json:"currentRole,omitempty"`
}

// NewPredictRequest 把问卷答案映射成后端请求
func NewPredictRequest(displayName string, answers types.QuestionnaireAnswers) PredictRequest {
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = constants.DefaultDisplayName
	}

	a := answers.Clone()
	ws := a.WorkStylePreferences
	return PredictRequest{
		Name:            name,
		TechnicalSkills: a.TechnicalSkills,
		SoftSkills:      a.SoftSkills,
		Industries:      a.PreferredIndustries,
		Values:          a.CareerValues,
		Experience:      a.ExperienceLevel,
		Education:       a.EducationLevel,
		Personality:     a.PersonalityType,
		WorkStyle:       &ws,
		CurrentRole:     strings.TrimSpace(a.CurrentRole),
	}
}
