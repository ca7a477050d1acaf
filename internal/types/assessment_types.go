package types

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"career-compass/internal/constants"
)

// SkillRating 单项技能自评
type SkillRating struct {
	Skill           string   `json:"skill"`
	Level           int      `json:"level"`                     // 1..10
	YearsExperience *float64 `json:"yearsExperience,omitempty"` // 仅技术技能使用
}

// WorkStylePreferences 工作方式偏好
type WorkStylePreferences struct {
	Remote          bool   `json:"remote"`
	TeamSize        string `json:"teamSize,omitempty"`
	WorkLifeBalance int    `json:"workLifeBalance"` // 1..10
	GrowthOriented  *bool  `json:"growthOriented,omitempty"`
}

// QuestionnaireAnswers 问卷答案，只由向导状态机修改
type QuestionnaireAnswers struct {
	PersonalityType      string               `json:"personalityType"`
	CareerValues         []string             `json:"careerValues"`
	CurrentRole          string               `json:"currentRole"`
	ExperienceLevel      string               `json:"experienceLevel"`
	EducationLevel       string               `json:"educationLevel"`
	PreferredIndustries  []string             `json:"preferredIndustries"`
	TechnicalSkills      []SkillRating        `json:"technicalSkills"`
	SoftSkills           []SkillRating        `json:"softSkills"`
	WorkStylePreferences WorkStylePreferences `json:"workStylePreferences"`
}

// NewQuestionnaireAnswers 返回一份空答案（滑块取初始值）
func NewQuestionnaireAnswers() QuestionnaireAnswers {
	return QuestionnaireAnswers{
		CareerValues:        []string{},
		PreferredIndustries: []string{},
		TechnicalSkills:     []SkillRating{},
		SoftSkills:          []SkillRating{},
		WorkStylePreferences: WorkStylePreferences{
			WorkLifeBalance: constants.DefaultWorkLifeBalance,
		},
	}
}

// Clone 深拷贝，保证调用方拿到的快照不会被后续修改影响
func (a QuestionnaireAnswers) Clone() QuestionnaireAnswers {
	out := a
	out.CareerValues = append([]string{}, a.CareerValues...)
	out.PreferredIndustries = append([]string{}, a.PreferredIndustries...)
	out.TechnicalSkills = cloneSkills(a.TechnicalSkills)
	out.SoftSkills = cloneSkills(a.SoftSkills)
	if a.WorkStylePreferences.GrowthOriented != nil {
		v := *a.WorkStylePreferences.GrowthOriented
		out.WorkStylePreferences.GrowthOriented = &v
	}
	return out
}

func cloneSkills(in []SkillRating) []SkillRating {
	out := make([]SkillRating, len(in))
	for i, s := range in {
		out[i] = s
		if s.YearsExperience != nil {
			v := *s.YearsExperience
			out[i].YearsExperience = &v
		}
	}
	return out
}

// FlexString 兼容后端返回的字符串或数字
type FlexString string

// UnmarshalJSON 接受 "5"、5、5.5 和 null
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// Mentor 导师信息
type Mentor struct {
	Name           string     `json:"name"`
	Specialization string     `json:"specialization,omitempty"`
	Experience     FlexString `json:"experience,omitempty"`
	Contact        string     `json:"contact,omitempty"`
}

// ExperienceYears 将经验格式化为 "N years"，无法识别时返回空串
func (m Mentor) ExperienceYears() string {
	exp := strings.TrimSpace(string(m.Experience))
	if exp == "" || exp == "-" || exp == "—" {
		return ""
	}
	if _, err := strconv.ParseFloat(exp, 64); err == nil {
		return exp + " years"
	}
	return exp
}

// Job 职位信息
type Job struct {
	Title    string `json:"title"`
	Company  string `json:"company"`
	Location string `json:"location"`
	Salary   string `json:"salary"`
	Link     string `json:"link"`
}

// PredictionResult 预测结果，Career 已去除首尾空白且非空
type PredictionResult struct {
	Career          string   `json:"career"`
	Recommendations []string `json:"recommendations,omitempty"`
	Mentors         []Mentor `json:"mentors,omitempty"`
	Jobs            []Job    `json:"jobs,omitempty"`
}

// ChatContext 聊天请求附带的上下文
type ChatContext struct {
	Career          string   `json:"career"`
	Recommendations []string `json:"recommendations"`
	Mentors         []Mentor `json:"mentors"`
	Jobs            []Job    `json:"jobs"`
}
