package wizard

import (
	"bytes"
	"encoding/json"
	"fmt"

	"career-compass/internal/types"
)

// 可更新的答案字段路径
const (
	PathPersonalityType     = "personalityType"
	PathCareerValues        = "careerValues"
	PathCurrentRole         = "currentRole"
	PathExperienceLevel     = "experienceLevel"
	PathEducationLevel      = "educationLevel"
	PathPreferredIndustries = "preferredIndustries"
	PathTechnicalSkills     = "technicalSkills"
	PathSoftSkills          = "softSkills"
	PathRemote              = "workStylePreferences.remote"
	PathTeamSize            = "workStylePreferences.teamSize"
	PathWorkLifeBalance     = "workStylePreferences.workLifeBalance"
	PathGrowthOriented      = "workStylePreferences.growthOriented"
)

// Update 按路径更新一个字段，value 为该字段的 JSON 值。
// 集合字段传入单个选项并切换其选中状态，技能字段传入 {skill, level, yearsExperience?}。
func (m *Machine) Update(path string, value json.RawMessage) error {
	switch path {
	case PathPersonalityType:
		var s string
		if err := decodeValue(path, value, &s); err != nil {
			return err
		}
		return m.SetPersonality(s)
	case PathCareerValues:
		var s string
		if err := decodeValue(path, value, &s); err != nil {
			return err
		}
		return m.ToggleCareerValue(s)
	case PathCurrentRole:
		var s string
		if err := decodeValue(path, value, &s); err != nil {
			return err
		}
		return m.SetCurrentRole(s)
	case PathExperienceLevel:
		var s string
		if err := decodeValue(path, value, &s); err != nil {
			return err
		}
		return m.SetExperienceLevel(s)
	case PathEducationLevel:
		var s string
		if err := decodeValue(path, value, &s); err != nil {
			return err
		}
		return m.SetEducationLevel(s)
	case PathPreferredIndustries:
		var s string
		if err := decodeValue(path, value, &s); err != nil {
			return err
		}
		return m.ToggleIndustry(s)
	case PathTechnicalSkills:
		var r types.SkillRating
		if err := decodeValue(path, value, &r); err != nil {
			return err
		}
		return m.UpsertTechnicalSkill(r)
	case PathSoftSkills:
		var r types.SkillRating
		if err := decodeValue(path, value, &r); err != nil {
			return err
		}
		return m.UpsertSoftSkill(r)
	case PathRemote:
		var b bool
		if err := decodeValue(path, value, &b); err != nil {
			return err
		}
		return m.SetRemote(b)
	case PathTeamSize:
		var s string
		if err := decodeValue(path, value, &s); err != nil {
			return err
		}
		return m.SetTeamSize(s)
	case PathWorkLifeBalance:
		var n int
		if err := decodeValue(path, value, &n); err != nil {
			return err
		}
		return m.SetWorkLifeBalance(n)
	case PathGrowthOriented:
		var b bool
		if err := decodeValue(path, value, &b); err != nil {
			return err
		}
		return m.SetGrowthOriented(b)
	default:
		return types.NewValidationError(path, "未知的字段路径")
	}
}

func decodeValue(path string, raw json.RawMessage, out any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return types.NewValidationError(path, "缺少字段值")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return types.NewValidationError(path, fmt.Sprintf("字段值格式错误: %v", err))
	}
	return nil
}
