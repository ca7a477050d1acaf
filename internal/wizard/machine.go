package wizard

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"career-compass/internal/constants"
	"career-compass/internal/types"
)

// Predictor 提交问卷的下游调用
type Predictor interface {
	Predict(ctx context.Context, answers types.QuestionnaireAnswers) (*types.PredictionResult, error)
}

// PredictorFunc 让普通函数实现 Predictor
type PredictorFunc func(ctx context.Context, answers types.QuestionnaireAnswers) (*types.PredictionResult, error)

// Predict 实现 Predictor 接口
func (f PredictorFunc) Predict(ctx context.Context, answers types.QuestionnaireAnswers) (*types.PredictionResult, error) {
	return f(ctx, answers)
}

// Caps 多选题的数量上限，0 表示不限制
type Caps struct {
	CareerValues int
	Industries   int
}

// DefaultCaps 默认上限
func DefaultCaps() Caps {
	return Caps{
		CareerValues: constants.DefaultCareerValueCap,
		Industries:   constants.DefaultIndustryCap,
	}
}

// State 向导状态快照
type State struct {
	Step       Step                       `json:"-"`
	StepIndex  int                        `json:"step_index"`
	StepID     string                     `json:"step_id"`
	StepTitle  string                     `json:"step_title"`
	StepCount  int                        `json:"step_count"`
	Answers    types.QuestionnaireAnswers `json:"answers"`
	Submitting bool                       `json:"submitting"`
}

// Machine 问卷向导状态机。
// answers 只整体替换，已返回的快照之后不会再变化。
type Machine struct {
	mu         sync.Mutex
	step       Step
	answers    types.QuestionnaireAnswers
	submitting bool
	caps       Caps
}

// New 创建一个位于第一步、答案为空的向导
func New(caps Caps) *Machine {
	if caps.CareerValues < 0 {
		caps.CareerValues = 0
	}
	if caps.Industries < 0 {
		caps.Industries = 0
	}
	return &Machine{
		step:    StepPersonality,
		answers: types.NewQuestionnaireAnswers(),
		caps:    caps,
	}
}

// State 返回当前状态快照
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Step:       m.step,
		StepIndex:  int(m.step),
		StepID:     m.step.ID(),
		StepTitle:  m.step.Title(),
		StepCount:  StepCount,
		Answers:    m.answers,
		Submitting: m.submitting,
	}
}

// Answers 返回当前答案
func (m *Machine) Answers() types.QuestionnaireAnswers {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.answers
}

// Caps 返回多选上限
func (m *Machine) Caps() Caps {
	return m.caps
}

// Next 前进一步，不校验当前步骤是否填写完整
func (m *Machine) Next() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitting {
		return types.ErrSubmitInFlight
	}
	if m.step.IsFinal() {
		return types.ErrLastStep
	}
	m.step++
	return nil
}

// Previous 后退一步
func (m *Machine) Previous() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitting {
		return types.ErrSubmitInFlight
	}
	if m.step == StepPersonality {
		return types.ErrFirstStep
	}
	m.step--
	return nil
}

// edit 在副本上修改答案，成功后整体替换
func (m *Machine) edit(fn func(a *types.QuestionnaireAnswers) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitting {
		return types.ErrSubmitInFlight
	}
	next := m.answers.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	m.answers = next
	return nil
}

// SetPersonality 设置性格类型，空字符串表示清除
func (m *Machine) SetPersonality(personality string) error {
	personality = strings.TrimSpace(personality)
	if personality != "" && !slices.Contains(constants.PersonalityOptions, personality) {
		return types.NewValidationError(PathPersonalityType, fmt.Sprintf("未知的性格类型 %q", personality))
	}
	return m.edit(func(a *types.QuestionnaireAnswers) error {
		a.PersonalityType = personality
		return nil
	})
}

// ToggleCareerValue 切换职业价值观，超过上限的新增被忽略
func (m *Machine) ToggleCareerValue(value string) error {
	if !slices.Contains(constants.CareerValueOptions, value) {
		return types.NewValidationError(PathCareerValues, fmt.Sprintf("未知的职业价值观 %q", value))
	}
	return m.edit(func(a *types.QuestionnaireAnswers) error {
		a.CareerValues = toggle(a.CareerValues, value, m.caps.CareerValues)
		return nil
	})
}

// ToggleIndustry 切换偏好行业，超过上限的新增被忽略
func (m *Machine) ToggleIndustry(industry string) error {
	if !slices.Contains(constants.IndustryOptions, industry) {
		return types.NewValidationError(PathPreferredIndustries, fmt.Sprintf("未知的行业 %q", industry))
	}
	return m.edit(func(a *types.QuestionnaireAnswers) error {
		a.PreferredIndustries = toggle(a.PreferredIndustries, industry, m.caps.Industries)
		return nil
	})
}

// toggle 返回新切片：已存在则移除，不存在且未达上限则追加
func toggle(set []string, value string, limit int) []string {
	if i := slices.Index(set, value); i >= 0 {
		return slices.Delete(slices.Clone(set), i, i+1)
	}
	if limit > 0 && len(set) >= limit {
		return set
	}
	return append(slices.Clone(set), value)
}

// SetCurrentRole 设置当前职位（自由文本）
func (m *Machine) SetCurrentRole(role string) error {
	return m.edit(func(a *types.QuestionnaireAnswers) error {
		a.CurrentRole = role
		return nil
	})
}

// SetExperienceLevel 设置工作经验等级
func (m *Machine) SetExperienceLevel(level string) error {
	if level != "" && !slices.Contains(constants.ExperienceLevels, level) {
		return types.NewValidationError(PathExperienceLevel, fmt.Sprintf("未知的经验等级 %q", level))
	}
	return m.edit(func(a *types.QuestionnaireAnswers) error {
		a.ExperienceLevel = level
		return nil
	})
}

// SetEducationLevel 设置学历
func (m *Machine) SetEducationLevel(level string) error {
	if level != "" && !slices.Contains(constants.EducationLevels, level) {
		return types.NewValidationError(PathEducationLevel, fmt.Sprintf("未知的学历 %q", level))
	}
	return m.edit(func(a *types.QuestionnaireAnswers) error {
		a.EducationLevel = level
		return nil
	})
}

// UpsertTechnicalSkill 写入技术技能评分，同名技能原位替换
func (m *Machine) UpsertTechnicalSkill(rating types.SkillRating) error {
	if err := validateSkill(PathTechnicalSkills, &rating); err != nil {
		return err
	}
	if rating.YearsExperience != nil && *rating.YearsExperience < 0 {
		return types.NewValidationError(PathTechnicalSkills, "工作年限不能为负数")
	}
	return m.edit(func(a *types.QuestionnaireAnswers) error {
		a.TechnicalSkills = upsert(a.TechnicalSkills, rating)
		return nil
	})
}

// UpsertSoftSkill 写入软技能评分，同名技能原位替换
func (m *Machine) UpsertSoftSkill(rating types.SkillRating) error {
	if err := validateSkill(PathSoftSkills, &rating); err != nil {
		return err
	}
	rating.YearsExperience = nil
	return m.edit(func(a *types.QuestionnaireAnswers) error {
		a.SoftSkills = upsert(a.SoftSkills, rating)
		return nil
	})
}

func validateSkill(path string, rating *types.SkillRating) error {
	rating.Skill = strings.TrimSpace(rating.Skill)
	if rating.Skill == "" {
		return types.NewValidationError(path, "技能名称不能为空")
	}
	if err := validateLevel(path, rating.Level); err != nil {
		return err
	}
	return nil
}

func validateLevel(path string, level int) error {
	if level < constants.MinSkillLevel || level > constants.MaxSkillLevel {
		return types.NewValidationError(path, fmt.Sprintf("取值 %d 超出范围 [%d,%d]", level, constants.MinSkillLevel, constants.MaxSkillLevel))
	}
	return nil
}

// upsert 同名技能替换，保持首次插入的顺序
func upsert(list []types.SkillRating, rating types.SkillRating) []types.SkillRating {
	for i := range list {
		if list[i].Skill == rating.Skill {
			list[i] = rating
			return list
		}
	}
	return append(list, rating)
}

// SetRemote 设置是否偏好远程
func (m *Machine) SetRemote(remote bool) error {
	return m.edit(func(a *types.QuestionnaireAnswers) error {
		a.WorkStylePreferences.Remote = remote
		return nil
	})
}

// SetTeamSize 设置团队规模偏好，空字符串表示不选
func (m *Machine) SetTeamSize(size string) error {
	if size != "" && !slices.Contains(constants.TeamSizes, size) {
		return types.NewValidationError(PathTeamSize, fmt.Sprintf("未知的团队规模 %q", size))
	}
	return m.edit(func(a *types.QuestionnaireAnswers) error {
		a.WorkStylePreferences.TeamSize = size
		return nil
	})
}

// SetWorkLifeBalance 设置工作生活平衡权重
func (m *Machine) SetWorkLifeBalance(level int) error {
	if err := validateLevel(PathWorkLifeBalance, level); err != nil {
		return err
	}
	return m.edit(func(a *types.QuestionnaireAnswers) error {
		a.WorkStylePreferences.WorkLifeBalance = level
		return nil
	})
}

// SetGrowthOriented 设置是否看重成长
func (m *Machine) SetGrowthOriented(growth bool) error {
	return m.edit(func(a *types.QuestionnaireAnswers) error {
		a.WorkStylePreferences.GrowthOriented = &growth
		return nil
	})
}

// Submit 在最后一步提交问卷。
// 失败时停留在最后一步，答案保持不变。
func (m *Machine) Submit(ctx context.Context, predictor Predictor) (*types.PredictionResult, error) {
	m.mu.Lock()
	if !m.step.IsFinal() {
		m.mu.Unlock()
		return nil, types.ErrNotFinalStep
	}
	if m.submitting {
		m.mu.Unlock()
		return nil, types.ErrSubmitInFlight
	}
	m.submitting = true
	answers := m.answers
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.submitting = false
		m.mu.Unlock()
	}()

	return predictor.Predict(ctx, answers)
}
