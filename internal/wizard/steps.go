package wizard

// Step 问卷步骤
type Step int

const (
	StepPersonality Step = iota
	StepBackground
	StepTechnicalSkills
	StepSoftSkills
	StepPreferences
)

// StepCount 步骤总数
const StepCount = int(StepPreferences) + 1

var stepMeta = [StepCount]struct {
	id    string
	title string
}{
	{"personality", "Personality Assessment"},
	{"background", "Experience & Background"},
	{"technical_skills", "Technical Skills"},
	{"soft_skills", "Soft Skills"},
	{"preferences", "Industries & Work Style"},
}

// ID 步骤的稳定标识
func (s Step) ID() string {
	if s < 0 || int(s) >= StepCount {
		return "unknown"
	}
	return stepMeta[s].id
}

// Title 展示用标题
func (s Step) Title() string {
	if s < 0 || int(s) >= StepCount {
		return ""
	}
	return stepMeta[s].title
}

func (s Step) String() string {
	return s.ID()
}

// IsFinal 是否为最后一步
func (s Step) IsFinal() bool {
	return s == StepPreferences
}
