package constants

const (
	// DefaultDisplayName 预测请求中缺少显示名时使用
	DefaultDisplayName = "User"

	// DefaultCareerValueCap 职业价值观最多可选数量
	DefaultCareerValueCap = 4
	// DefaultIndustryCap 偏好行业最多可选数量
	DefaultIndustryCap = 3

	// MinSkillLevel / MaxSkillLevel 滑块取值范围
	MinSkillLevel = 1
	MaxSkillLevel = 10
	// DefaultWorkLifeBalance 工作生活平衡滑块的初始值
	DefaultWorkLifeBalance = 5
)

// 聊天助手固定文案
const (
	ChatGreeting            = "👋 Hi there! I’m your AI Career Assistant. Ask me anything about your career path!"
	ChatUnavailableMessage  = "⚠️ Sorry, I couldn't get a response right now. Please try again."
	ChatNetworkErrorMessage = "❌ Oops! There was a network error. Please try again later."
)

// 结果页各区块为空时的提示
const (
	RoadmapEmptyMessage = "No roadmap available for this career yet."
	MentorsEmptyMessage = "No mentors found for this career."
	JobsEmptyMessage    = "No live job data available for this role right now."
)

// 用户提示（前端以 toast 形式展示）
const (
	NoticeSignInNameRequired = "Please enter your name to continue."
	NoticePredictionSuccess  = "Career recommendations received!"
	NoticeBackendError       = "Backend error"
	NoticeBackendUnreachable = "Backend connection failed"
	NoticeNoCareer           = "No career could be predicted from your answers."
)

// PersonalityOptions 性格类型（单选）
var PersonalityOptions = []string{
	"Analytical Thinker",
	"Creative Innovator",
	"People Leader",
	"Detail-Oriented Executor",
	"Strategic Visionary",
}

// CareerValueOptions 职业价值观（多选）
var CareerValueOptions = []string{
	"Innovation",
	"Growth",
	"Autonomy",
	"Stability",
	"Impact",
	"Work-Life Balance",
	"Compensation",
	"Recognition",
}

// ExperienceLevels 工作经验等级
var ExperienceLevels = []string{"entry", "mid", "senior"}

// EducationLevels 学历
var EducationLevels = []string{"bachelor", "master", "phd"}

// TeamSizes 团队规模偏好
var TeamSizes = []string{"small", "medium", "large"}

// TechnicalSkillOptions 技术技能
var TechnicalSkillOptions = []string{"Python", "JavaScript", "React", "SQL", "Java"}

// SoftSkillOptions 软技能
var SoftSkillOptions = []string{"Communication", "Leadership", "Problem Solving"}

// IndustryOptions 偏好行业（多选）
var IndustryOptions = []string{"Technology", "Healthcare", "Finance", "Education"}
