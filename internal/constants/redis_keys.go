package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// SessionModulePrefix 会话模块
	SessionModulePrefix = "session"

	// EntityUser 登录用户实体
	EntityUser = "user"

	// KeySessionUser 已登录用户的显示名 (STRING, JSON: {"name": "..."})
	// 格式: app:session:user:{clientID}
	KeySessionUser = AppPrefix + ":" + SessionModulePrefix + ":" + EntityUser + ":%s"
)
