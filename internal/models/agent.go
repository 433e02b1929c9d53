package models

// AgentKind 标识一个子代理。它是一个封闭集合：编排器只会分发到
// 下面列出的六种代理，未知名称在解析阶段就会被拒绝。
type AgentKind string

const (
	AgentCalendar AgentKind = "calendar" // 日历代理
	AgentEmail    AgentKind = "email"    // 邮件代理
	AgentWeb      AgentKind = "web"      // 网络搜索代理
	AgentRag      AgentKind = "rag"      // 个人知识库代理
	AgentKg       AgentKind = "kg"       // 知识图谱代理
	AgentTask     AgentKind = "task"     // 任务板代理
)

// AllAgentKinds 按固定顺序列出全部代理，供注册表和规划器校验使用。
var AllAgentKinds = []AgentKind{
	AgentCalendar, AgentEmail, AgentWeb, AgentRag, AgentKg, AgentTask,
}

// ParseAgentKind 将字符串解析为 AgentKind，未知名称返回 false。
func ParseAgentKind(s string) (AgentKind, bool) {
	for _, k := range AllAgentKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// ResourceType 是代理结果在缓存中归属的外部数据类别。
type ResourceType string

const (
	ResourceCalendar ResourceType = "calendar"
	ResourceEmail    ResourceType = "email"
	ResourceWeb      ResourceType = "web"
	ResourceRag      ResourceType = "rag"
	ResourceTasks    ResourceType = "tasks"
)

// AgentResult 是一次代理执行的结果。Success 为 true 时 Data 有效，
// 否则 Error 说明失败原因；二者不会同时有意义。
type AgentResult struct {
	AgentName AgentKind   `json:"agentName"`
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	Error     string      `json:"error,omitempty"`
}

// FailedResult 构造一个失败的代理结果。
func FailedResult(kind AgentKind, err error) AgentResult {
	return AgentResult{AgentName: kind, Success: false, Error: err.Error()}
}
