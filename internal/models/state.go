package models

// Intent 分类标签。除了六种代理对应的动作意图外，还有三个特殊值：
// chitchat 表示纯对话，complex 表示路由器置信度不足需要规划器接管，
// unknown 表示路由器没有任何匹配。
const (
	IntentChitchat = "chitchat"
	IntentComplex  = "complex"
	IntentUnknown  = "unknown"
	IntentAction   = "action"
)

// 会修改外部资源的路由意图。写意图不能被缓存吸收：核心逻辑必须
// 真正执行，成功后对应资源的缓存条目随之失效。
const (
	IntentCalendarWrite = "calendar_write"
	IntentEmailWrite    = "email_write"
)

// IsWriteIntent 报告该意图是否会修改外部资源。
func IsWriteIntent(intent string) bool {
	return intent == IntentCalendarWrite || intent == IntentEmailWrite
}

// ChatMessage 是编排管道内部流转的一条对话消息。
type ChatMessage struct {
	Role    string `json:"role"` // "user" 或 "assistant"
	Content string `json:"content"`
}

// PlanStep 是规划器输出的一个执行步骤：一组可以并行的代理加上该步骤
// 的目标描述。步骤之间是顺序关系。
type PlanStep struct {
	Agents []AgentKind `json:"agents"`
	Goal   string      `json:"goal"`
}

// State 是单次请求的编排状态。它在请求开始时创建，贯穿所有管道
// 阶段被就地修改，请求结束后即丢弃——只有最终回复和提取出的事实
// 会被持久化。
type State struct {
	UserID           string
	Messages         []ChatMessage
	CurrentInput     string
	Intent           string
	IntentConfidence float64
	RequiredAgents   []AgentKind
	PlanSteps        []PlanStep
	AgentResults     map[AgentKind]AgentResult
	NeedsRefresh     map[ResourceType]bool
	MemoryContext    []string
	FinalResponse    string
}

// NewState 构造一条请求的初始状态。
func NewState(userID, input string, history []ChatMessage) *State {
	messages := append(append([]ChatMessage{}, history...), ChatMessage{Role: "user", Content: input})
	return &State{
		UserID:       userID,
		Messages:     messages,
		CurrentInput: input,
		AgentResults: make(map[AgentKind]AgentResult),
		NeedsRefresh: make(map[ResourceType]bool),
	}
}
