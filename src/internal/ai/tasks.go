package ai

// Task identifies a pipeline stage with its own model chain. Cheap fast
// models serve intent parsing and syntax fixes; stronger models serve
// generation and escalated repair.
type Task string

const (
	TaskIntent          Task = "intent"
	TaskGenerate        Task = "generate"
	TaskFix             Task = "fix"
	TaskRepair          Task = "repair"
	TaskRepairEscalated Task = "repair_escalated"
	TaskClassify        Task = "classify"
	TaskEdit            Task = "edit"
)

// TaskConfig is one entry in a task's provider chain.
type TaskConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Tasks lists every stage so config validation can reject unknown names.
func Tasks() []Task {
	return []Task{
		TaskIntent,
		TaskGenerate,
		TaskFix,
		TaskRepair,
		TaskRepairEscalated,
		TaskClassify,
		TaskEdit,
	}
}
