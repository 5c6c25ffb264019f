package db

// Run is one prompt relayed to the target app.
type Run struct {
	RunID           string `gorm:"column:run_id;primaryKey"`
	UserID          int64  `gorm:"column:user_id;not null;default:0"`
	ProjectPath     string `gorm:"column:project_path;not null;default:''"`
	Prompt          string `gorm:"column:prompt;not null;default:''"`
	Reply           string `gorm:"column:reply;not null;default:''"`
	LocalURL        string `gorm:"column:local_url;not null;default:''"`
	PublicURL       string `gorm:"column:public_url;not null;default:''"`
	Outcome         string `gorm:"column:outcome;not null;default:'running'"`
	ErrorText       string `gorm:"column:error_text;not null;default:''"`
	PromptsResolved int    `gorm:"column:prompts_resolved;not null;default:0"`
	StartedAt       int64  `gorm:"column:started_at;not null;default:0"`
	FinishedAt      int64  `gorm:"column:finished_at;not null;default:0"`
}

func (Run) TableName() string { return "runs" }

// ProjectHistory counts how often each project folder was opened.
type ProjectHistory struct {
	Path            string `gorm:"column:path;primaryKey"`
	FirstAccessedAt int64  `gorm:"column:first_accessed_at;not null"`
	LastAccessedAt  int64  `gorm:"column:last_accessed_at;not null"`
	AccessCount     int    `gorm:"column:access_count;not null"`
}

func (ProjectHistory) TableName() string { return "project_history" }

// PromptDecision is one accept/deny answer given while a run waited on the screen.
type PromptDecision struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement"`
	RunID     string `gorm:"column:run_id;not null"`
	Decision  string `gorm:"column:decision;not null"`
	Source    string `gorm:"column:source;not null;default:''"`
	CreatedAt int64  `gorm:"column:created_at;not null;default:0"`
}

func (PromptDecision) TableName() string { return "prompt_decisions" }
