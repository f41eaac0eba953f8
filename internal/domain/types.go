package domain

import "time"

type ThreadID string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Strategy is the coarse search classification for a question.
type Strategy string

const (
	StrategyGeneral Strategy = "general" // encyclopedia lookup only
	StrategyPapers  Strategy = "papers"  // encyclopedia + papers repository
)

type Timestamp = time.Time
