package model

import "time"

// SessionBundle is a session with its quiz and every stored result.
type SessionBundle struct {
	Session LaunchedSession
	Quiz    Quiz
	Results []StudentResult
}

// SessionExport is the top-level JSON structure for a session result export.
type SessionExport struct {
	ExportedAt    time.Time       `json:"exported_at"`
	PromptVariant string          `json:"prompt_variant"`
	Session       SessionOverview `json:"session"`
	Questions     []QuizQuestion  `json:"questions"`
	Results       []StudentResult `json:"results"`
}
