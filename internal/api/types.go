package api

// SessionRequest opens (or resumes) a worker session after the consent step.
type SessionRequest struct {
	WorkerID string `json:"worker_id"`
	Consent  string `json:"consent"` // "yes" | "no"
}

// SessionResponse reports the assignment outcome.
type SessionResponse struct {
	Status         string   `json:"status"` // "ok" | "declined" | "complete"
	SessionID      string   `json:"session_id,omitempty"`
	CompletionCode string   `json:"completion_code,omitempty"`
	Progress       Progress `json:"progress"`
}

// Progress is the worker's done/total indicator.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// QuestionView is the current node rendered for the worker.
type QuestionView struct {
	Branch          string   `json:"branch"`
	Question        string   `json:"question"`
	Explanation     string   `json:"explanation,omitempty"`
	Answers         []string `json:"answers"`
	MultipleAnswers bool     `json:"multiple_answers"`
	MandatoryText   string   `json:"mandatory_text,omitempty"`
}

// TaskResponse is the full annotation screen state.
type TaskResponse struct {
	Status     string        `json:"status"` // "ok" | "complete"
	ItemID     string        `json:"item_id,omitempty"`
	Text       string        `json:"text,omitempty"`
	Context    string        `json:"context,omitempty"`
	ImageName  string        `json:"image_name,omitempty"`
	ItemNumber int           `json:"item_number,omitempty"`
	Progress   Progress      `json:"progress"`
	Question   *QuestionView `json:"question,omitempty"`
}

// AnswerRequest is one interaction on the current question.
type AnswerRequest struct {
	Answers     []string `json:"answers"`
	Explanation string   `json:"explanation"`
	Confirm     bool     `json:"confirm"`
}

// AnswerResponse reports the state machine outcome of one interaction.
type AnswerResponse struct {
	State          string        `json:"state"`
	Question       *QuestionView `json:"question,omitempty"`
	ItemDone       bool          `json:"item_done"`
	BatchDone      bool          `json:"batch_done"`
	NextSessionID  string        `json:"next_session_id,omitempty"`
	CompletionCode string        `json:"completion_code,omitempty"`
	Progress       Progress      `json:"progress"`
}

// StatsResponse exposes per-item ledger counts.
type StatsResponse struct {
	Threshold int            `json:"threshold"`
	Counts    map[string]int `json:"counts"`
	Saturated []string       `json:"saturated"`
}
