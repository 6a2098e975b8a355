package harness

// HitSummary is one hit as the harness records it.
type HitSummary struct {
	ID             string   `json:"id"`
	Score          float64  `json:"score"`
	MatchedQueries []string `json:"matched_queries,omitempty"`
}

// StepResult records what one step produced.
type StepResult struct {
	Name    string       `json:"name"`
	Explain string       `json:"explain,omitempty"`
	Error   string       `json:"error,omitempty"`
	Total   int          `json:"total"`
	Hits    []HitSummary `json:"hits"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step met its expectations.
	Pass bool `json:"pass"`

	// Steps holds one entry per executed step, in order.
	Steps []StepResult `json:"steps"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
