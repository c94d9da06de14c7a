package service

// StepResult reports one side effect of a multi-step operation. The primary
// state change has already been committed when steps are reported.
type StepResult struct {
	Step  string `json:"step"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

const (
	StepGuestEmail = "guest_email"
	StepAdminEmail = "admin_email"
	StepSync       = "pms_sync"
	StepEvent      = "event"
)

func stepResult(step string, err error) StepResult {
	if err != nil {
		return StepResult{Step: step, Error: err.Error()}
	}
	return StepResult{Step: step, OK: true}
}
