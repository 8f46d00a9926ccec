package worker

// Result is the logical outcome of one job execution. It mirrors what the
// job persisted against the owning record.
type Result struct {
	OK         bool   `json:"ok"`
	ID         uint   `json:"id"`
	Status     string `json:"status"`
	Idempotent bool   `json:"idempotent,omitempty"`
	Err        string `json:"error,omitempty"`
}
