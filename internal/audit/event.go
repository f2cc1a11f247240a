package audit

import "time"

// Event is one append-only audit record.
type Event struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	Action     string            `json:"action"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	RiskScore  int               `json:"risk_score"`
	Flagged    bool              `json:"flagged"`
	IP         string            `json:"ip,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	StatusCode int               `json:"status_code,omitempty"`
	Success    bool              `json:"success"`
	Reason     string            `json:"reason,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Clone returns a deep copy so sinks can retain the event safely.
func (e Event) Clone() Event {
	if e.Metadata != nil {
		md := make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			md[k] = v
		}
		e.Metadata = md
	}
	return e
}
