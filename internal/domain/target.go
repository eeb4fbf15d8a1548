package domain

// Target identifies the database the orchestrator is issuing a credential
// against. It is opaque to the core beyond what the provider needs to open
// a connection.
type Target struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode,omitempty"`
}

// SSLModeOrDefault returns the target's SSL mode, defaulting to "prefer".
func (t Target) SSLModeOrDefault() string {
	if t.SSLMode == "" {
		return "prefer"
	}
	return t.SSLMode
}

// Requester identifies who (or what) asked for a session.
type Requester struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}
