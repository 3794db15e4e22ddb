package failover

import "fmt"

// Candidate is a provider/model pair eligible to serve a request.
type Candidate struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Key returns the cooldown/dedupe key for the candidate. A candidate with
// no model resolves to the bare provider key.
func (c Candidate) Key() string {
	if c.Model == "" {
		return c.Provider
	}
	return c.Provider + ":" + c.Model
}

func (c Candidate) String() string {
	return c.Provider + "/" + c.Model
}

// Attempt is an audit record for one failed (or skipped) candidate.
type Attempt struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Error      string `json:"error"`
	Reason     Reason `json:"reason,omitempty"`
	HTTPStatus int    `json:"http_status,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
}

func (a Attempt) String() string {
	if a.Reason != "" {
		return fmt.Sprintf("%s/%s: %s (%s)", a.Provider, a.Model, a.Error, a.Reason)
	}
	return fmt.Sprintf("%s/%s: %s", a.Provider, a.Model, a.Error)
}

// Outcome is the result of a successful failover run.
type Outcome struct {
	Value    interface{}
	Provider string
	Model    string
	Attempts []Attempt
}
