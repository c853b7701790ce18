package errors

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
)

const detailsPrefix = "__json__:"

// Report is the flattened form of an error attached to dead-lettered events and to log lines
type Report struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Error   string         `json:"internal_error,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// NewReport flattens err into a Report
func NewReport(err error) Report {
	if err == nil {
		return Report{}
	}
	return Report{
		Code:    Code(err),
		Message: DisplayMessage(err),
		Error:   err.Error(),
		Details: Details(err),
	}
}

// DisplayMessage returns the hints of err joined, or its message when no hint was set
func DisplayMessage(err error) string {
	hints := errors.GetAllHints(err)
	if len(hints) == 0 {
		return err.Error()
	}
	return strings.Join(hints, "; ")
}

// Details merges every reportable details map attached to err
func Details(err error) map[string]any {
	var out map[string]any
	for _, sd := range errors.GetAllSafeDetails(err) {
		for _, payload := range sd.SafeDetails {
			if !strings.HasPrefix(payload, detailsPrefix) {
				continue
			}
			var m map[string]any
			if jsonErr := json.Unmarshal([]byte(strings.TrimPrefix(payload, detailsPrefix)), &m); jsonErr != nil {
				continue
			}
			if out == nil {
				out = make(map[string]any, len(m))
			}
			for k, v := range m {
				out[k] = v
			}
		}
	}
	return out
}
