package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// AgentTypePatternDetection identifies actions produced by the
	// pattern-detection engine.
	AgentTypePatternDetection = "pattern_detection"

	// ActionTypeAlert is the action type for detected-pattern alerts.
	ActionTypeAlert = "alert"

	// ActionStatusCompleted marks an action whose detection work finished.
	ActionStatusCompleted = "completed"
)

// Action is the generic envelope wrapping agent output for storage and
// query. The Action Store treats these as append-only.
type Action struct {
	ActionID   string          `json:"action_id"`
	PatternID  string          `json:"pattern_id,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	AgentType  string          `json:"agent_type"`
	ActionType string          `json:"action_type"`
	Status     string          `json:"status"`
	Details    json.RawMessage `json:"details,omitempty"`
}

// NewAlertAction wraps a detected pattern in an Action envelope of kind
// pattern_detection/alert.
func NewAlertAction(actionID string, p Pattern, ts time.Time) (Action, error) {
	details, err := json.Marshal(p)
	if err != nil {
		return Action{}, fmt.Errorf("marshal pattern details: %w", err)
	}
	return Action{
		ActionID:   actionID,
		PatternID:  p.PatternID,
		Timestamp:  ts,
		AgentType:  AgentTypePatternDetection,
		ActionType: ActionTypeAlert,
		Status:     ActionStatusCompleted,
		Details:    details,
	}, nil
}

// PatternDetails decodes the Pattern payload carried in an alert action.
func (a Action) PatternDetails() (Pattern, error) {
	var p Pattern
	if len(a.Details) == 0 {
		return p, fmt.Errorf("action %s has no details", a.ActionID)
	}
	if err := json.Unmarshal(a.Details, &p); err != nil {
		return p, fmt.Errorf("unmarshal pattern details: %w", err)
	}
	return p, nil
}
