package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskAuditAutoFix = "intros.audit.autofix"

// AutoFixPayload names who (or what) asked for the run.
type AutoFixPayload struct {
	RequestedBy string `json:"requestedBy"`
	Trigger     string `json:"trigger"`
}

func NewAuditAutoFixTask(payload AutoFixPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditAutoFix, data), nil
}

func ParseAuditAutoFixPayload(task *asynq.Task) (AutoFixPayload, error) {
	var payload AutoFixPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AutoFixPayload{}, err
	}
	return payload, nil
}
