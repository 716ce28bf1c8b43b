// Package queue carries committed tooling events over RabbitMQ.
package queue

import (
	"time"

	"github.com/iliyamo/tooling-tracker/internal/model"
	"github.com/iliyamo/tooling-tracker/internal/service"
)

// ToolingEventMessage is published for every committed logbook entry.  It
// holds enough for downstream consumers to log or notify without querying
// the database.
type ToolingEventMessage struct {
	EventID      uint64  `json:"event_id"`
	ToolID       uint64  `json:"tool_id"`
	BatchNo      string  `json:"batch_no"`
	Action       string  `json:"action"`
	FromStatus   string  `json:"from_status,omitempty"`
	ToStatus     string  `json:"to_status,omitempty"`
	MachineID    *uint64 `json:"machine_id,omitempty"`
	MachineName  string  `json:"machine_name,omitempty"`
	Role         string  `json:"role,omitempty"`
	Position     string  `json:"position,omitempty"`
	Shift        string  `json:"shift,omitempty"`
	Reason       string  `json:"reason,omitempty"`
	Dimension    string  `json:"dimension,omitempty"`
	NewDimension string  `json:"new_dimension,omitempty"`
	UserName     string  `json:"user_name"`
	HappenedAt   string  `json:"happened_at"`
}

// NewToolingEventMessage converts a stored event into its wire form.
func NewToolingEventMessage(e model.Event) ToolingEventMessage {
	return ToolingEventMessage{
		EventID:      e.ID,
		ToolID:       e.ToolID,
		BatchNo:      e.BatchNo,
		Action:       string(e.Action),
		FromStatus:   string(e.FromStatus),
		ToStatus:     string(e.ToStatus),
		MachineID:    e.MachineID,
		MachineName:  e.MachineName,
		Role:         e.Role,
		Position:     e.Position,
		Shift:        e.Shift,
		Reason:       e.ReasonText(),
		Dimension:    service.FormatDimension(e.Dimension),
		NewDimension: service.FormatDimension(e.NewDimension),
		UserName:     e.UserName,
		HappenedAt:   e.HappenedAt.UTC().Format(time.RFC3339Nano),
	}
}
