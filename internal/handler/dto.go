package handler

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/iliyamo/tooling-tracker/internal/model"
	"github.com/iliyamo/tooling-tracker/internal/service"
)

// dimText accepts a dimension sent either as a JSON number or as text
// such as "63,75".
type dimText string

func (d *dimText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*d = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = dimText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*d = dimText(n.String())
	return nil
}

type eventResp struct {
	ID         uint64    `json:"id"`
	ToolID     uint64    `json:"tool_id"`
	Batch      string    `json:"batch"`
	Date       time.Time `json:"date"`
	Action     string    `json:"action"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	MachineID  *uint64   `json:"machine_id,omitempty"`
	BM         string    `json:"bm,omitempty"`
	Role       string    `json:"role,omitempty"`
	Position   string    `json:"position,omitempty"`
	SlotID     *uint64   `json:"slot_id,omitempty"`
	Shift      string    `json:"shift,omitempty"`
	Reason     *string   `json:"reason"`
	Note       string    `json:"note,omitempty"`
	Dim        string    `json:"dim,omitempty"`
	NewDim     string    `json:"new_dim,omitempty"`
	User       string    `json:"user"`
}

func toEventResp(e model.Event) eventResp {
	return eventResp{
		ID:         e.ID,
		ToolID:     e.ToolID,
		Batch:      e.BatchNo,
		Date:       e.HappenedAt,
		Action:     string(e.Action),
		FromStatus: string(e.FromStatus),
		ToStatus:   string(e.ToStatus),
		MachineID:  e.MachineID,
		BM:         e.MachineName,
		Role:       e.Role,
		Position:   e.Position,
		SlotID:     e.SlotID,
		Shift:      e.Shift,
		Reason:     e.Reason,
		Note:       e.Note,
		Dim:        service.FormatDimension(e.Dimension),
		NewDim:     service.FormatDimension(e.NewDimension),
		User:       e.UserName,
	}
}

func toEventResps(events []model.Event) []eventResp {
	out := make([]eventResp, 0, len(events))
	for _, e := range events {
		out = append(out, toEventResp(e))
	}
	return out
}

type toolResp struct {
	ID              uint64    `json:"id"`
	Code            string    `json:"batch"`
	SerialNumber    string    `json:"serial_number,omitempty"`
	IntendedRole    string    `json:"intended_role,omitempty"`
	CurrentDiameter string    `json:"current_diameter,omitempty"`
	MinDiameter     string    `json:"min_diameter,omitempty"`
	RegrindCount    uint32    `json:"regrind_count"`
	Notes           string    `json:"notes,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

func toToolResp(t model.Tool) toolResp {
	return toolResp{
		ID:              t.ID,
		Code:            t.ToolCode,
		SerialNumber:    t.SerialNumber,
		IntendedRole:    t.IntendedRole,
		CurrentDiameter: service.FormatDimension(t.CurrentDiameter),
		MinDiameter:     service.FormatDimension(t.MinDiameter),
		RegrindCount:    t.RegrindCount,
		Notes:           t.Notes,
		IsActive:        t.IsActive,
		CreatedAt:       t.CreatedAt,
	}
}
