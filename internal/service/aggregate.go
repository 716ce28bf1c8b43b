package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/tooling-tracker/internal/model"
	"github.com/iliyamo/tooling-tracker/internal/repository"
)

// AggregateView is the current state of a tool as a logbook row.  It is
// built from the tool's latest event only.
type AggregateView struct {
	ToolID         uint64              `json:"tool_id"`
	Code           string              `json:"batch"`
	LastDate       *time.Time          `json:"last_date"`
	LastAction     string              `json:"last_action"`
	Status         model.Status        `json:"status"`
	EquipmentLabel string              `json:"bm"`
	Role           string              `json:"role"`
	Position       string              `json:"position"`
	Dimension      decimal.NullDecimal `json:"dim"`
	NewDimension   decimal.NullDecimal `json:"new_dim"`
	Reason         *string             `json:"reason"`
}

// Project builds the aggregate view of tool from its latest event.  A tool
// without events is reported in STOCK with its intended role; otherwise
// every field, role included, comes from the event as recorded.
func Project(tool model.Tool, last *model.Event) AggregateView {
	v := AggregateView{
		ToolID: tool.ID,
		Code:   tool.ToolCode,
		Status: model.StatusStock,
		Role:   tool.IntendedRole,
	}
	if last == nil {
		return v
	}
	at := last.HappenedAt
	v.LastDate = &at
	v.LastAction = string(last.Action)
	if last.ToStatus != "" {
		v.Status = last.ToStatus
	}
	v.EquipmentLabel = last.MachineName
	v.Role = last.Role
	v.Position = last.Position
	v.Dimension = last.Dimension
	v.NewDimension = last.NewDimension
	v.Reason = last.Reason
	return v
}

// GetAggregate returns the aggregate view of one tool.
func (s *ToolingService) GetAggregate(ctx context.Context, toolID uint64) (AggregateView, error) {
	tool, err := s.tool(ctx, toolID)
	if err != nil {
		return AggregateView{}, err
	}
	last, err := s.st.Events.Last(ctx, tool.ID)
	if err != nil {
		return AggregateView{}, translate("get aggregate", err)
	}
	return Project(tool, last), nil
}

// ListEvents returns a tool's events, newest first.
func (s *ToolingService) ListEvents(ctx context.Context, toolID uint64) ([]model.Event, error) {
	return s.listEvents(ctx, toolID, false)
}

// History returns a tool's events oldest first, as exported.
func (s *ToolingService) History(ctx context.Context, toolID uint64) (model.Tool, []model.Event, error) {
	tool, err := s.tool(ctx, toolID)
	if err != nil {
		return model.Tool{}, nil, err
	}
	events, err := s.st.Events.ListByTool(ctx, toolID, true)
	if err != nil {
		return model.Tool{}, nil, translate("history", err)
	}
	return tool, events, nil
}

func (s *ToolingService) listEvents(ctx context.Context, toolID uint64, ascending bool) ([]model.Event, error) {
	if _, err := s.tool(ctx, toolID); err != nil {
		return nil, err
	}
	events, err := s.st.Events.ListByTool(ctx, toolID, ascending)
	if err != nil {
		return nil, translate("list events", err)
	}
	return events, nil
}

// ListActiveTools returns the aggregate view of every active tool, most
// recently updated first.  A search string narrows the list to tool codes
// containing it.
func (s *ToolingService) ListActiveTools(ctx context.Context, search string) ([]AggregateView, error) {
	tools, err := s.st.Tools.ListActive(ctx, search)
	if err != nil {
		return nil, translate("list tools", err)
	}
	ids := make([]uint64, len(tools))
	for i, t := range tools {
		ids[i] = t.ID
	}
	latest, err := s.st.Events.LastForTools(ctx, ids)
	if err != nil {
		return nil, translate("list tools", err)
	}
	out := make([]AggregateView, 0, len(tools))
	for _, t := range tools {
		var last *model.Event
		if e, ok := latest[t.ID]; ok {
			last = &e
		}
		out = append(out, Project(t, last))
	}
	return out, nil
}

// InstalledReport lists the active tools currently installed, grouped by
// machine, role and position.
func (s *ToolingService) InstalledReport(ctx context.Context) ([]AggregateView, error) {
	rows, err := s.filterByStatus(ctx, model.StatusInstalled)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.EquipmentLabel != b.EquipmentLabel {
			return a.EquipmentLabel < b.EquipmentLabel
		}
		if a.Role != b.Role {
			return a.Role < b.Role
		}
		return a.Position < b.Position
	})
	return rows, nil
}

// ServiceReport lists the active tools waiting for service, longest
// waiting first.
func (s *ToolingService) ServiceReport(ctx context.Context) ([]AggregateView, error) {
	rows, err := s.filterByStatus(ctx, model.StatusNeedService)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].LastDate, rows[j].LastDate
		if a == nil || b == nil {
			return b != nil
		}
		return a.Before(*b)
	})
	return rows, nil
}

func (s *ToolingService) filterByStatus(ctx context.Context, status model.Status) ([]AggregateView, error) {
	all, err := s.ListActiveTools(ctx, "")
	if err != nil {
		return nil, err
	}
	var out []AggregateView
	for _, v := range all {
		if v.Status == status {
			out = append(out, v)
		}
	}
	return out, nil
}

// ToolInfo is the lookup used to prefill logbook forms.
type ToolInfo struct {
	ToolID    uint64              `json:"tool_id"`
	Code      string              `json:"batch"`
	Dimension decimal.NullDecimal `json:"dim"`
	Role      string              `json:"role"`
}

// ToolInfoByCode finds a tool by its BATCH #.
func (s *ToolingService) ToolInfoByCode(ctx context.Context, code string) (ToolInfo, error) {
	tool, err := s.st.Tools.GetByCode(ctx, code)
	if errors.Is(err, repository.ErrToolNotFound) {
		return ToolInfo{}, &NotFoundError{Entity: "tool", Key: code}
	}
	if err != nil {
		return ToolInfo{}, translate("tool info", err)
	}
	return ToolInfo{ToolID: tool.ID, Code: tool.ToolCode, Dimension: tool.CurrentDiameter, Role: tool.IntendedRole}, nil
}

// DimensionPoint is one regrind in a tool's dimension history.
type DimensionPoint struct {
	At     time.Time           `json:"at"`
	Before decimal.NullDecimal `json:"before"`
	After  decimal.NullDecimal `json:"after"`
}

// ToolDetail is everything the tool card shows.
type ToolDetail struct {
	Tool         model.Tool       `json:"-"`
	Aggregate    AggregateView    `json:"aggregate"`
	Events       []model.Event    `json:"-"`
	PrevID       uint64           `json:"prev_id,omitempty"`
	NextID       uint64           `json:"next_id,omitempty"`
	DimHistory   []DimensionPoint `json:"dim_history"`
	RegrindCount uint32           `json:"regrind_count"`
}

// Detail loads the tool card: aggregate, newest-first events, neighbours
// for navigation and the dimension history built from REGRIND events.
func (s *ToolingService) Detail(ctx context.Context, toolID uint64) (ToolDetail, error) {
	tool, err := s.tool(ctx, toolID)
	if err != nil {
		return ToolDetail{}, err
	}
	events, err := s.st.Events.ListByTool(ctx, tool.ID, false)
	if err != nil {
		return ToolDetail{}, translate("tool detail", err)
	}
	prev, next, err := s.st.Tools.Neighbours(ctx, tool.ID)
	if err != nil {
		return ToolDetail{}, translate("tool detail", err)
	}
	var last *model.Event
	if len(events) > 0 {
		last = &events[0]
	}
	d := ToolDetail{
		Tool:         tool,
		Aggregate:    Project(tool, last),
		Events:       events,
		PrevID:       prev,
		NextID:       next,
		DimHistory:   DimHistory(events),
		RegrindCount: tool.RegrindCount,
	}
	return d, nil
}

// DimHistory picks the regrinds out of newest-first events and returns
// them oldest first.
func DimHistory(events []model.Event) []DimensionPoint {
	out := []DimensionPoint{}
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		if e.Action != model.ActionRegrind {
			continue
		}
		out = append(out, DimensionPoint{At: e.HappenedAt, Before: e.Dimension, After: e.NewDimension})
	}
	return out
}

func (s *ToolingService) tool(ctx context.Context, id uint64) (model.Tool, error) {
	tool, err := s.st.Tools.GetByID(ctx, id)
	if errors.Is(err, repository.ErrToolNotFound) {
		return model.Tool{}, &NotFoundError{Entity: "tool", Key: id}
	}
	if err != nil {
		return model.Tool{}, translate("load tool", err)
	}
	return tool, nil
}
