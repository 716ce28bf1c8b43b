package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tooling-tracker/internal/logger"
	"github.com/iliyamo/tooling-tracker/internal/middleware"
	"github.com/iliyamo/tooling-tracker/internal/model"
	"github.com/iliyamo/tooling-tracker/internal/service"
)

// ToolingService is the part of service.ToolingService the HTTP layer
// uses.
type ToolingService interface {
	CreateTool(ctx context.Context, actor service.Actor, in service.CreateToolInput) (model.Tool, error)
	Install(ctx context.Context, actor service.Actor, in service.InstallInput) (model.Event, error)
	Remove(ctx context.Context, actor service.Actor, in service.RemoveInput) (model.Event, error)
	Regrind(ctx context.Context, actor service.Actor, in service.RegrindInput) (model.Event, error)
	RecordAction(ctx context.Context, actor service.Actor, in service.ActionInput) (model.Event, error)
	Service(ctx context.Context, actor service.Actor, in service.ServiceInput) (model.Event, error)

	GetAggregate(ctx context.Context, toolID uint64) (service.AggregateView, error)
	ListEvents(ctx context.Context, toolID uint64) ([]model.Event, error)
	History(ctx context.Context, toolID uint64) (model.Tool, []model.Event, error)
	ListActiveTools(ctx context.Context, search string) ([]service.AggregateView, error)
	InstalledReport(ctx context.Context) ([]service.AggregateView, error)
	ServiceReport(ctx context.Context) ([]service.AggregateView, error)
	ToolInfoByCode(ctx context.Context, code string) (service.ToolInfo, error)
	Detail(ctx context.Context, toolID uint64) (service.ToolDetail, error)
	Vocabulary() model.Vocabulary
}

// ToolingHandler serves the logbook API.
type ToolingHandler struct {
	Svc ToolingService
	Log *logger.Logger
}

func NewToolingHandler(svc ToolingService, log *logger.Logger) *ToolingHandler {
	if svc == nil {
		panic("nil service passed to NewToolingHandler")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ToolingHandler{Svc: svc, Log: log}
}

// actor builds the acting user from the JWT claims.
func actor(c echo.Context) service.Actor {
	id, ok := middleware.UserID(c)
	if !ok {
		return service.SystemActor
	}
	return service.UserActor(id, middleware.Username(c))
}

type createToolReq struct {
	ToolCode     string  `json:"batch"`
	TypeCode     string  `json:"type"`
	IntendedRole string  `json:"role"`
	SerialNumber string  `json:"serial_number"`
	Notes        string  `json:"notes"`
	Dimension    dimText `json:"dim"`
	MinDimension dimText `json:"min_dim"`
}

// eventReq is the logbook form.  Each operation reads the fields it needs.
type eventReq struct {
	Action       string  `json:"action"`
	EquipmentID  uint64  `json:"equipment_id"`
	Role         string  `json:"role"`
	Position     string  `json:"position"`
	Shift        string  `json:"shift"`
	Reason       string  `json:"reason"`
	Note         string  `json:"note"`
	Dimension    dimText `json:"dim"`
	NewDimension dimText `json:"new_dim"`
}

// CreateTool handles POST /v1/tools.
func (h *ToolingHandler) CreateTool(c echo.Context) error {
	var req createToolReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	tool, err := h.Svc.CreateTool(c.Request().Context(), actor(c), service.CreateToolInput{
		ToolCode:     req.ToolCode,
		TypeCode:     req.TypeCode,
		IntendedRole: req.IntendedRole,
		SerialNumber: req.SerialNumber,
		Notes:        req.Notes,
		Dimension:    string(req.Dimension),
		MinDimension: string(req.MinDimension),
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toToolResp(tool))
}

// ListTools handles GET /v1/tools with an optional ?q= search.
func (h *ToolingHandler) ListTools(c echo.Context) error {
	views, err := h.Svc.ListActiveTools(c.Request().Context(), strings.TrimSpace(c.QueryParam("q")))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": views})
}

// GetByCode handles GET /v1/tools/by-code/:code.
func (h *ToolingHandler) GetByCode(c echo.Context) error {
	info, err := h.Svc.ToolInfoByCode(c.Request().Context(), c.Param("code"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, info)
}

// GetTool handles GET /v1/tools/:id and returns the tool card.
func (h *ToolingHandler) GetTool(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid tool id")
	}
	d, err := h.Svc.Detail(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	resp := echo.Map{
		"tool":          toToolResp(d.Tool),
		"aggregate":     d.Aggregate,
		"events":        toEventResps(d.Events),
		"dim_history":   d.DimHistory,
		"regrind_count": d.RegrindCount,
	}
	if d.PrevID != 0 {
		resp["prev_id"] = d.PrevID
	}
	if d.NextID != 0 {
		resp["next_id"] = d.NextID
	}
	return c.JSON(http.StatusOK, resp)
}

// ListEvents handles GET /v1/tools/:id/events.
func (h *ToolingHandler) ListEvents(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid tool id")
	}
	events, err := h.Svc.ListEvents(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": toEventResps(events)})
}

// Install handles POST /v1/tools/:id/install.
func (h *ToolingHandler) Install(c echo.Context) error {
	return h.withForm(c, model.ActionInstall)
}

// Remove handles POST /v1/tools/:id/remove.
func (h *ToolingHandler) Remove(c echo.Context) error {
	return h.withForm(c, model.ActionRemove)
}

// Regrind handles POST /v1/tools/:id/regrind.
func (h *ToolingHandler) Regrind(c echo.Context) error {
	return h.withForm(c, model.ActionRegrind)
}

// RecordAction handles POST /v1/tools/:id/actions for service and status
// actions.
func (h *ToolingHandler) RecordAction(c echo.Context) error {
	return h.withForm(c, "")
}

// RecordEvent handles POST /v1/tools/:id/events.  The action in the body
// picks the operation.
func (h *ToolingHandler) RecordEvent(c echo.Context) error {
	return h.withForm(c, "*")
}

// withForm binds the logbook form and runs the operation for kind.  An
// empty kind routes to RecordAction; "*" dispatches on the body's action.
func (h *ToolingHandler) withForm(c echo.Context, kind model.Action) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid tool id")
	}
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if kind == "*" {
		a, known := model.ParseAction(req.Action)
		if !known || a == model.ActionCreate {
			return badRequest(c, "unknown action")
		}
		switch a {
		case model.ActionInstall, model.ActionRemove, model.ActionRegrind:
			kind = a
		default:
			kind = ""
		}
	}

	ctx, who := c.Request().Context(), actor(c)
	var (
		ev  model.Event
		err error
	)
	switch kind {
	case model.ActionInstall:
		ev, err = h.Svc.Install(ctx, who, service.InstallInput{
			ToolID:      id,
			EquipmentID: req.EquipmentID,
			Role:        req.Role,
			Position:    req.Position,
			Shift:       req.Shift,
			Reason:      req.Reason,
			Dimension:   string(req.Dimension),
		})
	case model.ActionRemove:
		ev, err = h.Svc.Remove(ctx, who, service.RemoveInput{
			ToolID:      id,
			EquipmentID: req.EquipmentID,
			Role:        req.Role,
			Position:    req.Position,
			Reason:      req.Reason,
			Shift:       req.Shift,
			Note:        req.Note,
		})
	case model.ActionRegrind:
		ev, err = h.Svc.Regrind(ctx, who, service.RegrindInput{
			ToolID:          id,
			DimensionBefore: string(req.Dimension),
			DimensionAfter:  string(req.NewDimension),
			Reason:          req.Reason,
			Shift:           req.Shift,
			Note:            req.Note,
		})
	default:
		if a, _ := model.ParseAction(req.Action); a == model.ActionScrap && !middleware.HasRole(c, model.RoleRoot) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "SCRAP requires the root role"})
		}
		ev, err = h.Svc.RecordAction(ctx, who, service.ActionInput{
			ToolID:       id,
			Action:       req.Action,
			EquipmentID:  req.EquipmentID,
			Role:         req.Role,
			Position:     req.Position,
			Shift:        req.Shift,
			Reason:       req.Reason,
			Note:         req.Note,
			Dimension:    string(req.Dimension),
			NewDimension: string(req.NewDimension),
		})
	}
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toEventResp(ev))
}

type serviceReq struct {
	Action       string  `json:"action"`
	Shift        string  `json:"shift"`
	Note         string  `json:"note"`
	NewDimension dimText `json:"new_dim"`
}

// Service handles POST /v1/tools/:id/service.
func (h *ToolingHandler) Service(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid tool id")
	}
	var req serviceReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ev, err := h.Svc.Service(c.Request().Context(), actor(c), service.ServiceInput{
		ToolID:       id,
		Action:       req.Action,
		Shift:        req.Shift,
		Note:         req.Note,
		NewDimension: string(req.NewDimension),
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toEventResp(ev))
}

// Vocabulary handles GET /v1/tooling/vocabulary.
func (h *ToolingHandler) Vocabulary(c echo.Context) error {
	v := h.Svc.Vocabulary()
	actions := make([]string, 0, len(model.Actions))
	for _, a := range model.Actions {
		actions = append(actions, string(a))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"shifts":          v.Shifts,
		"install_reasons": v.InstallReasons,
		"roles":           v.Roles,
		"positions":       v.Positions,
		"position_roles":  v.PositionRoles,
		"actions":         actions,
	})
}
