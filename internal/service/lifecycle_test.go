package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tooling-tracker/internal/model"
)

var testStart = time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *ToolingService
	store *memStore
	pub   *recordingPublisher
	bm01  model.Equipment
	actor Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	pub := &recordingPublisher{}
	svc := NewToolingService(store, store.stores(), model.DefaultVocabulary(),
		WithPublisher(pub), WithClock(stepClock(testStart)))
	return &fixture{
		svc:   svc,
		store: store,
		pub:   pub,
		bm01:  store.addEquipment("BM-01", "BM-01"),
		actor: UserActor(7, "operator"),
	}
}

func (f *fixture) create(t *testing.T, code, dim, minDim string) model.Tool {
	t.Helper()
	tool, err := f.svc.CreateTool(context.Background(), f.actor, CreateToolInput{
		ToolCode:     code,
		Dimension:    dim,
		MinDimension: minDim,
	})
	require.NoError(t, err)
	return tool
}

func (f *fixture) install(toolID uint64, reason, dim string) (model.Event, error) {
	return f.svc.Install(context.Background(), f.actor, InstallInput{
		ToolID:      toolID,
		EquipmentID: f.bm01.ID,
		Role:        "IRONING",
		Position:    "#1",
		Shift:       "A",
		Reason:      reason,
		Dimension:   dim,
	})
}

func (f *fixture) aggregate(t *testing.T, toolID uint64) AggregateView {
	t.Helper()
	v, err := f.svc.GetAggregate(context.Background(), toolID)
	require.NoError(t, err)
	return v
}

func TestCreateTool_StartsInStock(t *testing.T) {
	f := newFixture(t)
	tool := f.create(t, "BATCH-001", "12,3", "")

	assert.True(t, tool.IsActive)
	assert.Equal(t, "12.300", FormatDimension(tool.CurrentDiameter))
	require.NotNil(t, tool.ToolTypeID)

	v := f.aggregate(t, tool.ID)
	assert.Equal(t, model.StatusStock, v.Status)
	assert.Equal(t, "CREATE", v.LastAction)

	events, err := f.svc.ListEvents(context.Background(), tool.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "operator", events[0].UserName)
	assert.Equal(t, model.Status(""), events[0].FromStatus)
}

func TestCreateTool_DuplicateCodeIsConflict(t *testing.T) {
	f := newFixture(t)
	f.create(t, "BATCH-001", "", "")

	_, err := f.svc.CreateTool(context.Background(), f.actor, CreateToolInput{ToolCode: " BATCH-001 "})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Len(t, f.store.allEvents(), 1)
}

func TestCreateTool_ConcurrentSameCode(t *testing.T) {
	f := newFixture(t)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateTool(context.Background(), f.actor, CreateToolInput{ToolCode: "BATCH-777"})
			mu.Lock()
			defer mu.Unlock()
			var ce *ConflictError
			switch {
			case err == nil:
				ok++
			case errors.As(err, &ce):
				conflicts++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
}

func TestCreateTool_Validation(t *testing.T) {
	f := newFixture(t)
	cases := []CreateToolInput{
		{ToolCode: "  "},
		{ToolCode: "X", Dimension: "abc"},
		{ToolCode: "X", MinDimension: "-1"},
	}
	for _, in := range cases {
		_, err := f.svc.CreateTool(context.Background(), f.actor, in)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve, "%+v", in)
	}
	assert.Empty(t, f.store.allEvents())
}

func TestInstall_IntoEmptySlot(t *testing.T) {
	f := newFixture(t)
	tool := f.create(t, "BATCH-001", "12.3", "")

	ev, err := f.install(tool.ID, "New", "63.0")
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, ev.FromStatus)
	assert.Equal(t, model.StatusInstalled, ev.ToStatus)
	assert.Equal(t, "New", ev.ReasonText())
	assert.Equal(t, "BM-01", ev.MachineName)
	require.NotNil(t, ev.SlotID)

	got, err := f.svc.tool(context.Background(), tool.ID)
	require.NoError(t, err)
	assert.Equal(t, "63.000", FormatDimension(got.CurrentDiameter))

	mounts := f.store.openMounts()
	require.Len(t, mounts, 1)
	assert.Equal(t, tool.ID, mounts[0].ToolID)
	require.NotNil(t, mounts[0].CreatedByID)
	assert.Equal(t, uint64(7), *mounts[0].CreatedByID)
}

func TestInstall_AutoUninstallKeepsReasonOnRemove(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "A", "63", "")
	b := f.create(t, "B", "63", "")
	_, err := f.install(a.ID, "New", "63.0")
	require.NoError(t, err)

	ev, err := f.install(b.ID, "Top wall oversize", "63.1")
	require.NoError(t, err)
	assert.Nil(t, ev.Reason)

	av := f.aggregate(t, a.ID)
	assert.Equal(t, "REMOVE", av.LastAction)
	assert.Equal(t, model.StatusNeedService, av.Status)
	require.NotNil(t, av.Reason)
	assert.Equal(t, "Top wall oversize", *av.Reason)
	assert.Equal(t, "63.000", FormatDimension(av.Dimension))

	bv := f.aggregate(t, b.ID)
	assert.Equal(t, "INSTALL", bv.LastAction)
	assert.Equal(t, model.StatusInstalled, bv.Status)
	assert.Nil(t, bv.Reason)

	mounts := f.store.openMounts()
	require.Len(t, mounts, 1)
	assert.Equal(t, b.ID, mounts[0].ToolID)
}

func TestInstall_MovesToolBetweenSlots(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "A", "63", "")
	b := f.create(t, "B", "63", "")
	_, err := f.install(a.ID, "New", "63.0")
	require.NoError(t, err)

	_, err = f.svc.Install(context.Background(), f.actor, InstallInput{
		ToolID:      a.ID,
		EquipmentID: f.bm01.ID,
		Role:        "IRONING",
		Position:    "#2",
		Shift:       "A",
		Reason:      "New",
		Dimension:   "63.0",
	})
	require.NoError(t, err)

	mounts := f.store.openMounts()
	require.Len(t, mounts, 1)
	assert.Equal(t, a.ID, mounts[0].ToolID)
	moved := mounts[0].SlotID

	// The first slot is empty now, so B goes in without removing A.
	_, err = f.install(b.ID, "Top wall oversize", "63.0")
	require.NoError(t, err)

	av := f.aggregate(t, a.ID)
	assert.Equal(t, "INSTALL", av.LastAction)
	assert.Equal(t, model.StatusInstalled, av.Status)
	assert.Equal(t, "#2", av.Position)

	mounts = f.store.openMounts()
	require.Len(t, mounts, 2)
	for _, m := range mounts {
		if m.ToolID == a.ID {
			assert.Equal(t, moved, m.SlotID)
		}
	}
}

func TestInstall_TrialReasonStaysOnInstall(t *testing.T) {
	for _, reason := range []string{"Trial", "new"} {
		t.Run(reason, func(t *testing.T) {
			f := newFixture(t)
			a := f.create(t, "A", "63", "")
			b := f.create(t, "B", "63", "")
			_, err := f.install(a.ID, "Scheduled change", "63.0")
			require.NoError(t, err)

			_, err = f.install(b.ID, reason, "63.0")
			require.NoError(t, err)

			av := f.aggregate(t, a.ID)
			require.NotNil(t, av.Reason)
			assert.Equal(t, AutoUninstallReason, *av.Reason)

			bv := f.aggregate(t, b.ID)
			require.NotNil(t, bv.Reason)
			assert.Equal(t, model.StatusInstalled, bv.Status)
			assert.NotEqual(t, AutoUninstallReason, *bv.Reason)
		})
	}
}

func TestInstall_BelowMinimumIsRefusedWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	tool := f.create(t, "WORN", "62.0", "63.0")
	before := len(f.store.allEvents())
	published := len(f.pub.events)

	_, err := f.install(tool.ID, "Die worn", "62.0")
	var de *DomainError
	require.ErrorAs(t, err, &de)

	assert.Len(t, f.store.allEvents(), before)
	assert.Empty(t, f.store.openMounts())
	assert.Len(t, f.pub.events, published)
}

func TestInstall_Validation(t *testing.T) {
	f := newFixture(t)
	tool := f.create(t, "T", "63", "")
	base := InstallInput{
		ToolID: tool.ID, EquipmentID: f.bm01.ID, Role: "IRONING", Position: "#1",
		Shift: "A", Reason: "New", Dimension: "63",
	}
	cases := map[string]func(in *InstallInput){
		"missing role":             func(in *InstallInput) { in.Role = "" },
		"ironing without position": func(in *InstallInput) { in.Position = "" },
		"missing equipment":        func(in *InstallInput) { in.EquipmentID = 0 },
		"unknown shift":            func(in *InstallInput) { in.Shift = "Z" },
		"missing dimension":        func(in *InstallInput) { in.Dimension = "" },
		"bad dimension":            func(in *InstallInput) { in.Dimension = "6x" },
		"unknown reason":           func(in *InstallInput) { in.Reason = "Because" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := base
			mutate(&in)
			_, err := f.svc.Install(context.Background(), f.actor, in)
			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
	assert.Len(t, f.store.allEvents(), 1)
	assert.Empty(t, f.store.openMounts())
}

func TestInstall_PositionOptionalForOtherRoles(t *testing.T) {
	f := newFixture(t)
	tool := f.create(t, "P", "10", "")
	ev, err := f.svc.Install(context.Background(), f.actor, InstallInput{
		ToolID: tool.ID, EquipmentID: f.bm01.ID, Role: "punch", Shift: "b", Reason: "die worn", Dimension: "10",
	})
	require.NoError(t, err)
	assert.Equal(t, "PUNCH", ev.Role)
	assert.Equal(t, "B", ev.Shift)
	assert.Empty(t, ev.Position)
}

func TestInstall_NotFound(t *testing.T) {
	f := newFixture(t)
	tool := f.create(t, "T", "63", "")

	_, err := f.install(999, "New", "63")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "tool", nf.Entity)

	_, err = f.svc.Install(context.Background(), f.actor, InstallInput{
		ToolID: tool.ID, EquipmentID: 424242, Role: "IRONING", Position: "#1", Shift: "A", Reason: "New", Dimension: "63",
	})
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "equipment", nf.Entity)
}

func TestInstall_FailedEventRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "A", "63", "")
	b := f.create(t, "B", "63", "")
	_, err := f.install(a.ID, "New", "63")
	require.NoError(t, err)
	before := f.store.allEvents()

	f.store.failAppend = func(e *model.Event) error {
		if e.Action == model.ActionInstall {
			return errors.New("disk full")
		}
		return nil
	}
	_, err = f.install(b.ID, "Die worn", "63")
	require.Error(t, err)

	assert.Equal(t, before, f.store.allEvents())
	mounts := f.store.openMounts()
	require.Len(t, mounts, 1)
	assert.Equal(t, a.ID, mounts[0].ToolID)
	assert.Equal(t, model.StatusInstalled, f.aggregate(t, a.ID).Status)
}

func TestInstall_ConcurrentIntoSameSlot(t *testing.T) {
	f := newFixture(t)
	var tools []model.Tool
	for i := 0; i < 8; i++ {
		tools = append(tools, f.create(t, fmt.Sprintf("C-%02d", i), "63", ""))
	}
	var wg sync.WaitGroup
	for _, tool := range tools {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			_, err := f.install(id, "Die worn", "63")
			assert.NoError(t, err)
		}(tool.ID)
	}
	wg.Wait()

	mounts := f.store.openMounts()
	require.Len(t, mounts, 1)
	installed := 0
	for _, tool := range tools {
		if f.aggregate(t, tool.ID).Status == model.StatusInstalled {
			installed++
		}
	}
	assert.Equal(t, 1, installed)
}

func TestRemove_ClosesMountAndNeedsService(t *testing.T) {
	f := newFixture(t)
	tool := f.create(t, "R", "63", "")
	_, err := f.install(tool.ID, "New", "63.2")
	require.NoError(t, err)

	ev, err := f.svc.Remove(context.Background(), f.actor, RemoveInput{
		ToolID: tool.ID, EquipmentID: f.bm01.ID, Role: "IRONING", Position: "#1",
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultRemoveReason, ev.ReasonText())
	assert.Equal(t, model.StatusNeedService, ev.ToStatus)
	assert.Equal(t, "63.200", FormatDimension(ev.Dimension))
	assert.Empty(t, f.store.openMounts())
}

func TestRemove_WithoutMountStillRecords(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "A", "63", "")
	b := f.create(t, "B", "63", "")
	_, err := f.install(a.ID, "New", "63")
	require.NoError(t, err)

	_, err = f.svc.Remove(context.Background(), f.actor, RemoveInput{
		ToolID: b.ID, EquipmentID: f.bm01.ID, Role: "IRONING", Position: "#1", Reason: "Die damage",
	})
	require.NoError(t, err)

	mounts := f.store.openMounts()
	require.Len(t, mounts, 1)
	assert.Equal(t, a.ID, mounts[0].ToolID)
	assert.Equal(t, model.StatusNeedService, f.aggregate(t, b.ID).Status)
}

func TestRemove_Validation(t *testing.T) {
	f := newFixture(t)
	tool := f.create(t, "R", "63", "")
	cases := []RemoveInput{
		{ToolID: tool.ID, Role: "IRONING", Position: "#1"},
		{ToolID: tool.ID, EquipmentID: f.bm01.ID, Position: "#1"},
		{ToolID: tool.ID, EquipmentID: f.bm01.ID, Role: "IRONING"},
		{ToolID: tool.ID, EquipmentID: f.bm01.ID, Role: "IRONING", Position: "#1", Shift: "Night"},
	}
	for _, in := range cases {
		_, err := f.svc.Remove(context.Background(), f.actor, in)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve, "%+v", in)
	}
}

func TestRegrind_RoundTrip(t *testing.T) {
	f := newFixture(t)
	tool := f.create(t, "G", "62.5", "")

	ev, err := f.svc.Regrind(context.Background(), f.actor, RegrindInput{
		ToolID: tool.ID, DimensionBefore: "62.5", DimensionAfter: "63.75",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusStock, ev.ToStatus)
	assert.Equal(t, DefaultRegrindReason, ev.ReasonText())

	got, err := f.svc.tool(context.Background(), tool.ID)
	require.NoError(t, err)
	assert.Equal(t, "63.750", FormatDimension(got.CurrentDiameter))
	assert.Equal(t, uint32(1), got.RegrindCount)
}

func TestRegrind_WithoutNewDimensionKeepsDiameter(t *testing.T) {
	f := newFixture(t)
	tool := f.create(t, "G", "62.5", "")

	ev, err := f.svc.Regrind(context.Background(), SystemActor, RegrindInput{ToolID: tool.ID})
	require.NoError(t, err)
	assert.Equal(t, "62.500", FormatDimension(ev.Dimension))
	assert.False(t, ev.NewDimension.Valid)
	assert.Equal(t, SystemUserName, ev.UserName)

	got, err := f.svc.tool(context.Background(), tool.ID)
	require.NoError(t, err)
	assert.Equal(t, "62.500", FormatDimension(got.CurrentDiameter))
	assert.Equal(t, uint32(1), got.RegrindCount)
}

func TestRecordAction_StatusMapping(t *testing.T) {
	f := newFixture(t)
	tool := f.create(t, "S", "63", "")
	steps := []struct {
		action string
		want   model.Status
	}{
		{"inspect", model.StatusStock},
		{"MARK_DEFECTIVE", model.StatusDefective},
		{"REPAIR", model.StatusStock},
		{"MARK_READY", model.StatusReady},
		{"WASH", model.StatusReady},
	}
	prev := model.StatusStock
	for _, step := range steps {
		ev, err := f.svc.RecordAction(context.Background(), f.actor, ActionInput{ToolID: tool.ID, Action: step.action})
		require.NoError(t, err, step.action)
		assert.Equal(t, prev, ev.FromStatus, step.action)
		assert.Equal(t, step.want, ev.ToStatus, step.action)
		prev = step.want
	}
	assert.Equal(t, model.StatusReady, f.aggregate(t, tool.ID).Status)
}

func TestRecordAction_RejectsDedicatedKinds(t *testing.T) {
	f := newFixture(t)
	tool := f.create(t, "S", "63", "")
	for _, a := range []string{"CREATE", "INSTALL", "REMOVE", "REGRIND", "FLY"} {
		_, err := f.svc.RecordAction(context.Background(), f.actor, ActionInput{ToolID: tool.ID, Action: a})
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve, a)
	}
}

func TestRecordAction_ScrapDeactivatesAndUnmounts(t *testing.T) {
	f := newFixture(t)
	tool := f.create(t, "X", "63", "")
	_, err := f.install(tool.ID, "New", "63")
	require.NoError(t, err)

	ev, err := f.svc.RecordAction(context.Background(), f.actor, ActionInput{
		ToolID: tool.ID, Action: "SCRAP", Reason: "cracked", EquipmentID: f.bm01.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInstalled, ev.FromStatus)
	assert.Equal(t, model.StatusScrapped, ev.ToStatus)
	assert.Equal(t, "BM-01", ev.MachineName)
	assert.Empty(t, f.store.openMounts())

	list, err := f.svc.ListActiveTools(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.install(tool.ID, "New", "63")
	var de *DomainError
	assert.ErrorAs(t, err, &de)

	v := f.aggregate(t, tool.ID)
	assert.Equal(t, model.StatusScrapped, v.Status)
}

func TestService_Shortcut(t *testing.T) {
	f := newFixture(t)
	tool := f.create(t, "SV", "63", "")
	_, err := f.install(tool.ID, "New", "63")
	require.NoError(t, err)
	_, err = f.svc.Remove(context.Background(), f.actor, RemoveInput{
		ToolID: tool.ID, EquipmentID: f.bm01.ID, Role: "IRONING", Position: "#1",
	})
	require.NoError(t, err)

	ev, err := f.svc.Service(context.Background(), f.actor, ServiceInput{ToolID: tool.ID, Action: "polish"})
	require.NoError(t, err)
	assert.Equal(t, model.ActionPolish, ev.Action)
	assert.Equal(t, model.StatusStock, ev.ToStatus)

	_, err = f.svc.Service(context.Background(), f.actor, ServiceInput{ToolID: tool.ID, Action: "REGRIND"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "new_dimension", ve.Field)

	ev, err = f.svc.Service(context.Background(), f.actor, ServiceInput{ToolID: tool.ID, Action: "REGRIND", NewDimension: "62,9"})
	require.NoError(t, err)
	assert.Equal(t, "62.900", FormatDimension(ev.NewDimension))

	_, err = f.svc.Service(context.Background(), f.actor, ServiceInput{ToolID: tool.ID, Action: "SCRAP"})
	assert.ErrorAs(t, err, &ve)
}

func TestPublish_OnlyAfterCommit(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "A", "63", "")
	b := f.create(t, "B", "63", "")
	_, err := f.install(a.ID, "New", "63")
	require.NoError(t, err)
	_, err = f.install(b.ID, "Die worn", "63")
	require.NoError(t, err)

	var actions []model.Action
	for _, e := range f.pub.events {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []model.Action{
		model.ActionCreate, model.ActionCreate, model.ActionInstall, model.ActionRemove, model.ActionInstall,
	}, actions)

	f.pub.err = errors.New("broker down")
	_, err = f.svc.Regrind(context.Background(), f.actor, RegrindInput{ToolID: a.ID})
	assert.NoError(t, err)
}

func TestScenario_TwoBatchesOneSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b1, err := f.svc.CreateTool(ctx, f.actor, CreateToolInput{ToolCode: "BATCH-001", TypeCode: "GENERIC", Dimension: "12.3"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusStock, f.aggregate(t, b1.ID).Status)

	_, err = f.install(b1.ID, "New", "63.0")
	require.NoError(t, err)
	v := f.aggregate(t, b1.ID)
	assert.Equal(t, model.StatusInstalled, v.Status)
	assert.Equal(t, "63.000", FormatDimension(v.Dimension))

	b2, err := f.svc.CreateTool(ctx, f.actor, CreateToolInput{ToolCode: "BATCH-002", Dimension: "62.0"})
	require.NoError(t, err)
	_, err = f.install(b2.ID, "Die worn", "62.0")
	require.NoError(t, err)

	v1 := f.aggregate(t, b1.ID)
	assert.Equal(t, model.StatusNeedService, v1.Status)
	require.NotNil(t, v1.Reason)
	assert.Equal(t, "Die worn", *v1.Reason)

	v2 := f.aggregate(t, b2.ID)
	assert.Equal(t, model.StatusInstalled, v2.Status)
	assert.Nil(t, v2.Reason)

	_, err = f.svc.Regrind(ctx, f.actor, RegrindInput{ToolID: b1.ID, DimensionAfter: "63.5"})
	require.NoError(t, err)
	v1 = f.aggregate(t, b1.ID)
	assert.Equal(t, model.StatusStock, v1.Status)
	assert.Equal(t, "63.500", FormatDimension(v1.NewDimension))

	tool, err := f.svc.tool(ctx, b1.ID)
	require.NoError(t, err)
	assert.Equal(t, "63.500", FormatDimension(tool.CurrentDiameter))
	assert.Equal(t, uint32(1), tool.RegrindCount)
}
