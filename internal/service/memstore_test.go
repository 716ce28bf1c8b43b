package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/tooling-tracker/internal/model"
	"github.com/iliyamo/tooling-tracker/internal/ports"
	"github.com/iliyamo/tooling-tracker/internal/repository"
)

// memStore is an in-memory implementation of every tooling port.  A
// transaction holds txMu for its whole duration, which gives the same
// serialisation the row locks give in MySQL, and restores a snapshot when
// it fails.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	tools     map[uint64]model.Tool
	toolTypes map[string]uint64
	equipment map[uint64]model.Equipment
	slots     []model.EquipmentSlot
	mounts    []model.Mount
	events    []model.Event
	nextID    uint64

	// failAppend, when set, is consulted before every event insert.
	failAppend func(e *model.Event) error
}

func newMemStore() *memStore {
	return &memStore{
		tools:     map[uint64]model.Tool{},
		toolTypes: map[string]uint64{},
		equipment: map[uint64]model.Equipment{},
	}
}

func (m *memStore) stores() Stores {
	return Stores{
		Tools:     memTools{m},
		ToolTypes: memToolTypes{m},
		Equipment: memEquipment{m},
		Slots:     memSlots{m},
		Mounts:    memMounts{m},
		Events:    memEvents{m},
	}
}

func (m *memStore) id() uint64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addEquipment(code, name string) model.Equipment {
	m.mu.Lock()
	defer m.mu.Unlock()
	eq := model.Equipment{ID: m.id(), Code: code, Name: name}
	m.equipment[eq.ID] = eq
	return eq
}

type memSnapshot struct {
	tools     map[uint64]model.Tool
	toolTypes map[string]uint64
	slots     []model.EquipmentSlot
	mounts    []model.Mount
	events    []model.Event
	nextID    uint64
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := memSnapshot{
		tools:     make(map[uint64]model.Tool, len(m.tools)),
		toolTypes: make(map[string]uint64, len(m.toolTypes)),
		slots:     append([]model.EquipmentSlot(nil), m.slots...),
		mounts:    append([]model.Mount(nil), m.mounts...),
		events:    append([]model.Event(nil), m.events...),
		nextID:    m.nextID,
	}
	for k, v := range m.tools {
		s.tools[k] = v
	}
	for k, v := range m.toolTypes {
		s.toolTypes[k] = v
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools = s.tools
	m.toolTypes = s.toolTypes
	m.slots = s.slots
	m.mounts = s.mounts
	m.events = s.events
	m.nextID = s.nextID
}

// WithTx implements ports.UnitOfWork.
func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ports.TxFromContext(ctx) != nil {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()
	snap := m.snapshot()
	if err := fn(ports.WithTxContext(ctx, m)); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) openMounts() []model.Mount {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Mount
	for _, mt := range m.mounts {
		if mt.Open() {
			out = append(out, mt)
		}
	}
	return out
}

func (m *memStore) allEvents() []model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Event(nil), m.events...)
}

type memTools struct{ m *memStore }

func (r memTools) Create(_ context.Context, t *model.Tool) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.tools {
		if existing.ToolCode == t.ToolCode {
			return repository.ErrDuplicate
		}
	}
	t.ID = r.m.id()
	r.m.tools[t.ID] = *t
	return nil
}

func (r memTools) GetByID(_ context.Context, id uint64) (model.Tool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.tools[id]
	if !ok {
		return model.Tool{}, repository.ErrToolNotFound
	}
	return t, nil
}

func (r memTools) GetByIDForUpdate(ctx context.Context, id uint64) (model.Tool, error) {
	return r.GetByID(ctx, id)
}

func (r memTools) GetByCode(_ context.Context, code string) (model.Tool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, t := range r.m.tools {
		if t.ToolCode == code {
			return t, nil
		}
	}
	return model.Tool{}, repository.ErrToolNotFound
}

func (r memTools) UpdateState(_ context.Context, t model.Tool) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cur, ok := r.m.tools[t.ID]
	if !ok {
		return repository.ErrToolNotFound
	}
	cur.CurrentDiameter = t.CurrentDiameter
	cur.RegrindCount = t.RegrindCount
	cur.IsActive = t.IsActive
	r.m.tools[t.ID] = cur
	return nil
}

func (r memTools) ListActive(_ context.Context, search string) ([]model.Tool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []model.Tool
	for _, t := range r.m.tools {
		if !t.IsActive {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(t.ToolCode), strings.ToLower(search)) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ToolCode < out[j].ToolCode })
	return out, nil
}

func (r memTools) Neighbours(_ context.Context, id uint64) (uint64, uint64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var prev, next uint64
	for tid, t := range r.m.tools {
		if !t.IsActive {
			continue
		}
		if tid < id && tid > prev {
			prev = tid
		}
		if tid > id && (next == 0 || tid < next) {
			next = tid
		}
	}
	return prev, next, nil
}

type memToolTypes struct{ m *memStore }

func (r memToolTypes) Ensure(_ context.Context, code string) (uint64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if id, ok := r.m.toolTypes[code]; ok {
		return id, nil
	}
	id := r.m.id()
	r.m.toolTypes[code] = id
	return id, nil
}

type memEquipment struct{ m *memStore }

func (r memEquipment) GetByID(_ context.Context, id uint64) (model.Equipment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	eq, ok := r.m.equipment[id]
	if !ok {
		return model.Equipment{}, repository.ErrEquipmentNotFound
	}
	return eq, nil
}

type memSlots struct{ m *memStore }

func (r memSlots) FindForUpdate(_ context.Context, equipmentID uint64, role, position string) (model.EquipmentSlot, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.slots {
		if s.EquipmentID == equipmentID && s.Role == role && s.Position == position {
			return s, nil
		}
	}
	return model.EquipmentSlot{}, repository.ErrSlotNotFound
}

func (r memSlots) Create(_ context.Context, s *model.EquipmentSlot) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.slots {
		if existing.EquipmentID == s.EquipmentID && existing.Role == s.Role && existing.Position == s.Position {
			return repository.ErrDuplicate
		}
	}
	s.ID = r.m.id()
	s.IsActive = true
	r.m.slots = append(r.m.slots, *s)
	return nil
}

func (r memSlots) GetByID(_ context.Context, id uint64) (model.EquipmentSlot, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.slots {
		if s.ID == id {
			return s, nil
		}
	}
	return model.EquipmentSlot{}, repository.ErrSlotNotFound
}

type memMounts struct{ m *memStore }

func (r memMounts) ActiveInSlot(_ context.Context, slotID uint64) (*model.Mount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i := len(r.m.mounts) - 1; i >= 0; i-- {
		mt := r.m.mounts[i]
		if mt.SlotID == slotID && mt.Open() {
			return &mt, nil
		}
	}
	return nil, nil
}

func (r memMounts) ActiveForTool(_ context.Context, toolID uint64) ([]model.Mount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []model.Mount
	for _, mt := range r.m.mounts {
		if mt.ToolID == toolID && mt.Open() {
			out = append(out, mt)
		}
	}
	return out, nil
}

func (r memMounts) Open(_ context.Context, mt *model.Mount) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	mt.ID = r.m.id()
	r.m.mounts = append(r.m.mounts, *mt)
	return nil
}

func (r memMounts) Close(_ context.Context, id uint64, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i := range r.m.mounts {
		if r.m.mounts[i].ID == id && r.m.mounts[i].Open() {
			t := at
			r.m.mounts[i].EndedAt = &t
		}
	}
	return nil
}

type memEvents struct{ m *memStore }

func (r memEvents) Append(_ context.Context, e *model.Event) error {
	if r.m.failAppend != nil {
		if err := r.m.failAppend(e); err != nil {
			return err
		}
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e.ID = r.m.id()
	r.m.events = append(r.m.events, *e)
	return nil
}

func (r memEvents) sorted(toolID uint64, ascending bool) []model.Event {
	var out []model.Event
	for _, e := range r.m.events {
		if e.ToolID == toolID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.HappenedAt.Equal(b.HappenedAt) {
			if ascending {
				return a.HappenedAt.Before(b.HappenedAt)
			}
			return a.HappenedAt.After(b.HappenedAt)
		}
		if ascending {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})
	return out
}

func (r memEvents) Last(_ context.Context, toolID uint64) (*model.Event, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	evs := r.sorted(toolID, false)
	if len(evs) == 0 {
		return nil, nil
	}
	return &evs[0], nil
}

func (r memEvents) LastForTools(_ context.Context, toolIDs []uint64) (map[uint64]model.Event, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := map[uint64]model.Event{}
	for _, id := range toolIDs {
		if evs := r.sorted(id, false); len(evs) > 0 {
			out[id] = evs[0]
		}
	}
	return out, nil
}

func (r memEvents) ListByTool(_ context.Context, toolID uint64, ascending bool) ([]model.Event, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.sorted(toolID, ascending), nil
}

// stepClock returns a clock that advances one minute on every call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Minute)
		return now
	}
}

// recordingPublisher captures what the service publishes.
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events []model.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return p.err
}
