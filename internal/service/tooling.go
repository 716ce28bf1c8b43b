package service

import (
	"context"
	"time"

	"github.com/iliyamo/tooling-tracker/internal/logger"
	"github.com/iliyamo/tooling-tracker/internal/model"
	"github.com/iliyamo/tooling-tracker/internal/ports"
)

// AutoUninstallReason is written on the REMOVE event of a tool pulled out
// by the installation of a new or trial tool.
const AutoUninstallReason = "Auto-uninstall (new INSTALL)"

// Default reasons used when the caller leaves the field empty.
const (
	DefaultRemoveReason  = "REMOVE"
	DefaultRegrindReason = "REGRIND"
)

// Stores groups the repositories the tooling service works on.
type Stores struct {
	Tools     ports.ToolRepository
	ToolTypes ports.ToolTypeRepository
	Equipment ports.EquipmentRepository
	Slots     ports.SlotRepository
	Mounts    ports.MountRepository
	Events    ports.EventRepository
}

// ToolingService implements the tool lifecycle on top of the event log.
// Every operation runs in one unit of work; events are published only
// after it commits.
type ToolingService struct {
	uow       ports.UnitOfWork
	st        Stores
	vocab     model.Vocabulary
	publisher ports.EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

// Option customises a ToolingService.
type Option func(*ToolingService)

// WithPublisher sends committed events to p.
func WithPublisher(p ports.EventPublisher) Option {
	return func(s *ToolingService) { s.publisher = p }
}

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *ToolingService) { s.log = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *ToolingService) { s.now = now }
}

// NewToolingService wires the service.  It panics when a store is missing.
func NewToolingService(uow ports.UnitOfWork, st Stores, vocab model.Vocabulary, opts ...Option) *ToolingService {
	if uow == nil || st.Tools == nil || st.ToolTypes == nil || st.Equipment == nil ||
		st.Slots == nil || st.Mounts == nil || st.Events == nil {
		panic("nil store passed to NewToolingService")
	}
	s := &ToolingService{
		uow:   uow,
		st:    st,
		vocab: vocab,
		log:   logger.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Vocabulary returns the label sets the service validates against.
func (s *ToolingService) Vocabulary() model.Vocabulary { return s.vocab }

func (s *ToolingService) clock() time.Time {
	// DATETIME(6) keeps microseconds; truncate so stored and in-memory
	// timestamps compare equal.
	return s.now().UTC().Truncate(time.Microsecond)
}

// run executes fn in a transaction and publishes the events it recorded
// once the transaction has committed.
func (s *ToolingService) run(ctx context.Context, op string, fn func(ctx context.Context, rec *recorder) error) error {
	rec := &recorder{events: s.st.Events}
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		return fn(txCtx, rec)
	}); err != nil {
		err = translate(op, err)
		s.log.Warn("tooling operation failed", "op", op, "error", err)
		return err
	}
	for _, e := range rec.written {
		s.log.Info("tooling event recorded",
			"op", op, "event_id", e.ID, "tool_id", e.ToolID, "batch", e.BatchNo,
			"action", string(e.Action), "to_status", string(e.ToStatus), "user", e.UserName)
	}
	if s.publisher != nil && len(rec.written) > 0 {
		if err := s.publisher.Publish(ctx, rec.written); err != nil {
			s.log.Warn("publish tooling events failed", "op", op, "error", err)
		}
	}
	return nil
}

// recorder appends events and remembers them for publishing.
type recorder struct {
	events  ports.EventRepository
	written []model.Event
}

func (r *recorder) append(ctx context.Context, e *model.Event) error {
	if err := r.events.Append(ctx, e); err != nil {
		return err
	}
	r.written = append(r.written, *e)
	return nil
}
