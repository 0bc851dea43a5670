// Package services – QueueService
//
// QueueService is the single logical owner of every queue mutation. Each
// mutating call takes the provider's lock, runs one database transaction
// (lifecycle change, estimator update, ETA propagation) and publishes the
// resulting change events after commit, before the lock is released. A
// failed transaction leaves nothing behind, so an entry never keeps a stale
// ETA after a partial update.
//
// Optimistic write conflicts and busy errors are retried from a fresh read
// up to MaxRetries times. Reads run without the lock against committed
// state.
//
// Observability: public methods are OpenTelemetry-instrumented and
// transition outcomes are counted in Prometheus.
package services

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/width"

	"github.com/tbourn/go-queue-backend/internal/domain"
	"github.com/tbourn/go-queue-backend/internal/eta"
	"github.com/tbourn/go-queue-backend/internal/notify"
	"github.com/tbourn/go-queue-backend/internal/observability"
	"github.com/tbourn/go-queue-backend/internal/repo"
	"github.com/tbourn/go-queue-backend/internal/sequence"
)

// Publisher receives change events. notify.Hub implements it.
type Publisher interface {
	Publish(ev notify.Event)
}

// CreateEntryInput describes one admission request.
type CreateEntryInput struct {
	ProviderKey    string // defaults to QueueService.DefaultProvider
	Day            string // YYYY-MM-DD; must be today in Location when set
	ParticipantRef string
	Manual         bool   // staff-added walk-in; skips the duplicate rule
	IdempotencyKey string // optional; replays the first entry created with it
}

// EntryETA is the answer to "when will I be served".
type EntryETA struct {
	EntryID            string        `json:"entry_id"`
	Status             domain.Status `json:"status"`
	SequenceNumber     int64         `json:"sequence_number"`
	Ahead              int64         `json:"ahead"`
	EstimatedServiceAt *time.Time    `json:"estimated_service_at"`
	AverageMs          int64         `json:"average_ms"`
	Running            bool          `json:"running"`
}

// EstimatePayload is carried by per-entry estimateUpdated events.
type EstimatePayload struct {
	SequenceNumber     int64      `json:"sequence_number"`
	EstimatedServiceAt *time.Time `json:"estimated_service_at"`
	AverageMs          int64      `json:"average_ms"`
}

// QueueService coordinates queue mutations and reads.
type QueueService struct {
	DB        *gorm.DB
	Sequence  sequence.Allocator
	Estimator *Estimator
	Notifier  Publisher // optional

	DefaultProvider   string
	Location          *time.Location
	UniqueParticipant bool
	MaxRetries        int
	IdempotencyTTL    time.Duration
	Now               func() time.Time

	locks sync.Map // provider key -> *sync.Mutex
}

// NewQueueService constructs a QueueService with defaults: provider
// "global", UTC days, duplicate rule on, three attempts per mutation.
func NewQueueService(db *gorm.DB, alloc sequence.Allocator, est *Estimator, pub Publisher) *QueueService {
	return &QueueService{
		DB:                db,
		Sequence:          alloc,
		Estimator:         est,
		Notifier:          pub,
		DefaultProvider:   "global",
		Location:          time.UTC,
		UniqueParticipant: true,
		MaxRetries:        3,
		IdempotencyTTL:    24 * time.Hour,
		Now:               time.Now,
	}
}

// CreateEntry allocates the next sequence number of the (day, provider)
// queue and admits a pending entry. The second result is true when the
// entry was replayed from an earlier request with the same idempotency key.
func (s *QueueService) CreateEntry(ctx context.Context, in CreateEntryInput) (*domain.QueueEntry, bool, error) {
	provider := s.provider(in.ProviderKey)
	ctx, span := otel.Tracer("services/QueueService").Start(ctx, "CreateEntry",
		trace.WithAttributes(
			observability.AttrProvider.String(provider),
			observability.AttrManual.Bool(in.Manual),
		),
	)
	defer span.End()

	now := s.now()
	today := domain.DayOf(now, s.Location)
	// Only today's queue admits walk-ins; ETAs and the no-show clock are
	// anchored to now.
	day := strings.TrimSpace(in.Day)
	if day == "" {
		day = today
	} else if day != today {
		return nil, false, ErrInvalidInput
	}
	ref := NormalizeParticipant(in.ParticipantRef)
	if ref == "" && !in.Manual {
		return nil, false, ErrInvalidInput
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	span.SetAttributes(observability.AttrDay.String(day))

	var (
		out      *domain.QueueEntry
		replayed bool
	)
	err := s.mutate(ctx, provider, func(tx *gorm.DB, m *mutation) error {
		out, replayed = nil, false
		if key != "" {
			rec, err := repo.GetIdempotency(ctx, tx, provider, key, now)
			if err == nil {
				e, err := repo.GetEntry(ctx, tx, rec.EntryID)
				if err != nil {
					return err
				}
				out, replayed = e, true
				return nil
			}
			if !errors.Is(err, repo.ErrNotFound) {
				return err
			}
		}

		if s.UniqueParticipant && !in.Manual {
			dup, err := repo.HasOpenForParticipant(ctx, tx, day, provider, ref)
			if err != nil {
				return err
			}
			if dup {
				return ErrDuplicateActive
			}
		}

		seq, err := s.allocate(ctx, tx, day, provider)
		if err != nil {
			return err
		}
		e := &domain.QueueEntry{
			ID:             uuid.NewString(),
			Day:            day,
			ProviderKey:    provider,
			SequenceNumber: seq,
			ParticipantRef: ref,
			Manual:         in.Manual,
			Status:         domain.StatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
			Version:        1,
		}
		if err := repo.CreateEntry(ctx, tx, e); err != nil {
			return err
		}
		if key != "" {
			if _, err := repo.CreateIdempotency(ctx, tx, provider, key, e.ID, 201, now, s.IdempotencyTTL); err != nil {
				return err
			}
		}

		res, err := s.recompute(ctx, tx, day, provider, now)
		if err != nil {
			return err
		}
		refresh(e, res)
		m.emit(notify.Event{Kind: notify.KindEntryCreated, ProviderKey: provider, Day: day, EntryID: e.ID, At: now, Payload: *e})
		m.estimates(res, day, provider, now, e.ID)
		m.gauges(day, provider)
		out = e
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, false, classify(err)
	}
	return out, replayed, nil
}

// Transition applies action to entry id and recomputes its queue.
// A repeated begin_service is accepted without change.
func (s *QueueService) Transition(ctx context.Context, id string, action domain.Action) (*domain.QueueEntry, error) {
	ctx, span := otel.Tracer("services/QueueService").Start(ctx, "Transition",
		trace.WithAttributes(
			observability.AttrEntryID.String(id),
			observability.AttrAction.String(string(action)),
		),
	)
	defer span.End()

	e, err := s.transition(ctx, id, action, nil)
	observability.RecordTransition(string(action), resultLabel(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return e, nil
}

// transition runs one lifecycle step. When guard is set it is evaluated on
// the freshly read entry inside the transaction; a false result skips the
// step and returns (nil, nil).
func (s *QueueService) transition(ctx context.Context, id string, action domain.Action, guard func(*domain.QueueEntry) bool) (*domain.QueueEntry, error) {
	cur, err := repo.GetEntry(ctx, s.DB, id)
	if err != nil {
		return nil, classify(err)
	}

	var out *domain.QueueEntry
	err = s.mutate(ctx, cur.ProviderKey, func(tx *gorm.DB, m *mutation) error {
		out = nil
		e, err := repo.GetEntry(ctx, tx, id)
		if err != nil {
			return err
		}
		if guard != nil && !guard(e) {
			return nil
		}
		now := s.now()

		if action == domain.ActionBeginService && e.Status != domain.StatusInService {
			busy, err := repo.InService(ctx, tx, e.Day, e.ProviderKey)
			switch {
			case err == nil && busy.ID != e.ID:
				return ErrProviderBusy
			case err != nil && !errors.Is(err, repo.ErrNotFound):
				return err
			}
		}

		changed, err := domain.Apply(e, action, now)
		if err != nil {
			return err
		}
		if !changed {
			out = e
			return nil
		}
		if err := repo.UpdateEntry(ctx, tx, e); err != nil {
			return err
		}

		if action == domain.ActionComplete && e.ServiceDurationMs != nil {
			est, err := s.Estimator.Observe(ctx, tx, e.ProviderKey, *e.ServiceDurationMs)
			if err != nil {
				return err
			}
			m.emit(notify.Event{Kind: notify.KindEstimateUpdated, ProviderKey: e.ProviderKey, At: now, Payload: *est})
			m.average(e.ProviderKey, est.AverageMs)
		}

		res, err := s.recompute(ctx, tx, e.Day, e.ProviderKey, now)
		if err != nil {
			return err
		}
		refresh(e, res)
		m.emit(notify.Event{Kind: notify.KindEntryUpdated, ProviderKey: e.ProviderKey, Day: e.Day, EntryID: e.ID, At: now, Payload: *e})
		m.estimates(res, e.Day, e.ProviderKey, now, e.ID)
		m.gauges(e.Day, e.ProviderKey)
		out = e
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// Snapshot returns every entry of (day, provider) ordered by sequence
// number. Empty arguments select today and the default provider.
func (s *QueueService) Snapshot(ctx context.Context, day, provider string) ([]domain.QueueEntry, error) {
	provider = s.provider(provider)
	day = s.day(day)
	ctx, span := otel.Tracer("services/QueueService").Start(ctx, "Snapshot",
		trace.WithAttributes(
			observability.AttrProvider.String(provider),
			observability.AttrDay.String(day),
		),
	)
	defer span.End()

	out, err := repo.ListQueue(ctx, s.DB, day, provider)
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// SnapshotVersion returns aggregate metadata of (day, provider) for
// conditional GETs: row count, version sum and latest updated_at.
func (s *QueueService) SnapshotVersion(ctx context.Context, day, provider string) (count, versions int64, maxUpdated *time.Time, err error) {
	count, versions, maxUpdated, err = repo.QueueStats(ctx, s.DB, s.day(day), s.provider(provider))
	return count, versions, maxUpdated, classify(err)
}

// GetEntry returns one entry.
func (s *QueueService) GetEntry(ctx context.Context, id string) (*domain.QueueEntry, error) {
	ctx, span := otel.Tracer("services/QueueService").Start(ctx, "GetEntry",
		trace.WithAttributes(observability.AttrEntryID.String(id)),
	)
	defer span.End()

	e, err := repo.GetEntry(ctx, s.DB, id)
	if err != nil {
		return nil, classify(err)
	}
	return e, nil
}

// GetEntryETA reports how many open entries are ahead of id, its current
// ETA and the average the ETA was derived from.
func (s *QueueService) GetEntryETA(ctx context.Context, id string) (*EntryETA, error) {
	ctx, span := otel.Tracer("services/QueueService").Start(ctx, "GetEntryETA",
		trace.WithAttributes(observability.AttrEntryID.String(id)),
	)
	defer span.End()

	e, err := repo.GetEntry(ctx, s.DB, id)
	if err != nil {
		return nil, classify(err)
	}
	out := &EntryETA{
		EntryID:            e.ID,
		Status:             e.Status,
		SequenceNumber:     e.SequenceNumber,
		EstimatedServiceAt: e.EstimatedServiceAt,
	}
	if !e.Status.Terminal() {
		if out.Ahead, err = repo.CountAhead(ctx, s.DB, e); err != nil {
			return nil, classify(err)
		}
	}
	if out.AverageMs, err = s.Estimator.Current(ctx, s.DB, e.ProviderKey); err != nil {
		return nil, classify(err)
	}
	if out.Running, err = s.running(ctx, s.DB, e.ProviderKey); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// SetAvailability starts or stops service for provider. Stopping clears
// every open ETA of the provider; starting recomputes them all.
func (s *QueueService) SetAvailability(ctx context.Context, provider string, running bool) (*domain.ServiceAvailability, error) {
	provider = s.provider(provider)
	ctx, span := otel.Tracer("services/QueueService").Start(ctx, "SetAvailability",
		trace.WithAttributes(
			observability.AttrProvider.String(provider),
			observability.AttrRunning.Bool(running),
		),
	)
	defer span.End()

	var out *domain.ServiceAvailability
	err := s.mutate(ctx, provider, func(tx *gorm.DB, m *mutation) error {
		now := s.now()
		av, err := s.availability(ctx, tx, provider)
		if err != nil {
			return err
		}
		if av.Running != running {
			av.Running = running
			if running {
				av.StartedAt = &now
			} else {
				av.StoppedAt = &now
			}
			av.UpdatedAt = now
			if err := repo.SaveAvailability(ctx, tx, av); err != nil {
				return err
			}
			m.emit(notify.Event{Kind: notify.KindAvailabilityChanged, ProviderKey: provider, At: now, Payload: *av})
		}
		if err := s.recomputeAll(ctx, tx, provider, now, m); err != nil {
			return err
		}
		out = av
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, classify(err)
	}
	return out, nil
}

// GetAvailability returns provider's availability; an absent record reads
// as stopped.
func (s *QueueService) GetAvailability(ctx context.Context, provider string) (*domain.ServiceAvailability, error) {
	av, err := s.availability(ctx, s.DB, s.provider(provider))
	if err != nil {
		return nil, classify(err)
	}
	return av, nil
}

// GetEstimate returns provider's service-time estimate; before the first
// completion it is the configured default with zero samples.
func (s *QueueService) GetEstimate(ctx context.Context, provider string) (*domain.ServiceTimeEstimate, error) {
	est, err := s.Estimator.Get(ctx, s.DB, s.provider(provider))
	if err != nil {
		return nil, classify(err)
	}
	return est, nil
}

// ResetEstimate restores the default average of provider and recomputes
// its open ETAs.
func (s *QueueService) ResetEstimate(ctx context.Context, provider string) (*domain.ServiceTimeEstimate, error) {
	provider = s.provider(provider)
	ctx, span := otel.Tracer("services/QueueService").Start(ctx, "ResetEstimate",
		trace.WithAttributes(observability.AttrProvider.String(provider)),
	)
	defer span.End()

	var out *domain.ServiceTimeEstimate
	err := s.mutate(ctx, provider, func(tx *gorm.DB, m *mutation) error {
		now := s.now()
		est, err := s.Estimator.Reset(ctx, tx, provider)
		if err != nil {
			return err
		}
		m.emit(notify.Event{Kind: notify.KindEstimateUpdated, ProviderKey: provider, At: now, Payload: *est})
		m.average(provider, est.AverageMs)
		if err := s.recomputeAll(ctx, tx, provider, now, m); err != nil {
			return err
		}
		out = est
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, classify(err)
	}
	return out, nil
}

// ListParticipantEntries returns a participant's entries, most recent
// first. limit <= 0 means no limit.
func (s *QueueService) ListParticipantEntries(ctx context.Context, ref string, limit int) ([]domain.QueueEntry, error) {
	ref = NormalizeParticipant(ref)
	if ref == "" {
		return nil, ErrInvalidInput
	}
	out, err := repo.ListByParticipant(ctx, s.DB, ref, limit)
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// Renumber re-densifies the sequence numbers of (day, provider) in creation
// order and moves the counter to the highest number assigned. It returns
// that number.
func (s *QueueService) Renumber(ctx context.Context, day, provider string) (int64, error) {
	provider = s.provider(provider)
	day = s.day(day)
	ctx, span := otel.Tracer("services/QueueService").Start(ctx, "Renumber",
		trace.WithAttributes(
			observability.AttrProvider.String(provider),
			observability.AttrDay.String(day),
		),
	)
	defer span.End()

	var last int64
	err := s.mutate(ctx, provider, func(tx *gorm.DB, m *mutation) error {
		now := s.now()
		all, err := repo.ListQueue(ctx, tx, day, provider)
		if err != nil {
			return err
		}
		sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
		ids := make([]string, len(all))
		for i := range all {
			ids[i] = all[i].ID
		}
		if last, err = repo.Renumber(ctx, tx, day, provider, ids); err != nil {
			return err
		}
		if err := s.resetCounter(ctx, tx, day, provider, last, m); err != nil {
			return err
		}
		var moved []string
		for i := range all {
			if all[i].SequenceNumber != int64(i+1) {
				moved = append(moved, all[i].ID)
			}
		}
		res, err := s.recompute(ctx, tx, day, provider, now)
		if err != nil {
			return err
		}
		// Re-read so the payload carries the bumped version and fresh ETA.
		for _, id := range moved {
			e, err := repo.GetEntry(ctx, tx, id)
			if err != nil {
				return err
			}
			m.emit(notify.Event{Kind: notify.KindEntryUpdated, ProviderKey: provider, Day: day, EntryID: id, At: now, Payload: *e})
		}
		m.estimates(res, day, provider, now, "")
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, classify(err)
	}
	return last, nil
}

// Providers lists every provider key known to the store.
func (s *QueueService) Providers(ctx context.Context) ([]string, error) {
	keys, err := repo.ListProviders(ctx, s.DB)
	return keys, classify(err)
}

// Today returns the current service day.
func (s *QueueService) Today() string { return domain.DayOf(s.now(), s.Location) }

// ---- internals ----

// mutation collects the side effects of one transaction attempt. They are
// applied only after a successful commit.
type mutation struct {
	events []notify.Event
	depth  [][2]string // (day, provider) scopes whose gauges need a refresh
	after  []func()
}

func (m *mutation) emit(ev notify.Event) { m.events = append(m.events, ev) }

func (m *mutation) estimates(res eta.Result, day, provider string, now time.Time, skip string) {
	for _, e := range res.Changed {
		if e.ID == skip {
			continue
		}
		m.emit(notify.Event{
			Kind:        notify.KindEstimateUpdated,
			ProviderKey: provider,
			Day:         day,
			EntryID:     e.ID,
			At:          now,
			Payload: EstimatePayload{
				SequenceNumber:     e.SequenceNumber,
				EstimatedServiceAt: e.EstimatedServiceAt,
				AverageMs:          res.AverageMs,
			},
		})
	}
}

func (m *mutation) average(provider string, ms int64) {
	m.after = append(m.after, func() { observability.SetAverageServiceMs(provider, ms) })
}

func (m *mutation) gauges(day, provider string) {
	m.depth = append(m.depth, [2]string{day, provider})
}

func (s *QueueService) mutate(ctx context.Context, provider string, fn func(tx *gorm.DB, m *mutation) error) error {
	unlock := s.lock(provider)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < s.attempts(); attempt++ {
		m := &mutation{}
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error { return fn(tx, m) })
		if err == nil {
			s.commit(ctx, m)
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
	}
	return errors.Join(ErrConcurrencyConflict, lastErr)
}

func (s *QueueService) commit(ctx context.Context, m *mutation) {
	if s.Notifier != nil {
		for _, ev := range m.events {
			s.Notifier.Publish(ev)
		}
	}
	for _, fn := range m.after {
		fn()
	}
	for _, sc := range m.depth {
		if sc[0] != s.Today() {
			continue
		}
		if counts, err := repo.CountByStatus(ctx, s.DB, sc[0], sc[1]); err == nil {
			observability.SetQueueDepth(sc[1], counts)
		}
	}
}

func (s *QueueService) lock(provider string) func() {
	v, _ := s.locks.LoadOrStore(provider, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// recompute runs the ETA pass over the open entries of (day, provider) and
// persists every changed estimate.
func (s *QueueService) recompute(ctx context.Context, tx *gorm.DB, day, provider string, now time.Time) (eta.Result, error) {
	open, err := repo.ListOpen(ctx, tx, day, provider)
	if err != nil {
		return eta.Result{}, err
	}
	avg, err := s.Estimator.Current(ctx, tx, provider)
	if err != nil {
		return eta.Result{}, err
	}
	running, err := s.running(ctx, tx, provider)
	if err != nil {
		return eta.Result{}, err
	}

	entries := make([]*domain.QueueEntry, len(open))
	for i := range open {
		entries[i] = &open[i]
	}
	res := eta.Propagate(entries, avg, running, now)
	for _, e := range res.Changed {
		if err := repo.UpdateEstimatedServiceAt(ctx, tx, e); err != nil {
			return res, err
		}
	}
	return res, nil
}

// recomputeAll recomputes every day on which provider has open entries.
func (s *QueueService) recomputeAll(ctx context.Context, tx *gorm.DB, provider string, now time.Time, m *mutation) error {
	days, err := repo.OpenDays(ctx, tx, provider)
	if err != nil {
		return err
	}
	for _, day := range days {
		res, err := s.recompute(ctx, tx, day, provider, now)
		if err != nil {
			return err
		}
		m.estimates(res, day, provider, now, "")
	}
	return nil
}

// refresh copies the post-propagation state of e (ETA and version) from res.
func refresh(e *domain.QueueEntry, res eta.Result) {
	for _, c := range res.Changed {
		if c.ID == e.ID {
			e.EstimatedServiceAt = c.EstimatedServiceAt
			e.Version = c.Version
			return
		}
	}
}

func (s *QueueService) allocate(ctx context.Context, tx *gorm.DB, day, provider string) (int64, error) {
	a := s.Sequence
	if b, ok := a.(sequence.TxBinder); ok {
		a = b.WithDB(tx)
	}
	return a.Allocate(ctx, day, provider)
}

// resetCounter moves the counter inside tx when the allocator can join it,
// otherwise after commit.
func (s *QueueService) resetCounter(ctx context.Context, tx *gorm.DB, day, provider string, seq int64, m *mutation) error {
	if b, ok := s.Sequence.(sequence.TxBinder); ok {
		if r, ok := b.WithDB(tx).(sequence.Resetter); ok {
			return r.Reset(ctx, day, provider, seq)
		}
		return nil
	}
	if r, ok := s.Sequence.(sequence.Resetter); ok {
		m.after = append(m.after, func() {
			_ = r.Reset(context.WithoutCancel(ctx), day, provider, seq)
		})
	}
	return nil
}

func (s *QueueService) availability(ctx context.Context, db *gorm.DB, provider string) (*domain.ServiceAvailability, error) {
	av, err := repo.GetAvailability(ctx, db, provider)
	if errors.Is(err, repo.ErrNotFound) {
		return &domain.ServiceAvailability{ProviderKey: provider}, nil
	}
	return av, err
}

func (s *QueueService) running(ctx context.Context, db *gorm.DB, provider string) (bool, error) {
	av, err := s.availability(ctx, db, provider)
	if err != nil {
		return false, err
	}
	return av.Running, nil
}

func (s *QueueService) provider(p string) string {
	if p = strings.TrimSpace(p); p != "" {
		return p
	}
	if s.DefaultProvider != "" {
		return s.DefaultProvider
	}
	return "global"
}

func (s *QueueService) day(d string) string {
	if d = strings.TrimSpace(d); d != "" {
		return d
	}
	return s.Today()
}

func (s *QueueService) attempts() int {
	if s.MaxRetries < 1 {
		return 1
	}
	return s.MaxRetries
}

func (s *QueueService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

var spaceRE = regexp.MustCompile(`\s+`)

const maxRefRunes = 128

// NormalizeParticipant canonicalizes a participant reference so the same
// person compares equal however the reference was typed: full-width forms
// are narrowed, case is folded and whitespace collapsed.
func NormalizeParticipant(ref string) string {
	ref = width.Narrow.String(strings.TrimSpace(ref))
	ref = cases.Fold().String(ref)
	ref = spaceRE.ReplaceAllString(ref, " ")
	if r := []rune(ref); len(r) > maxRefRunes {
		ref = string(r[:maxRefRunes])
	}
	return ref
}
