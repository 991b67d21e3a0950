package replication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"noteenvelope-sync/internal/domain"
	"noteenvelope-sync/internal/metrics"
	"noteenvelope-sync/internal/repository"
	"noteenvelope-sync/internal/transport"

	"github.com/google/uuid"
)

type PublishOutcome string

const (
	Sent                 PublishOutcome = "sent"
	TransportUnavailable PublishOutcome = "transport_unavailable"
	TransportError       PublishOutcome = "transport_error"
)

type Config struct {
	DeviceID    string
	InFlightTTL time.Duration
	Now         func() time.Time
}

// Dispatcher turns local events into transport messages and routes inbound
// messages to the resolver. OnReceive must only be called from the engine
// loop; Publish may run concurrently with it.
type Dispatcher struct {
	self      string
	transport transport.Transport
	store     *repository.Store
	codec     *Codec
	inflight  *InFlight
	notices   *Notices
	metrics   *metrics.Sync
	logger    *slog.Logger
	now       func() time.Time
}

func NewDispatcher(
	cfg Config,
	t transport.Transport,
	store *repository.Store,
	notices *Notices,
	m *metrics.Sync,
	logger *slog.Logger,
) *Dispatcher {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ttl := cfg.InFlightTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Dispatcher{
		self:      cfg.DeviceID,
		transport: t,
		store:     store,
		codec:     NewCodec(),
		inflight:  NewInFlight(ttl, now),
		notices:   notices,
		metrics:   m,
		logger:    logger.With("component", "dispatcher"),
		now:       now,
	}
}

func (d *Dispatcher) DeviceID() string {
	return d.self
}

func (d *Dispatcher) Now() time.Time {
	return d.now()
}

// Online reports whether a transport session is currently up.
func (d *Dispatcher) Online() bool {
	return d.transport.IsActive()
}

// Publish hands ev to the transport. Failures never affect local state; the
// record is marked pending and its current state is offered again once a
// session is up.
func (d *Dispatcher) Publish(ctx context.Context, ev domain.SyncEvent) PublishOutcome {
	outcome := d.publish(ctx, ev)
	d.metrics.Published.WithLabelValues(string(outcome)).Inc()
	if outcome != Sent {
		d.MarkPending(ctx, ev)
	}
	return outcome
}

// MarkPending records that ev's record has not reached the transport.
// Sync requests name no record and are not tracked.
func (d *Dispatcher) MarkPending(ctx context.Context, ev domain.SyncEvent) {
	if ev.Kind == domain.SyncRequested || ev.RecordID == "" {
		return
	}
	mark := domain.PendingRecord{
		Key:        domain.RecordKey(ev.Collection, ev.RecordID),
		Collection: ev.Collection,
		ID:         ev.RecordID,
		MarkedAt:   d.now(),
	}
	// the mark must survive shutdown cancelling the publish loop
	if err := d.store.Pending.UpsertAll(context.WithoutCancel(ctx), []domain.PendingRecord{mark}); err != nil {
		d.logger.Error("failed to mark record pending",
			"collection", ev.Collection, "record_id", ev.RecordID, "error", err)
	}
}

// Pending lists the records still waiting to be offered to peers.
func (d *Dispatcher) Pending(ctx context.Context) ([]domain.PendingRecord, error) {
	return d.store.Pending.List(ctx)
}

func (d *Dispatcher) ClearPending(ctx context.Context, p domain.PendingRecord) error {
	return d.store.Pending.Delete(ctx, p.Key)
}

// Resend builds an event carrying the current local state of a record: the
// record itself, or a delete when it is tombstoned. ok is false when the
// record is neither stored nor tombstoned.
func (d *Dispatcher) Resend(ctx context.Context, collection domain.Collection, id string) (domain.SyncEvent, bool, error) {
	switch collection {
	case domain.CollectionNote:
		return resendRecord(ctx, d, collection, d.store.Notes, id)
	case domain.CollectionEnvelope:
		return resendRecord(ctx, d, collection, d.store.Envelopes, id)
	case domain.CollectionLabel:
		return resendRecord(ctx, d, collection, d.store.Labels, id)
	}
	return domain.SyncEvent{}, false, nil
}

func resendRecord[R domain.Record[R]](
	ctx context.Context,
	d *Dispatcher,
	collection domain.Collection,
	repo repository.Repository[R],
	id string,
) (domain.SyncEvent, bool, error) {
	record, err := repo.FindByID(ctx, id)
	if err == nil {
		ev, err := domain.NewRecordEvent(domain.RecordUpdated, collection, record.Metadata(), record, d.self, d.now())
		return ev, err == nil, err
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.SyncEvent{}, false, err
	}

	tomb, err := d.store.Tombstones.FindByID(ctx, domain.TombstoneKey(collection, id))
	if errors.Is(err, repository.ErrNotFound) {
		return domain.SyncEvent{}, false, nil
	}
	if err != nil {
		return domain.SyncEvent{}, false, err
	}
	return domain.NewDeleteEvent(collection, id, tomb.Version, d.self, d.now()), true, nil
}

// Announce returns events for the full local state: envelopes and labels
// before notes, then every tombstone.
func (d *Dispatcher) Announce(ctx context.Context) ([]domain.SyncEvent, error) {
	var events []domain.SyncEvent
	var err error
	if events, err = announceAll(ctx, d, domain.CollectionEnvelope, d.store.Envelopes, events); err != nil {
		return nil, err
	}
	if events, err = announceAll(ctx, d, domain.CollectionLabel, d.store.Labels, events); err != nil {
		return nil, err
	}
	if events, err = announceAll(ctx, d, domain.CollectionNote, d.store.Notes, events); err != nil {
		return nil, err
	}

	tombs, err := d.store.Tombstones.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tombs {
		events = append(events, domain.NewDeleteEvent(t.Collection, t.ID, t.Version, d.self, d.now()))
	}
	return events, nil
}

func announceAll[R domain.Record[R]](
	ctx context.Context,
	d *Dispatcher,
	collection domain.Collection,
	repo repository.Repository[R],
	events []domain.SyncEvent,
) ([]domain.SyncEvent, error) {
	records, err := repo.List(ctx)
	if err != nil {
		return events, err
	}
	for _, r := range records {
		ev, err := domain.NewRecordEvent(domain.RecordUpdated, collection, r.Metadata(), r, d.self, d.now())
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func (d *Dispatcher) publish(ctx context.Context, ev domain.SyncEvent) PublishOutcome {
	data, err := d.codec.Encode(ev)
	if err != nil {
		d.logger.Error("cannot encode event", "record_id", ev.RecordID, "error", err)
		return TransportError
	}
	if !d.transport.IsActive() {
		return TransportUnavailable
	}

	d.inflight.Mark(data)
	if err := d.transport.Publish(ctx, data); err != nil {
		if errors.Is(err, transport.ErrUnavailable) {
			return TransportUnavailable
		}
		d.logger.Warn("publish failed",
			"kind", ev.Kind, "collection", ev.Collection, "record_id", ev.RecordID, "error", err)
		return TransportError
	}
	return Sent
}

// OnReceive applies one inbound message. Only record store failures are
// returned as errors; everything else is reported through the outcome.
func (d *Dispatcher) OnReceive(ctx context.Context, data []byte) (Outcome, error) {
	if d.inflight.Take(data) {
		d.metrics.Dropped.WithLabelValues(string(SelfEcho)).Inc()
		return SelfEcho, nil
	}

	ev, err := d.codec.Decode(data)
	if err != nil {
		d.logger.Warn("dropping malformed event", "error", err)
		d.metrics.Dropped.WithLabelValues(string(Malformed)).Inc()
		return Malformed, nil
	}
	if ev.Origin == d.self {
		d.metrics.Dropped.WithLabelValues(string(SelfEcho)).Inc()
		return SelfEcho, nil
	}

	outcome, err := d.route(ctx, ev)
	if err != nil {
		return "", err
	}

	switch outcome {
	case Malformed:
		d.logger.Warn("dropping malformed event",
			"collection", ev.Collection, "record_id", ev.RecordID, "origin", ev.Origin)
		d.metrics.Dropped.WithLabelValues(string(Malformed)).Inc()
		return outcome, nil
	case Stale, StaleDelete, Tombstoned:
		d.logger.Debug("ignoring event",
			"outcome", outcome, "collection", ev.Collection, "record_id", ev.RecordID, "version", ev.Version)
	}
	d.metrics.Received.WithLabelValues(string(ev.Collection), string(outcome)).Inc()

	if err := d.touchPeer(ctx, ev.Origin); err != nil {
		d.logger.Warn("failed to record peer", "device", ev.Origin, "error", err)
	}
	return outcome, nil
}

func (d *Dispatcher) route(ctx context.Context, ev domain.SyncEvent) (Outcome, error) {
	switch ev.Kind {
	case domain.SyncRequested:
		return Requested, nil
	case domain.RecordDeleted:
		return d.applyDelete(ctx, ev)
	}
	switch ev.Collection {
	case domain.CollectionNote:
		return receiveRecord(ctx, d, d.store.Notes, ev)
	case domain.CollectionEnvelope:
		return receiveRecord(ctx, d, d.store.Envelopes, ev)
	case domain.CollectionLabel:
		return receiveRecord(ctx, d, d.store.Labels, ev)
	default:
		return Malformed, nil
	}
}

// Merge runs remote through the resolver against the stored copy and persists
// the result. It is shared by inbound events and imports.
func Merge[R domain.Record[R]](
	ctx context.Context,
	d *Dispatcher,
	collection domain.Collection,
	repo repository.Repository[R],
	remote R,
) (Resolution[R], error) {
	var none Resolution[R]
	id := remote.RecordID()

	gone, err := d.store.IsTombstoned(ctx, collection, id)
	if err != nil {
		return none, err
	}
	if gone {
		return Resolution[R]{Outcome: Tombstoned}, nil
	}

	local, err := repo.FindByID(ctx, id)
	hasLocal := err == nil
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return none, err
	}

	res := Resolve(local, hasLocal, remote, d.self)
	if res.Write {
		if err := repo.UpsertAll(ctx, []R{res.Record}); err != nil {
			return none, err
		}
	}
	if res.Outcome.IsConflict() {
		if err := d.reportConflict(ctx, collection, local.Metadata(), remote.Metadata(), res.Outcome, displayName(remote)); err != nil {
			return none, err
		}
	}
	return res, nil
}

func receiveRecord[R domain.Record[R]](
	ctx context.Context,
	d *Dispatcher,
	repo repository.Repository[R],
	ev domain.SyncEvent,
) (Outcome, error) {
	var remote R
	if err := json.Unmarshal(ev.Payload, &remote); err != nil {
		return Malformed, nil
	}
	meta := remote.Metadata()
	if meta.ID != ev.RecordID || meta.Version != ev.Version {
		return Malformed, nil
	}
	if !meta.Origin.IsKnown() {
		remote = remote.WithOrigin(domain.KnownDevice(ev.Origin))
	}

	res, err := Merge(ctx, d, ev.Collection, repo, remote)
	if err != nil {
		return "", err
	}
	return res.Outcome, nil
}

func (d *Dispatcher) applyDelete(ctx context.Context, ev domain.SyncEvent) (Outcome, error) {
	meta, found, err := d.findMeta(ctx, ev.Collection, ev.RecordID)
	if err != nil {
		return "", err
	}
	if found && meta.Version > ev.Version {
		return StaleDelete, nil
	}

	gone, err := d.store.IsTombstoned(ctx, ev.Collection, ev.RecordID)
	if err != nil {
		return "", err
	}
	if !gone {
		if err := d.Bury(ctx, ev.Collection, ev.RecordID, max(ev.Version, meta.Version), domain.KnownDevice(ev.Origin)); err != nil {
			return "", err
		}
	}
	if found {
		if err := d.deleteRecord(ctx, ev.Collection, ev.RecordID); err != nil {
			return "", err
		}
	}
	return Deleted, nil
}

// Bury writes the tombstone for a deleted record.
func (d *Dispatcher) Bury(ctx context.Context, collection domain.Collection, id string, version int64, origin domain.OriginDevice) error {
	return d.store.Tombstones.UpsertAll(ctx, []domain.Tombstone{{
		Key:        domain.TombstoneKey(collection, id),
		Collection: collection,
		ID:         id,
		Version:    version,
		DeletedAt:  d.now(),
		Origin:     origin,
	}})
}

func (d *Dispatcher) deleteRecord(ctx context.Context, collection domain.Collection, id string) error {
	switch collection {
	case domain.CollectionNote:
		return d.store.Notes.Delete(ctx, id)
	case domain.CollectionEnvelope:
		return d.store.Envelopes.Delete(ctx, id)
	case domain.CollectionLabel:
		return d.store.Labels.Delete(ctx, id)
	}
	return fmt.Errorf("unknown collection %q", collection)
}

func (d *Dispatcher) findMeta(ctx context.Context, collection domain.Collection, id string) (domain.Meta, bool, error) {
	switch collection {
	case domain.CollectionNote:
		return findMeta(ctx, d.store.Notes, id)
	case domain.CollectionEnvelope:
		return findMeta(ctx, d.store.Envelopes, id)
	case domain.CollectionLabel:
		return findMeta(ctx, d.store.Labels, id)
	}
	return domain.Meta{}, false, nil
}

func findMeta[R domain.Record[R]](ctx context.Context, repo repository.Repository[R], id string) (domain.Meta, bool, error) {
	record, err := repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Meta{}, false, nil
	}
	if err != nil {
		return domain.Meta{}, false, err
	}
	return record.Metadata(), true, nil
}

func (d *Dispatcher) reportConflict(
	ctx context.Context,
	collection domain.Collection,
	local, remote domain.Meta,
	outcome Outcome,
	title string,
) error {
	resolution := domain.ResolutionLocalWins
	if outcome == ResolvedRemoteWins {
		resolution = domain.ResolutionRemoteWins
	}
	localOrigin := local.Origin.OrSelf(d.self)

	// the same conflict may be replayed by duplicate delivery
	key := fmt.Sprintf("%s|%s|%d|%s|%s", collection, local.ID, local.Version, localOrigin, remote.Origin)
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
	if _, err := d.store.Conflicts.FindByID(ctx, id); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	conflict := domain.Conflict{
		ID:            id,
		Collection:    collection,
		RecordID:      local.ID,
		Version:       local.Version,
		Resolution:    resolution,
		LocalOrigin:   localOrigin,
		RemoteOrigin:  remote.Origin,
		LocalUpdated:  local.UpdatedAt,
		RemoteUpdated: remote.UpdatedAt,
		Title:         title,
		DetectedAt:    d.now(),
	}
	if err := d.store.Conflicts.UpsertAll(ctx, []domain.Conflict{conflict}); err != nil {
		return err
	}

	d.metrics.Conflicts.WithLabelValues(string(resolution)).Inc()
	d.logger.Info("conflict resolved",
		"collection", collection,
		"record_id", local.ID,
		"version", local.Version,
		"resolution", resolution,
		"remote_origin", remote.Origin.String(),
	)
	d.notices.Publish(domain.NewNotice(conflict))
	return nil
}

func (d *Dispatcher) touchPeer(ctx context.Context, deviceID string) error {
	now := d.now()
	peer, err := d.store.Devices.FindByID(ctx, deviceID)
	if errors.Is(err, repository.ErrNotFound) {
		peer = domain.Device{ID: deviceID, FirstSeen: now}
	} else if err != nil {
		return err
	}
	peer.LastSeen = now
	peer.EventsReceived++
	return d.store.Devices.UpsertAll(ctx, []domain.Device{peer})
}

func displayName(record any) string {
	switch r := record.(type) {
	case domain.Note:
		return r.Title
	case domain.Envelope:
		return r.Name
	case domain.Label:
		return r.Name
	}
	return ""
}
