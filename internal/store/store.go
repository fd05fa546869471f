// Package store keeps the workstation's ordered patient collection in sync
// with the records API and a local mirror.
package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jwalitptl/scribe/internal/mirror"
	"github.com/jwalitptl/scribe/internal/model"
	apperrors "github.com/jwalitptl/scribe/pkg/errors"
	"github.com/jwalitptl/scribe/pkg/logger"
	"github.com/jwalitptl/scribe/pkg/messaging"
	"github.com/jwalitptl/scribe/pkg/metrics"
)

// Change events published after a successful mutation.
const (
	EventPatientCreated = "patient.created"
	EventPatientUpdated = "patient.updated"
	EventPatientDeleted = "patient.deleted"
)

// LocalIDPrefix marks records created while the records API was unreachable.
const LocalIDPrefix = "local-"

// Remote is the records API as the store sees it.
type Remote interface {
	List(ctx context.Context) ([]*model.PatientRecord, error)
	Create(ctx context.Context, p *model.PatientRecord) (*model.PatientRecord, error)
	Update(ctx context.Context, p *model.PatientRecord) (*model.PatientRecord, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

type Config struct {
	// OfflineWrites applies mutations locally when the records API is
	// unreachable instead of failing them.
	OfflineWrites bool
}

type Store struct {
	remote    Remote
	mirror    mirror.Mirror
	publisher messaging.Publisher
	cfg       Config
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	mu      sync.RWMutex
	records []*model.PatientRecord
	offline bool
	loaded  bool
	// removed holds ids deleted locally while the API was unreachable.
	removed map[string]struct{}
}

// New builds a store. publisher may be nil.
func New(remote Remote, mir mirror.Mirror, publisher messaging.Publisher, cfg Config, log *logger.Logger, m *metrics.Metrics) *Store {
	return &Store{
		remote:    remote,
		mirror:    mir,
		publisher: publisher,
		cfg:       cfg,
		logger:    log.With("store"),
		metrics:   m,
		now:       time.Now,
		records:   []*model.PatientRecord{},
		removed:   map[string]struct{}{},
	}
}

// Load replaces the collection with the remote list, after replaying any
// changes applied while offline. When the API cannot be reached it keeps
// serving the local copy, read from the mirror on first load, and marks the
// store offline.
func (s *Store) Load(ctx context.Context) error {
	records, err := s.remote.List(ctx)
	if err == nil {
		records, err = s.reconcile(ctx, normalize(records))
	}
	if err == nil {
		s.mu.Lock()
		s.records = records
		s.loaded = true
		s.setOfflineLocked(false)
		s.saveMirrorLocked(ctx)
		s.mu.Unlock()
		s.metrics.StoreOperations.WithLabelValues("load", "success").Inc()
		s.logger.Info("patients loaded", "count", len(records))
		return nil
	}

	s.metrics.StoreOperations.WithLabelValues("load", "error").Inc()
	if !apperrors.IsCode(err, apperrors.ErrNetwork) {
		return fmt.Errorf("failed to load patients: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		s.setOfflineLocked(true)
		s.logger.Warn("patient API unreachable, keeping local copy", "count", len(s.records), "error", err.Error())
		return nil
	}

	mirrored, mirrorErr := s.mirror.Load(ctx)
	if mirrorErr != nil {
		s.logger.Error(mirrorErr, "failed to read local mirror", "driver", s.mirror.Driver())
		return fmt.Errorf("failed to load patients: %w", err)
	}
	s.records = normalize(mirrored)
	s.setOfflineLocked(true)

	s.logger.Warn("patient API unreachable, serving local mirror", "count", len(mirrored), "error", err.Error())
	return nil
}

// reconcile writes local changes back before remote replaces the collection.
// Records with a local id are created, records modified after their remote
// copy are updated (last write wins) and offline removals are replayed. A
// Network error stops the replay; work already done is kept.
func (s *Store) reconcile(ctx context.Context, remote []*model.PatientRecord) ([]*model.PatientRecord, error) {
	local, removed := s.pending(ctx)

	gone := make(map[string]bool, len(removed))
	for _, id := range removed {
		if indexOf(remote, id) < 0 {
			s.forgetRemoved(id)
			continue
		}
		err := s.remote.Delete(ctx, id)
		switch {
		case err == nil, isRemoteNotFound(err):
			gone[id] = true
		case apperrors.IsCode(err, apperrors.ErrNetwork):
			return nil, err
		default:
			s.logger.Error(err, "failed to replay offline removal", "patient_id", id)
		}
		s.forgetRemoved(id)
	}

	out := make([]*model.PatientRecord, 0, len(remote)+len(local))
	for _, r := range remote {
		if !gone[r.ID] {
			out = append(out, r)
		}
	}

	replayed := len(gone)
	for _, l := range local {
		if IsLocalID(l.ID) {
			created, err := s.remote.Create(ctx, l)
			if err != nil {
				if apperrors.IsCode(err, apperrors.ErrNetwork) {
					return nil, err
				}
				s.logger.Error(err, "failed to upload patient created offline", "patient_id", l.ID)
				out = append(out, l)
				continue
			}
			created = normalizeOne(created)
			s.rekey(ctx, l.ID, created)
			out = append(out, created)
			replayed++
			continue
		}

		i := indexOf(out, l.ID)
		if i < 0 || !l.UpdatedAt.After(out[i].UpdatedAt) {
			continue
		}
		saved, err := s.remote.Update(ctx, l)
		if err != nil {
			if apperrors.IsCode(err, apperrors.ErrNetwork) {
				return nil, err
			}
			s.logger.Error(err, "failed to upload offline changes", "patient_id", l.ID)
			continue
		}
		out[i] = normalizeOne(saved)
		replayed++
	}

	if replayed > 0 {
		s.metrics.StoreOperations.WithLabelValues("sync", "success").Add(float64(replayed))
		s.logger.Info("offline changes written back", "count", replayed)
	}
	return out, nil
}

// pending returns the local collection and the ids removed offline. Before
// the first successful load the local collection is the mirror.
func (s *Store) pending(ctx context.Context) ([]*model.PatientRecord, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded && len(s.records) == 0 {
		mirrored, err := s.mirror.Load(ctx)
		if err != nil {
			s.logger.Error(err, "failed to read local mirror", "driver", s.mirror.Driver())
		} else {
			s.records = normalize(mirrored)
		}
	}

	local := make([]*model.PatientRecord, len(s.records))
	for i, r := range s.records {
		local[i] = r.Clone()
	}
	removed := make([]string, 0, len(s.removed))
	for id := range s.removed {
		removed = append(removed, id)
	}
	return local, removed
}

// rekey swaps a locally created record for the one the API stored so a
// failed replay never posts it twice.
func (s *Store) rekey(ctx context.Context, localID string, created *model.PatientRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexLocked(localID); idx >= 0 {
		s.records[idx] = created.Clone()
		s.saveMirrorLocked(ctx)
	}
}

func (s *Store) forgetRemoved(id string) {
	s.mu.Lock()
	delete(s.removed, id)
	s.mu.Unlock()
}

// Refresh reloads from the records API.
func (s *Store) Refresh(ctx context.Context) error {
	return s.Load(ctx)
}

// Ping probes the records API without touching the collection.
func (s *Store) Ping(ctx context.Context) error {
	return s.remote.Ping(ctx)
}

func (s *Store) Offline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offline
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// List runs search, filter and sort over a snapshot of the collection.
func (s *Store) List(q model.ListQuery) []*model.PatientRecord {
	s.mu.RLock()
	snapshot := make([]*model.PatientRecord, len(s.records))
	for i, r := range s.records {
		snapshot[i] = r.Clone()
	}
	s.mu.RUnlock()

	out := Search(snapshot, q.Search)
	out = Filter(out, q.Criteria)
	SortRecords(out, q.SortBy, q.Order)
	return out
}

func (s *Store) Get(id string) (*model.PatientRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return nil, apperrors.NotFound("patient", nil)
	}
	return s.records[idx].Clone(), nil
}

func (s *Store) Create(ctx context.Context, in model.PatientInput) (*model.PatientRecord, error) {
	rec, err := model.NewPatientRecord(in, s.stamp(time.Time{}))
	if err != nil {
		s.metrics.StoreOperations.WithLabelValues("create", "invalid").Inc()
		return nil, err
	}

	created, err := s.remote.Create(ctx, rec)
	if err != nil {
		if !s.offlineWrite(err) {
			s.fail("create", err)
			return nil, fmt.Errorf("failed to create patient: %w", err)
		}
		created = rec.Clone()
		created.ID = LocalIDPrefix + strconv.FormatInt(s.now().UnixNano(), 10)
		s.logger.Warn("patient API unreachable, created patient locally", "patient_id", created.ID)
	}
	created = normalizeOne(created)

	s.mu.Lock()
	s.records = append(s.records, created)
	s.setOfflineLocked(err != nil)
	s.saveMirrorLocked(ctx)
	s.mu.Unlock()

	s.metrics.StoreOperations.WithLabelValues("create", "success").Inc()
	s.publish(ctx, EventPatientCreated, created)
	return created.Clone(), nil
}

// Update replaces the editable fields of a patient. Observations and
// creation time are kept.
func (s *Store) Update(ctx context.Context, id string, in model.PatientInput) (*model.PatientRecord, error) {
	if err := in.Validate(); err != nil {
		s.metrics.StoreOperations.WithLabelValues("update", "invalid").Inc()
		return nil, err
	}
	return s.mutate(ctx, "update", id, func(next *model.PatientRecord, _ time.Time) {
		next.PatientInput = in
	})
}

// AddObservation appends a manual note.
func (s *Store) AddObservation(ctx context.Context, id, text string) (*model.PatientRecord, error) {
	return s.appendObservation(ctx, "add_observation", id, text, model.ObservationManual)
}

// AddTranscription appends the raw transcript of a processed recording.
func (s *Store) AddTranscription(ctx context.Context, id string, result *model.TranscriptionResult) (*model.PatientRecord, error) {
	if result == nil {
		return nil, apperrors.Validation("transcription result is required")
	}
	return s.appendObservation(ctx, "add_transcription", id, result.RawText, model.ObservationTranscription)
}

func (s *Store) appendObservation(ctx context.Context, op, id, text string, kind model.ObservationKind) (*model.PatientRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		s.metrics.StoreOperations.WithLabelValues(op, "invalid").Inc()
		return nil, apperrors.Validation("observation text is required")
	}
	return s.mutate(ctx, op, id, func(next *model.PatientRecord, at time.Time) {
		next.Observations = append(next.Observations, model.NewObservation(text, kind, at))
	})
}

// mutate sends a modified copy of the record to the API and applies the
// answer. The remote call runs without the lock.
func (s *Store) mutate(ctx context.Context, op, id string, change func(next *model.PatientRecord, at time.Time)) (*model.PatientRecord, error) {
	s.mu.RLock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.RUnlock()
		s.metrics.StoreOperations.WithLabelValues(op, "not_found").Inc()
		return nil, apperrors.NotFound("patient", nil)
	}
	before := s.records[idx].Clone()
	s.mu.RUnlock()

	next := before.Clone()
	at := s.stamp(before.UpdatedAt)
	change(next, at)
	next.UpdatedAt = at

	// A record created offline does not exist remotely yet.
	var saved *model.PatientRecord
	var err error
	if IsLocalID(id) {
		saved, err = s.remote.Create(ctx, next)
	} else {
		saved, err = s.remote.Update(ctx, next)
	}
	if err != nil {
		if !s.offlineWrite(err) {
			s.fail(op, err)
			return nil, fmt.Errorf("failed to update patient: %w", err)
		}
		saved = next
		s.logger.Warn("patient API unreachable, applied change locally", "patient_id", id, "operation", op)
	}
	saved = normalizeOne(saved)

	s.mu.Lock()
	idx = s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		s.metrics.ConcurrentMutations.Inc()
		s.logger.Warn("patient removed while update was in flight", "patient_id", id, "operation", op)
		return nil, apperrors.NotFound("patient", nil)
	}
	if !s.records[idx].UpdatedAt.Equal(before.UpdatedAt) {
		s.metrics.ConcurrentMutations.Inc()
		s.logger.Warn("patient changed while update was in flight, last write wins", "patient_id", id, "operation", op)
	}
	s.records[idx] = saved
	s.setOfflineLocked(err != nil)
	s.saveMirrorLocked(ctx)
	s.mu.Unlock()

	s.metrics.StoreOperations.WithLabelValues(op, "success").Inc()
	s.publish(ctx, EventPatientUpdated, saved)
	return saved.Clone(), nil
}

func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.RLock()
	found := s.indexLocked(id) >= 0
	s.mu.RUnlock()
	if !found {
		s.metrics.StoreOperations.WithLabelValues("remove", "not_found").Inc()
		return apperrors.NotFound("patient", nil)
	}

	var err error
	if !IsLocalID(id) {
		err = s.remote.Delete(ctx, id)
	}
	switch {
	case err == nil:
	case isRemoteNotFound(err):
		s.logger.Warn("patient already gone from API, removing locally", "patient_id", id)
		err = nil
	case s.offlineWrite(err):
		s.logger.Warn("patient API unreachable, removed patient locally", "patient_id", id)
	default:
		s.fail("remove", err)
		return fmt.Errorf("failed to remove patient: %w", err)
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		s.metrics.StoreOperations.WithLabelValues("remove", "not_found").Inc()
		return apperrors.NotFound("patient", nil)
	}
	s.records = append(s.records[:idx], s.records[idx+1:]...)
	if err != nil {
		s.removed[id] = struct{}{}
	}
	s.setOfflineLocked(err != nil)
	s.saveMirrorLocked(ctx)
	s.mu.Unlock()

	s.metrics.StoreOperations.WithLabelValues("remove", "success").Inc()
	s.publish(ctx, EventPatientDeleted, map[string]string{"id": id})
	return nil
}

// stamp returns a modification time strictly after prev, at the microsecond
// resolution the records API keeps.
func (s *Store) stamp(prev time.Time) time.Time {
	now := s.now().UTC().Truncate(time.Microsecond)
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

// offlineWrite reports whether a failed remote write may be applied locally,
// and records that the API is unreachable.
func (s *Store) offlineWrite(err error) bool {
	if !apperrors.IsCode(err, apperrors.ErrNetwork) {
		return false
	}
	s.mu.Lock()
	s.setOfflineLocked(true)
	s.mu.Unlock()
	return s.cfg.OfflineWrites
}

func (s *Store) fail(op string, err error) {
	s.metrics.StoreOperations.WithLabelValues(op, "error").Inc()
	s.logger.Error(err, "patient store operation failed", "operation", op)
}

func (s *Store) setOfflineLocked(offline bool) {
	if s.offline == offline {
		return
	}
	s.offline = offline
	if offline {
		s.metrics.StoreOffline.Set(1)
		s.logger.Warn("patient store is offline")
		return
	}
	s.metrics.StoreOffline.Set(0)
	s.logger.Info("patient store is back online")
}

// saveMirrorLocked overwrites the mirror with the whole collection. Failures
// are logged and counted only.
func (s *Store) saveMirrorLocked(ctx context.Context) {
	err := s.mirror.Save(context.WithoutCancel(ctx), s.records)
	s.metrics.MirrorWrites.WithLabelValues(s.mirror.Driver(), metrics.Status(err)).Inc()
	if err != nil {
		s.logger.Error(err, "failed to write local mirror", "driver", s.mirror.Driver(), "count", len(s.records))
	}
}

func (s *Store) publish(ctx context.Context, event string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(context.WithoutCancel(ctx), event, payload)
	s.metrics.EventsPublished.WithLabelValues(event, metrics.Status(err)).Inc()
	if err != nil {
		s.logger.Error(err, "failed to publish patient event", "event", event)
	}
}

func (s *Store) indexLocked(id string) int {
	return indexOf(s.records, id)
}

func indexOf(records []*model.PatientRecord, id string) int {
	for i, r := range records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// IsLocalID reports whether id was assigned offline.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

func isRemoteNotFound(err error) bool {
	appErr, ok := apperrors.As(err)
	return ok && appErr.Code == apperrors.ErrRemote && appErr.Status == 404
}

func normalize(records []*model.PatientRecord) []*model.PatientRecord {
	out := make([]*model.PatientRecord, 0, len(records))
	for _, r := range records {
		if r != nil {
			out = append(out, normalizeOne(r))
		}
	}
	return out
}

func normalizeOne(r *model.PatientRecord) *model.PatientRecord {
	if r.Observations == nil {
		r.Observations = []model.Observation{}
	}
	return r
}
