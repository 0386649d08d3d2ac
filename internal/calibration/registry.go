package calibration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/observability"
	"voltammetry-lab/internal/storage"
)

// ErrBelowFloor is returned when committing a model that must not be persisted.
var ErrBelowFloor = errors.New("model below r_squared floor")

// Snapshot is an immutable view of the served models. Never mutate one
// obtained from Registry.Snapshot.
type Snapshot struct {
	Version int64
	Models  map[string]*domain.CalibrationModel // by condition key
	Default *domain.CalibrationModel
}

// Lookup returns the model for cond, falling back to the default model.
// cond nil always selects the default.
func (s *Snapshot) Lookup(cond *domain.Condition) (*domain.CalibrationModel, domain.Method, bool) {
	if cond != nil {
		if m, ok := s.Models[cond.Key()]; ok {
			return m, domain.MethodConditionSpecific, true
		}
	}
	if s.Default != nil {
		return s.Default, domain.MethodDefault, true
	}
	return nil, "", false
}

// Sorted returns the condition models in ascending key order.
func (s *Snapshot) Sorted() []*domain.CalibrationModel {
	keys := make([]string, 0, len(s.Models))
	for k := range s.Models {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*domain.CalibrationModel, len(keys))
	for i, k := range keys {
		out[i] = s.Models[k]
	}
	return out
}

// Empty reports whether no model at all is served.
func (s *Snapshot) Empty() bool {
	return len(s.Models) == 0 && s.Default == nil
}

// Registry serves calibration models. Readers load the current snapshot
// without locking; writers serialize, persist, then publish a new snapshot.
type Registry struct {
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex

	store   storage.CalibrationModelStore // nil = in-process only
	floor   float64
	metrics bool
	log     logrus.FieldLogger
}

// RegistryOptions for creating a Registry.
type RegistryOptions struct {
	Store         storage.CalibrationModelStore
	RSquaredFloor float64
	RecordMetrics bool
	Logger        logrus.FieldLogger
}

// NewRegistry creates an empty registry. Call Load to populate it from the store.
func NewRegistry(opts RegistryOptions) *Registry {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Registry{
		store:   opts.Store,
		floor:   opts.RSquaredFloor,
		metrics: opts.RecordMetrics,
		log:     log,
	}
	r.current.Store(&Snapshot{Models: map[string]*domain.CalibrationModel{}})
	return r
}

// Snapshot returns the current snapshot.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Load replaces the served snapshot with the models in the store.
// Stored rows below the floor are skipped.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	models, err := r.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load calibration models: %w", err)
	}
	def, err := r.store.GetDefault(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load default calibration model: %w", err)
	}

	next := &Snapshot{Models: make(map[string]*domain.CalibrationModel, len(models))}
	for _, m := range models {
		if err := r.validate(m); err != nil {
			r.log.WithField("condition", m.Key()).WithError(err).Warn("skipping stored calibration model")
			continue
		}
		next.Models[m.Key()] = m
		next.Version = max(next.Version, m.Version)
	}
	if def != nil && r.validate(def) == nil {
		next.Default = def
		next.Version = max(next.Version, def.Version)
	}

	r.current.Store(next)
	r.publishMetrics(next)
	r.log.WithFields(logrus.Fields{
		"version": next.Version,
		"models":  len(next.Models),
	}).Info("calibration registry loaded")
	return nil
}

// Commit persists models and publishes them in one new snapshot version.
// Each model replaces any previous entry with the same key. Nothing is
// published if validation or persistence fails.
func (r *Registry) Commit(ctx context.Context, models ...*domain.CalibrationModel) error {
	if len(models) == 0 {
		return nil
	}
	for _, m := range models {
		if err := r.validate(m); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.current.Load()
	version := prev.Version + 1

	stamped := make([]*domain.CalibrationModel, len(models))
	for i, m := range models {
		c := *m
		if m.Condition != nil {
			cond := *m.Condition
			c.Condition = &cond
		}
		c.Version = version
		stamped[i] = &c
	}

	if r.store != nil {
		if err := r.store.Upsert(ctx, stamped...); err != nil {
			return fmt.Errorf("persist calibration models: %w", err)
		}
	}

	next := &Snapshot{
		Version: version,
		Models:  make(map[string]*domain.CalibrationModel, len(prev.Models)+len(stamped)),
		Default: prev.Default,
	}
	for k, m := range prev.Models {
		next.Models[k] = m
	}
	for _, m := range stamped {
		if m.IsDefault() {
			next.Default = m
		} else {
			next.Models[m.Key()] = m
		}
	}

	r.current.Store(next)
	r.publishMetrics(next)
	return nil
}

func (r *Registry) validate(m *domain.CalibrationModel) error {
	if m == nil {
		return fmt.Errorf("%w: nil model", storage.ErrInvalidInput)
	}
	if math.IsNaN(m.RSquared) || m.RSquared < r.floor || m.RSquared > 1 {
		return fmt.Errorf("%w: %s has r_squared %.3f", ErrBelowFloor, m.Key(), m.RSquared)
	}
	if !(m.GainFactor > 0) || math.IsInf(m.GainFactor, 0) || !isFinite(m.Offset) {
		return fmt.Errorf("%w: %s has gain %.6g offset %.6g", storage.ErrInvalidInput, m.Key(), m.GainFactor, m.Offset)
	}
	return nil
}

func (r *Registry) publishMetrics(s *Snapshot) {
	if r.metrics {
		observability.UpdateRegistry(s.Version, len(s.Models))
	}
}
