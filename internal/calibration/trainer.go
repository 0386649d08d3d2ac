package calibration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/observability"
	"voltammetry-lab/internal/storage"
)

// Trainer errors.
var (
	// ErrAllConditionsRejected is returned when no pooled condition produced an acceptable fit.
	ErrAllConditionsRejected = errors.New("all conditions rejected")

	// ErrNoConditions is returned when a run is started with nothing pooled.
	ErrNoConditions = errors.New("no pooled conditions")
)

// TrainerOptions for creating a Trainer.
type TrainerOptions struct {
	Builder       *Builder
	Registry      *Registry
	Runs          storage.TrainingRunStore // optional
	RecordMetrics bool
	Logger        logrus.FieldLogger
	Now           func() time.Time
	NewRunID      func() string
}

// Trainer fits pooled conditions and commits them one at a time.
type Trainer struct {
	builder   *Builder
	registry  *Registry
	runs      storage.TrainingRunStore
	lifecycle *Lifecycle
	metrics   bool
	log       logrus.FieldLogger
	now       func() time.Time
	newRunID  func() string

	mu sync.Mutex // one run at a time
}

// NewTrainer creates a trainer. The lifecycle starts in Serving if the
// registry already serves models, Untrained otherwise.
func NewTrainer(opts TrainerOptions) *Trainer {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newRunID := opts.NewRunID
	if newRunID == nil {
		newRunID = func() string { return uuid.New().String() }
	}

	initial := StateUntrained
	if !opts.Registry.Snapshot().Empty() {
		initial = StateServing
	}

	return &Trainer{
		builder:   opts.Builder,
		registry:  opts.Registry,
		runs:      opts.Runs,
		lifecycle: NewLifecycle(initial),
		metrics:   opts.RecordMetrics,
		log:       log,
		now:       now,
		newRunID:  newRunID,
	}
}

// State returns the lifecycle state.
func (t *Trainer) State() State {
	return t.lifecycle.State()
}

// Run fits every pool in condition key order. Each accepted model is
// committed together with the default model recomputed over everything
// served, so a default exists as soon as one condition is served. A
// rejected condition keeps its previous model. Cancellation is checked
// between conditions; models committed before it stay committed.
//
// The returned run is non-nil whenever at least one condition was attempted.
func (t *Trainer) Run(ctx context.Context, pools []Pool) (*domain.TrainingRun, error) {
	if len(pools) == 0 {
		return nil, ErrNoConditions
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	pools = sortedPools(pools)

	run := &domain.TrainingRun{
		RunID:     t.newRunID(),
		StartedAt: t.now().UTC(),
	}
	log := t.log.WithField("run_id", run.RunID)
	log.WithField("conditions", len(pools)).Info("calibration training started")

	var runErr error
	for _, pool := range pools {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if err := t.lifecycle.Transition(StateFitting); err != nil {
			return nil, err
		}

		outcome, err := t.trainCondition(ctx, pool, log)
		run.Outcomes = append(run.Outcomes, outcome)
		if err != nil {
			// persistence failure, not a fit rejection
			_ = t.lifecycle.Transition(StateRejected)
			runErr = err
			break
		}
		if outcome.Accepted {
			run.Accepted++
			_ = t.lifecycle.Transition(StateTrained)
		} else {
			run.Rejected++
			_ = t.lifecycle.Transition(StateRejected)
		}
	}

	run.FinishedAt = t.now().UTC()
	run.Status = runStatus(run, runErr)
	t.settle()
	t.record(ctx, run, log)

	switch {
	case runErr != nil:
		return run, fmt.Errorf("training run %s: %w", run.RunID, runErr)
	case run.Accepted == 0:
		return run, fmt.Errorf("%w: %s", ErrAllConditionsRejected, failureSummary(run))
	}
	return run, nil
}

func (t *Trainer) trainCondition(ctx context.Context, pool Pool, log logrus.FieldLogger) (domain.ConditionOutcome, error) {
	key := pool.Condition.Key()
	outcome := domain.ConditionOutcome{ConditionKey: key, Points: len(pool.Points)}
	clog := log.WithField("condition", key)

	model, err := t.builder.Fit(pool.Condition, pool.Points)
	if err != nil {
		outcome.Reason = err.Error()
		clog.WithError(err).Warn("calibration fit rejected, previous model retained")
		t.recordFit(false)
		return outcome, nil
	}
	outcome.RSquared = model.RSquared

	def, err := t.defaultWith(model)
	if err != nil {
		outcome.Reason = err.Error()
		t.recordFit(false)
		return outcome, err
	}
	if err := t.registry.Commit(ctx, model, def); err != nil {
		outcome.Reason = err.Error()
		t.recordFit(false)
		return outcome, err
	}

	outcome.Accepted = true
	t.recordFit(true)
	clog.WithFields(logrus.Fields{
		"gain_factor": model.GainFactor,
		"offset":      model.Offset,
		"r_squared":   model.RSquared,
		"tier":        model.Tier,
		"points":      model.DataPointCount,
	}).Info("calibration model committed")
	clog.WithFields(logrus.Fields{
		"gain_factor": def.GainFactor,
		"r_squared":   def.RSquared,
		"tier":        def.Tier,
	}).Debug("default calibration model updated")
	return outcome, nil
}

// defaultWith builds the default model over the served condition models
// with model added or replacing its condition.
func (t *Trainer) defaultWith(model *domain.CalibrationModel) (*domain.CalibrationModel, error) {
	models := []*domain.CalibrationModel{model}
	for _, m := range t.registry.Snapshot().Sorted() {
		if m.Key() != model.Key() {
			models = append(models, m)
		}
	}
	def, err := t.builder.BuildDefault(models)
	if err != nil {
		return nil, fmt.Errorf("build default model: %w", err)
	}
	return def, nil
}

// settle leaves Fitting-side states once a run is over.
func (t *Trainer) settle() {
	if t.registry.Snapshot().Empty() {
		_ = t.lifecycle.Transition(StateUntrained)
		return
	}
	_ = t.lifecycle.Transition(StateServing)
}

func (t *Trainer) record(ctx context.Context, run *domain.TrainingRun, log logrus.FieldLogger) {
	if t.metrics {
		observability.RecordTrainingRun(string(run.Status), run.FinishedAt.Sub(run.StartedAt).Seconds())
	}
	if t.runs != nil {
		// the run log is written even when ctx was cancelled mid-run
		if err := t.runs.Insert(context.WithoutCancel(ctx), run); err != nil {
			log.WithError(err).Error("failed to store training run")
		}
	}
	log.WithFields(logrus.Fields{
		"status":   run.Status,
		"accepted": run.Accepted,
		"rejected": run.Rejected,
	}).Info("calibration training finished")
}

func (t *Trainer) recordFit(accepted bool) {
	if t.metrics {
		observability.RecordConditionFit(accepted)
	}
}

func runStatus(run *domain.TrainingRun, err error) domain.TrainingStatus {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.TrainingStatusCancelled
	case err != nil, run.Accepted == 0:
		return domain.TrainingStatusFailed
	case run.Rejected > 0:
		return domain.TrainingStatusPartial
	default:
		return domain.TrainingStatusSucceeded
	}
}

func failureSummary(run *domain.TrainingRun) string {
	parts := make([]string, 0, len(run.Outcomes))
	for _, o := range run.Outcomes {
		parts = append(parts, o.ConditionKey+": "+o.Reason)
	}
	return strings.Join(parts, "; ")
}

func sortedPools(pools []Pool) []Pool {
	out := append([]Pool(nil), pools...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Condition.Key() < out[j].Condition.Key()
	})
	return out
}
