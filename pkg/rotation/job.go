package rotation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/systmms/approtate/internal/logging"
	"github.com/systmms/approtate/internal/secure"
	"github.com/systmms/approtate/pkg/directory"
	"github.com/systmms/approtate/pkg/vault"
)

// VaultFactory opens the vault a run reads from and writes to.
type VaultFactory func(ctx context.Context, cfg Config) (vault.Store, error)

// DirectoryFactory opens a directory client authenticated as cfg.ClientID
// with the given client secret.
type DirectoryFactory func(ctx context.Context, cfg Config, clientSecret string) (directory.Client, error)

// Job runs client-secret rotations. A Job holds no state between runs and
// does not guard against overlapping runs; callers that schedule it are
// expected to serialize invocations.
type Job struct {
	newVault     VaultFactory
	newDirectory DirectoryFactory

	clock    clock.Clock
	logger   *logging.Logger
	recorder Recorder
	notifier Notifier
	history  HistoryStore
	newRunID func() string
}

// Option configures a Job.
type Option func(*Job)

// WithClock sets the clock used for expiry and pruning decisions.
func WithClock(c clock.Clock) Option {
	return func(j *Job) { j.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(j *Job) { j.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(j *Job) { j.recorder = r }
}

// WithNotifier sets the notifier.
func WithNotifier(n Notifier) Option {
	return func(j *Job) { j.notifier = n }
}

// WithHistory sets the history store.
func WithHistory(h HistoryStore) Option {
	return func(j *Job) { j.history = h }
}

// WithRunID overrides run id generation.
func WithRunID(fn func() string) Option {
	return func(j *Job) { j.newRunID = fn }
}

// NewJob creates a Job.
func NewJob(newVault VaultFactory, newDirectory DirectoryFactory, opts ...Option) *Job {
	j := &Job{
		newVault:     newVault,
		newDirectory: newDirectory,
		clock:        clock.WallClock,
		logger:       logging.Discard(),
		newRunID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// run carries the state of one invocation.
type run struct {
	cfg    Config
	result *Result
	log    *logging.Logger

	store   vault.Store
	dir     directory.Client
	current *secure.SecureBuffer
	minted  *secure.SecureBuffer
}

func (r *run) close() {
	if r.current != nil {
		r.current.Destroy()
	}
	if r.minted != nil {
		r.minted.Destroy()
	}
}

// Run performs one rotation. The returned Result is never nil, and on
// failure err is a *StageError.
func (j *Job) Run(ctx context.Context, cfg Config) (*Result, error) {
	cfg = cfg.WithDefaults()

	r := &run{
		cfg: cfg,
		result: &Result{
			RunID:       j.newRunID(),
			AppObjectID: cfg.AppObjectID,
			SecretName:  cfg.SecretName,
			StartedAt:   j.clock.Now(),
		},
	}
	r.log = j.logger.WithFields(map[string]interface{}{
		"run_id":        r.result.RunID,
		"app_object_id": cfg.AppObjectID,
	})
	defer r.close()

	r.log.Info("Starting client secret rotation for secret %s", cfg.SecretName)

	err := j.execute(ctx, r)
	j.finish(r, err)
	return r.result, err
}

func (j *Job) execute(ctx context.Context, r *run) error {
	stages := []struct {
		stage Stage
		kind  error
		fn    func(context.Context, *run) (string, error)
	}{
		{StageValidate, ErrConfiguration, j.validate},
		{StageReadSecret, ErrVaultRead, j.readSecret},
		{StageCreateCredential, ErrCredentialCreate, j.createCredential},
		{StagePersistSecret, ErrVaultWrite, j.persistSecret},
		{StagePruneExpired, ErrCredentialRead, j.pruneExpired},
	}

	for _, s := range stages {
		step := StepResult{Stage: s.stage, StartedAt: j.clock.Now()}

		var err error
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = &StageError{Stage: s.stage, Kind: s.kind, Err: ctxErr}
		} else {
			step.Message, err = s.fn(ctx, r)
		}
		step.Duration = j.clock.Now().Sub(step.StartedAt)

		if err != nil {
			var stageErr *StageError
			if !errors.As(err, &stageErr) {
				stageErr = &StageError{Stage: s.stage, Kind: s.kind, Err: err}
			}
			step.Status = StepFailed
			step.Error = stageErr.Error()
			r.result.Steps = append(r.result.Steps, step)
			return stageErr
		}

		step.Status = StepCompleted
		r.result.Steps = append(r.result.Steps, step)
		r.log.Debug("Stage %s completed: %s", s.stage, step.Message)
	}
	return nil
}

func (j *Job) validate(_ context.Context, r *run) (string, error) {
	if err := r.cfg.Validate(); err != nil {
		return "", err
	}
	return "configuration complete", nil
}

func (j *Job) readSecret(ctx context.Context, r *run) (string, error) {
	store, err := j.newVault(ctx, r.cfg)
	if err != nil {
		return "", fmt.Errorf("open vault: %w", err)
	}
	r.store = store
	r.result.VaultBackend = store.Name()

	value, err := store.Get(ctx, r.cfg.SecretName)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", vault.NewError(store.Name(), "get", r.cfg.SecretName, vault.ErrNotFound, errors.New("secret value is empty"))
	}

	r.current, err = secure.FromString(value)
	if err != nil {
		return "", fmt.Errorf("seal current secret: %w", err)
	}
	return fmt.Sprintf("read %s from %s", r.cfg.SecretName, store.Name()), nil
}

func (j *Job) createCredential(ctx context.Context, r *run) (string, error) {
	err := r.current.Use(func(secret string) error {
		dir, err := j.newDirectory(ctx, r.cfg, secret)
		if err != nil {
			return err
		}
		r.dir = dir
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("authenticate as %s: %w", r.cfg.ClientID, err)
	}

	expiry := j.clock.Now().Add(r.cfg.Validity)
	cred, err := r.dir.AddCredential(ctx, r.cfg.AppObjectID, r.cfg.DisplayName, expiry)
	if err != nil {
		return "", err
	}

	r.minted, err = secure.FromString(cred.SecretText)
	cred.SecretText = ""
	r.result.Created = &cred
	if err != nil {
		return "", fmt.Errorf("seal new secret: %w", err)
	}

	r.log.Info("Created credential %s expiring %s", cred.KeyID, expiry.Format(time.RFC3339))
	return fmt.Sprintf("created credential %s", cred.KeyID), nil
}

func (j *Job) persistSecret(ctx context.Context, r *run) (string, error) {
	if r.minted.Empty() {
		return "", &StageError{
			Stage: StagePersistSecret,
			Kind:  ErrInconsistentState,
			Err:   fmt.Errorf("credential %s was created without a secret value", r.result.Created.KeyID),
		}
	}

	err := r.minted.Use(func(secret string) error {
		return r.store.Set(ctx, r.cfg.SecretName, secret)
	})
	if err != nil {
		return "", err
	}

	r.log.Info("Stored new secret in %s under %s", r.store.Name(), r.cfg.SecretName)
	return fmt.Sprintf("stored %s in %s", r.cfg.SecretName, r.store.Name()), nil
}

func (j *Job) pruneExpired(ctx context.Context, r *run) (string, error) {
	creds, err := r.dir.GetCredentials(ctx, r.cfg.AppObjectID)
	if err != nil {
		return "", err
	}
	// An absent or empty list is a no-op under every policy. It cannot hold
	// the credential created above, so writing it back would revoke it.
	if len(creds) == 0 {
		return "no credential list returned, nothing to prune", nil
	}

	// A lagging read may not show the credential created above yet. Writing
	// such a list back would revoke the secret the vault now holds.
	if !containsKey(creds, r.result.Created.KeyID) {
		return "", fmt.Errorf("fresh list does not contain new credential %s, not pruning", r.result.Created.KeyID)
	}

	keep, removed := PruneExpired(creds, j.clock.Now())
	r.result.Retained = len(keep)

	if len(removed) == 0 && r.cfg.PrunePolicy == PruneSkipUnchanged {
		return fmt.Sprintf("no expired credentials among %d", len(creds)), nil
	}

	if err := r.dir.ReplaceCredentials(ctx, r.cfg.AppObjectID, keep); err != nil {
		return "", &StageError{Stage: StagePruneExpired, Kind: ErrCredentialWrite, Err: err}
	}
	r.result.Removed = removed
	r.result.PruneWritten = true

	for _, c := range removed {
		r.log.Info("Removed expired credential %s (%s)", c.KeyID, c.DisplayName)
	}
	return fmt.Sprintf("removed %d expired credentials, kept %d", len(removed), len(keep)), nil
}

func containsKey(creds []directory.Credential, keyID string) bool {
	for _, c := range creds {
		if c.KeyID == keyID {
			return true
		}
	}
	return false
}

// finish settles the outcome and reports it to the observers. Observer
// failures are logged and never change the outcome.
func (j *Job) finish(r *run, err error) {
	res := r.result
	res.FinishedAt = j.clock.Now()

	switch {
	case err == nil:
		res.Outcome = OutcomeSucceeded
		r.log.Info("Rotation completed: created %s, removed %d, retained %d",
			res.Created.KeyID, len(res.Removed), res.Retained)
	case errors.Is(err, ErrInconsistentState):
		res.Outcome = OutcomeInconsistent
		res.FailedStage = FailedStage(err)
		res.Error = err.Error()
		r.log.WithError(err).Error("INCONSISTENT STATE: credential %s exists on application %s but the vault entry %s still holds the previous secret. Manual reconciliation required",
			res.Created.KeyID, res.AppObjectID, res.SecretName)
	default:
		res.Outcome = OutcomeFailed
		res.FailedStage = FailedStage(err)
		res.Error = err.Error()
		r.log.WithError(err).Error("Rotation failed at stage %s", res.FailedStage)
	}

	if j.recorder != nil {
		j.recorder.RecordRun(res)
	}
	if j.history != nil {
		if herr := j.history.SaveRun(res); herr != nil {
			r.log.Warn("Failed to save rotation history: %v", herr)
		}
	}
	if j.notifier != nil {
		j.notifier.NotifyRun(res)
	}
}
