package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JoeProAI/followlytics/internal/detection"
	"github.com/JoeProAI/followlytics/internal/ingestion"
	"github.com/JoeProAI/followlytics/internal/metrics"
	"github.com/JoeProAI/followlytics/internal/models"
)

var (
	ErrTargetNotFound = errors.New("target not found")
	ErrRunNotFound    = errors.New("run not found")
	ErrRunActive      = errors.New("target already has an active run")
	ErrRunTerminal    = errors.New("run already reached a terminal state")
	ErrEmptyRun       = errors.New("run extracted no profiles against a non-empty baseline")
)

// RunOutcome summarizes what happened when a run completed.
type RunOutcome struct {
	Run        *models.ScanRun `json:"run"`
	Trusted    bool            `json:"trusted"`
	Ratio      float64         `json:"ratio"`
	Skipped    bool            `json:"skipped"`
	NewFollows int             `json:"new_follows"`
	Unfollows  int             `json:"unfollows"`
	Refollows  int             `json:"refollows"`
	Duplicates int             `json:"duplicates"`
}

// Manager orchestrates the scan run lifecycle: page ingestion, the coverage
// gate, the diff, and the ordered commit of snapshot mutations and change
// events. At most one run per target is in flight, enforced both by the
// ActiveRun check at start and a per-target mutex around completion.
//
// Page payloads are buffered in memory only; the durable record of a run is
// its metadata plus the snapshot and event log it produced. A process restart
// mid-run loses the buffer and the run should be failed and restarted.
type Manager struct {
	targets   models.TargetRepository
	followers models.FollowerRepository
	runs      models.ScanRunRepository
	events    models.ChangeEventRepository
	quality   models.QualityErrorRepository

	gate      detection.CoverageGate
	collector *metrics.Collector
	logger    *slog.Logger
	batchSize int

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	pages   map[string][][]ingestion.RawProfile
	pending map[string]*pendingCommit
}

// pendingCommit memoizes the baseline-derived state of a completion attempt.
// A retried completion reuses it, so the diff is computed exactly once against
// the pre-run baseline even when an earlier attempt already mutated the
// snapshot before hitting a transient storage error.
type pendingCommit struct {
	decision   detection.GateDecision
	prevActive int
	extracted  int
	diff       detection.DiffResult
	events     []models.ChangeEvent
}

func NewManager(
	targets models.TargetRepository,
	followers models.FollowerRepository,
	runs models.ScanRunRepository,
	events models.ChangeEventRepository,
	quality models.QualityErrorRepository,
	gate detection.CoverageGate,
	collector *metrics.Collector,
	logger *slog.Logger,
	batchSize int,
) *Manager {
	return &Manager{
		targets:   targets,
		followers: followers,
		runs:      runs,
		events:    events,
		quality:   quality,
		gate:      gate,
		collector: collector,
		logger:    logger,
		batchSize: batchSize,
		locks:     make(map[string]*sync.Mutex),
		pages:     make(map[string][][]ingestion.RawProfile),
		pending:   make(map[string]*pendingCommit),
	}
}

// targetLock returns the mutex serializing completion for one target.
func (m *Manager) targetLock(targetID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[targetID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[targetID] = lock
	}
	return lock
}

func (m *Manager) bufferPage(runID string, page []ingestion.RawProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[runID] = append(m.pages[runID], page)
	// A new page invalidates any diff memoized by an earlier completion attempt.
	delete(m.pending, runID)
}

// peekPages returns the buffered pages without consuming them. The buffer is
// released only when the run reaches a terminal state, so a retried completion
// still sees every page.
func (m *Manager) peekPages(runID string) [][]ingestion.RawProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pages[runID]
}

// clearRun releases the page buffer and any memoized completion state.
func (m *Manager) clearRun(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pages, runID)
	delete(m.pending, runID)
}

func (m *Manager) pendingFor(runID string) *pendingCommit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending[runID]
}

func (m *Manager) setPending(runID string, p *pendingCommit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[runID] = p
}

// StartRun opens a new scan run for the target. A target with a non-terminal
// run is rejected with ErrRunActive.
func (m *Manager) StartRun(ctx context.Context, targetID string) (*models.ScanRun, error) {
	lock := m.targetLock(targetID)
	lock.Lock()
	defer lock.Unlock()

	target, err := m.targets.GetByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load target: %w", err)
	}
	if target == nil {
		return nil, ErrTargetNotFound
	}

	active, err := m.runs.ActiveRun(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to check active run: %w", err)
	}
	if active != nil {
		return nil, fmt.Errorf("%w: run %s", ErrRunActive, active.ID)
	}

	run := &models.ScanRun{
		ID:        uuid.New().String(),
		TargetID:  targetID,
		Status:    models.RunStatusPending,
		StartedAt: time.Now(),
	}
	if err := m.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	m.logger.Info("scan run started", "run_id", run.ID, "target_id", targetID, "handle", target.Handle)
	return run, nil
}

// SubmitPage buffers one extracted page for the run. An empty page is valid;
// it still advances the page counter. The first page moves the run from
// pending to extracting.
func (m *Manager) SubmitPage(ctx context.Context, runID string, page []ingestion.RawProfile) (*models.ScanRun, error) {
	run, err := m.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		return nil, ErrRunNotFound
	}

	lock := m.targetLock(run.TargetID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock so a concurrent complete/fail is visible.
	run, err = m.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	if run.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrRunTerminal, run.Status)
	}

	run.Status = models.RunStatusExtracting
	run.PagesReceived++
	if err := m.runs.Update(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to update run: %w", err)
	}

	m.bufferPage(runID, page)

	m.logger.Debug("page received", "run_id", runID, "page", run.PagesReceived, "profiles", len(page))
	return run, nil
}

// CompleteRun folds the buffered pages, applies the coverage gate, and commits
// the diff. Completing an already-completed run is a no-op that returns the
// stored outcome, so a retried completion request cannot double-apply. The
// gate decision and diff are memoized on the first attempt; a completion
// retried after a transient storage error replays the same events against
// the idempotent log instead of re-diffing a snapshot the earlier attempt
// already touched.
func (m *Manager) CompleteRun(ctx context.Context, runID string) (*RunOutcome, error) {
	run, err := m.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		return nil, ErrRunNotFound
	}

	lock := m.targetLock(run.TargetID)
	lock.Lock()
	defer lock.Unlock()

	run, err = m.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		return nil, ErrRunNotFound
	}

	switch run.Status {
	case models.RunStatusCompleted:
		return storedOutcome(run), nil
	case models.RunStatusFailed:
		return nil, fmt.Errorf("%w: %s", ErrRunTerminal, run.Status)
	}

	folded := ingestion.Fold(m.peekPages(runID))
	now := time.Now()

	pending := m.pendingFor(runID)
	if pending == nil {
		m.recordQualityErrors(ctx, run, folded, now)

		prevActive, err := m.followers.CountActive(ctx, run.TargetID)
		if err != nil {
			return nil, fmt.Errorf("failed to count active followers: %w", err)
		}

		extracted := len(folded.Profiles)
		if extracted == 0 && prevActive > 0 {
			if err := m.fail(ctx, run, "no profiles extracted"); err != nil {
				return nil, err
			}
			return nil, ErrEmptyRun
		}

		decision := m.gate.Evaluate(prevActive, extracted)
		m.collector.ObserveCoverage(decision.Ratio)

		pending = &pendingCommit{decision: decision, prevActive: prevActive, extracted: extracted}
		if decision.Trusted {
			if err := m.prepareDiff(ctx, run, folded.Profiles, pending, now); err != nil {
				return nil, err
			}
		}
		m.setPending(runID, pending)
	}

	run.ExtractedCount = pending.extracted
	run.CoverageRatio = &pending.decision.Ratio
	run.Trusted = &pending.decision.Trusted
	run.Status = models.RunStatusCompleted
	run.CompletedAt = &now

	if !pending.decision.Trusted {
		run.DiffSkipped = true
		if err := m.runs.Update(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to update run: %w", err)
		}
		m.clearRun(runID)

		m.collector.ObserveSkippedDiff()
		m.collector.ObserveRun("skipped")
		m.logger.Warn("diff skipped, coverage below threshold",
			"run_id", run.ID,
			"target_id", run.TargetID,
			"ratio", pending.decision.Ratio,
			"prev_active", pending.prevActive,
			"extracted", pending.extracted)

		return storedOutcome(run), nil
	}

	outcome, err := m.commit(ctx, run, folded.Profiles, pending, now)
	if err != nil {
		return nil, err
	}
	m.clearRun(runID)
	outcome.Ratio = pending.decision.Ratio
	outcome.Trusted = true

	m.collector.ObserveRun("completed")
	m.logger.Info("scan run completed",
		"run_id", run.ID,
		"target_id", run.TargetID,
		"ratio", pending.decision.Ratio,
		"new_follows", outcome.NewFollows,
		"unfollows", outcome.Unfollows,
		"refollows", outcome.Refollows)

	return outcome, nil
}

// prepareDiff computes the diff and its change events against the current
// baseline, before anything is mutated. The result lives in the pending state
// until the run reaches a terminal status.
func (m *Manager) prepareDiff(ctx context.Context, run *models.ScanRun, profiles map[string]ingestion.RawProfile, pending *pendingCommit, now time.Time) error {
	prev, err := m.followers.ActiveHandles(ctx, run.TargetID)
	if err != nil {
		return fmt.Errorf("failed to load active handles: %w", err)
	}

	cur := make(map[string]bool, len(profiles))
	for handle := range profiles {
		cur[handle] = true
	}

	changed := make([]string, 0)
	for handle := range prev {
		if !cur[handle] {
			changed = append(changed, handle)
		}
	}
	for handle := range cur {
		if !prev[handle] {
			changed = append(changed, handle)
		}
	}

	known, err := m.followers.GetByHandles(ctx, run.TargetID, changed)
	if err != nil {
		return fmt.Errorf("failed to load changed followers: %w", err)
	}

	statuses := make(map[string]models.FollowerStatus, len(known))
	for handle, record := range known {
		statuses[handle] = record.Status
	}

	pending.diff = detection.Diff(prev, cur, true, statuses)
	pending.events = buildEvents(run, pending.diff, profiles, known, now)
	return nil
}

// commit applies a trusted diff in a fixed order: snapshot upserts, unfollow
// marks, event append, then run metadata and the target's last-completed
// pointer. Every step is an idempotent re-application of the memoized diff,
// so a retry after a transient failure picks up where the last attempt left
// off without double-applying.
func (m *Manager) commit(ctx context.Context, run *models.ScanRun, profiles map[string]ingestion.RawProfile, pending *pendingCommit, now time.Time) (*RunOutcome, error) {
	if err := m.writeSnapshot(ctx, run.TargetID, profiles, now); err != nil {
		return nil, err
	}

	if err := m.followers.MarkUnfollowed(ctx, run.TargetID, pending.diff.Removed, now); err != nil {
		return nil, fmt.Errorf("failed to mark unfollowed: %w", err)
	}

	result, err := m.events.Append(ctx, pending.events)
	if err != nil {
		return nil, fmt.Errorf("failed to append events: %w", err)
	}

	if err := m.runs.Update(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to update run: %w", err)
	}
	if err := m.targets.SetLastCompletedRun(ctx, run.TargetID, run.ID, now); err != nil {
		return nil, fmt.Errorf("failed to advance last-completed pointer: %w", err)
	}

	m.collector.AddChangeEvents(string(models.ChangeTypeUnfollow), len(pending.diff.Removed))
	m.collector.AddChangeEvents(string(models.ChangeTypeNewFollow), len(pending.diff.Added))
	m.collector.AddChangeEvents(string(models.ChangeTypeRefollow), len(pending.diff.Readded))

	return &RunOutcome{
		Run:        run,
		NewFollows: len(pending.diff.Added),
		Unfollows:  len(pending.diff.Removed),
		Refollows:  len(pending.diff.Readded),
		Duplicates: result.Duplicates,
	}, nil
}

// writeSnapshot upserts the full current follower set in bounded batches, one
// transaction per batch.
func (m *Manager) writeSnapshot(ctx context.Context, targetID string, profiles map[string]ingestion.RawProfile, now time.Time) error {
	batch := make([]models.FollowerRecord, 0, m.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := m.followers.UpsertActive(ctx, targetID, batch); err != nil {
			return fmt.Errorf("failed to write snapshot batch: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for handle, profile := range profiles {
		batch = append(batch, models.FollowerRecord{
			TargetID:       targetID,
			Handle:         handle,
			DisplayName:    profile.DisplayName,
			Bio:            profile.Bio,
			Verified:       profile.Verified,
			FollowersCount: profile.FollowersCount,
			FollowingCount: profile.FollowingCount,
			AvatarURL:      profile.AvatarURL,
			Location:       profile.Location,
			Status:         models.FollowerStatusActive,
			FirstSeenAt:    now,
			LastSeenAt:     now,
		})
		if len(batch) >= m.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	return flush()
}

// buildEvents turns a diff into change events. Unfollow events carry the
// stored profile fields of the departed follower; new-follow and refollow
// events carry the freshly extracted profile.
func buildEvents(run *models.ScanRun, diff detection.DiffResult, profiles map[string]ingestion.RawProfile, known map[string]models.FollowerRecord, now time.Time) []models.ChangeEvent {
	events := make([]models.ChangeEvent, 0, len(diff.Removed)+len(diff.Added)+len(diff.Readded))

	for _, handle := range diff.Removed {
		event := models.ChangeEvent{
			ID:         uuid.New().String(),
			RunID:      run.ID,
			TargetID:   run.TargetID,
			Handle:     handle,
			Type:       models.ChangeTypeUnfollow,
			OccurredAt: now,
		}
		if record, ok := known[handle]; ok {
			event.DisplayName = record.DisplayName
			event.Verified = record.Verified
			event.FollowersCount = record.FollowersCount
		}
		events = append(events, event)
	}

	appendFresh := func(handles []string, t models.ChangeType) {
		for _, handle := range handles {
			profile := profiles[handle]
			events = append(events, models.ChangeEvent{
				ID:             uuid.New().String(),
				RunID:          run.ID,
				TargetID:       run.TargetID,
				Handle:         handle,
				Type:           t,
				OccurredAt:     now,
				DisplayName:    profile.DisplayName,
				Verified:       profile.Verified,
				FollowersCount: profile.FollowersCount,
			})
		}
	}
	appendFresh(diff.Added, models.ChangeTypeNewFollow)
	appendFresh(diff.Readded, models.ChangeTypeRefollow)

	return events
}

func (m *Manager) recordQualityErrors(ctx context.Context, run *models.ScanRun, folded ingestion.Result, now time.Time) {
	for _, c := range folded.Collisions {
		err := m.quality.Store(ctx, models.DataQualityError{
			ID:            uuid.New().String(),
			TargetID:      run.TargetID,
			RunID:         run.ID,
			Type:          models.QualityErrorCollision,
			RawHandle:     c.RejectedRaw,
			NormalizedKey: c.Key,
			Detail:        fmt.Sprintf("collides with kept raw handle %q", c.KeptRaw),
			CreatedAt:     now,
		})
		if err != nil {
			m.logger.Error("failed to record data quality error",
				"run_id", run.ID, "raw_handle", c.RejectedRaw, "error", err)
		}
	}
	for _, raw := range folded.Malformed {
		err := m.quality.Store(ctx, models.DataQualityError{
			ID:        uuid.New().String(),
			TargetID:  run.TargetID,
			RunID:     run.ID,
			Type:      models.QualityErrorMalformed,
			RawHandle: raw,
			Detail:    "raw handle normalizes to an empty identity key",
			CreatedAt: now,
		})
		if err != nil {
			m.logger.Error("failed to record data quality error",
				"run_id", run.ID, "raw_handle", raw, "error", err)
		}
	}
}

// FailRun marks a run failed. Failing an already-failed run is a no-op.
func (m *Manager) FailRun(ctx context.Context, runID, message string) error {
	run, err := m.runs.GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		return ErrRunNotFound
	}

	lock := m.targetLock(run.TargetID)
	lock.Lock()
	defer lock.Unlock()

	run, err = m.runs.GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		return ErrRunNotFound
	}
	if run.Status == models.RunStatusFailed {
		return nil
	}
	if run.Status == models.RunStatusCompleted {
		return fmt.Errorf("%w: %s", ErrRunTerminal, run.Status)
	}

	return m.fail(ctx, run, message)
}

func (m *Manager) fail(ctx context.Context, run *models.ScanRun, message string) error {
	now := time.Now()
	run.Status = models.RunStatusFailed
	run.ErrorMessage = message
	run.CompletedAt = &now

	if err := m.runs.Update(ctx, run); err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}

	m.clearRun(run.ID)
	m.collector.ObserveRun("failed")
	m.logger.Warn("scan run failed", "run_id", run.ID, "target_id", run.TargetID, "reason", message)
	return nil
}

// GetRunStatus returns the current run record.
func (m *Manager) GetRunStatus(ctx context.Context, runID string) (*models.ScanRun, error) {
	run, err := m.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	return run, nil
}

func storedOutcome(run *models.ScanRun) *RunOutcome {
	outcome := &RunOutcome{Run: run, Skipped: run.DiffSkipped}
	if run.Trusted != nil {
		outcome.Trusted = *run.Trusted
	}
	if run.CoverageRatio != nil {
		outcome.Ratio = *run.CoverageRatio
	}
	return outcome
}
