package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JoeProAI/followlytics/internal/models"
)

// In-memory repositories for testing and development. They honor the same
// contracts as the Postgres implementations, including the event log's
// per-(run, handle, type) uniqueness guard.

// MemoryTargetRepository implements models.TargetRepository in memory.
type MemoryTargetRepository struct {
	mu      sync.Mutex
	targets map[string]models.TrackedTarget
	nextID  int
}

func NewMemoryTargetRepository() *MemoryTargetRepository {
	return &MemoryTargetRepository{targets: make(map[string]models.TrackedTarget)}
}

func (r *MemoryTargetRepository) Store(ctx context.Context, target *models.TrackedTarget) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if target.ID == "" {
		r.nextID++
		target.ID = "target-" + itoa(r.nextID)
		target.CreatedAt = now
	}
	target.UpdatedAt = now
	r.targets[target.ID] = *target
	return nil
}

func (r *MemoryTargetRepository) GetByID(ctx context.Context, id string) (*models.TrackedTarget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.targets[id]
	if !ok {
		return nil, nil
	}
	return &target, nil
}

func (r *MemoryTargetRepository) GetByHandle(ctx context.Context, ownerID, handle string) (*models.TrackedTarget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, target := range r.targets {
		if target.OwnerID == ownerID && target.Handle == handle {
			t := target
			return &t, nil
		}
	}
	return nil, nil
}

func (r *MemoryTargetRepository) List(ctx context.Context, ownerID string) ([]*models.TrackedTarget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.TrackedTarget
	for _, target := range r.targets {
		if target.OwnerID == ownerID {
			t := target
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryTargetRepository) ListAll(ctx context.Context) ([]*models.TrackedTarget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.TrackedTarget
	for _, target := range r.targets {
		t := target
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryTargetRepository) SetLastCompletedRun(ctx context.Context, targetID, runID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.targets[targetID]
	if !ok {
		return nil
	}
	target.LastCompletedRunID = runID
	target.LastScannedAt = &at
	target.UpdatedAt = time.Now()
	r.targets[targetID] = target
	return nil
}

func (r *MemoryTargetRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.targets, id)
	return nil
}

// MemoryFollowerRepository implements models.FollowerRepository in memory.
type MemoryFollowerRepository struct {
	mu      sync.Mutex
	records map[string]map[string]models.FollowerRecord // targetID -> handle -> record
}

func NewMemoryFollowerRepository() *MemoryFollowerRepository {
	return &MemoryFollowerRepository{records: make(map[string]map[string]models.FollowerRecord)}
}

func (r *MemoryFollowerRepository) ActiveHandles(ctx context.Context, targetID string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles := make(map[string]bool)
	for handle, record := range r.records[targetID] {
		if record.Status == models.FollowerStatusActive {
			handles[handle] = true
		}
	}
	return handles, nil
}

func (r *MemoryFollowerRepository) CountActive(ctx context.Context, targetID string) (int, error) {
	handles, _ := r.ActiveHandles(ctx, targetID)
	return len(handles), nil
}

func (r *MemoryFollowerRepository) GetByHandles(ctx context.Context, targetID string, handles []string) (map[string]models.FollowerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]models.FollowerRecord, len(handles))
	for _, handle := range handles {
		if record, ok := r.records[targetID][handle]; ok {
			out[handle] = record
		}
	}
	return out, nil
}

func (r *MemoryFollowerRepository) UpsertActive(ctx context.Context, targetID string, records []models.FollowerRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.records[targetID] == nil {
		r.records[targetID] = make(map[string]models.FollowerRecord)
	}

	for _, record := range records {
		existing, ok := r.records[targetID][record.Handle]
		if ok {
			// first_seen is set exactly once
			record.FirstSeenAt = existing.FirstSeenAt
		}
		record.TargetID = targetID
		record.Status = models.FollowerStatusActive
		record.UnfollowedAt = nil
		r.records[targetID][record.Handle] = record
	}
	return nil
}

func (r *MemoryFollowerRepository) MarkUnfollowed(ctx context.Context, targetID string, handles []string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, handle := range handles {
		record, ok := r.records[targetID][handle]
		if !ok || record.Status != models.FollowerStatusActive {
			continue
		}
		record.Status = models.FollowerStatusUnfollowed
		unfollowedAt := at
		record.UnfollowedAt = &unfollowedAt
		r.records[targetID][handle] = record
	}
	return nil
}

func (r *MemoryFollowerRepository) ListUnfollowed(ctx context.Context, targetID string, limit, offset int) ([]models.FollowerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.FollowerRecord
	for _, record := range r.records[targetID] {
		if record.Status == models.FollowerStatusUnfollowed {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].UnfollowedAt, out[j].UnfollowedAt
		if ti == nil || tj == nil {
			return tj == nil
		}
		return ti.After(*tj)
	})

	if offset >= len(out) {
		return []models.FollowerRecord{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// MemoryScanRunRepository implements models.ScanRunRepository in memory.
type MemoryScanRunRepository struct {
	mu   sync.Mutex
	runs map[string]models.ScanRun
}

func NewMemoryScanRunRepository() *MemoryScanRunRepository {
	return &MemoryScanRunRepository{runs: make(map[string]models.ScanRun)}
}

func (r *MemoryScanRunRepository) Create(ctx context.Context, run *models.ScanRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[run.ID] = *run
	return nil
}

func (r *MemoryScanRunRepository) GetByID(ctx context.Context, id string) (*models.ScanRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

func (r *MemoryScanRunRepository) Update(ctx context.Context, run *models.ScanRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[run.ID] = *run
	return nil
}

func (r *MemoryScanRunRepository) ActiveRun(ctx context.Context, targetID string) (*models.ScanRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, run := range r.runs {
		if run.TargetID == targetID && !run.Status.Terminal() {
			active := run
			return &active, nil
		}
	}
	return nil, nil
}

func (r *MemoryScanRunRepository) ListByTarget(ctx context.Context, targetID string, limit int) ([]*models.ScanRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.ScanRun
	for _, run := range r.runs {
		if run.TargetID == targetID {
			item := run
			out = append(out, &item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// MemoryChangeEventRepository implements models.ChangeEventRepository in memory.
type MemoryChangeEventRepository struct {
	mu     sync.Mutex
	events []models.ChangeEvent
	seen   map[string]bool // runID|handle|type
}

func NewMemoryChangeEventRepository() *MemoryChangeEventRepository {
	return &MemoryChangeEventRepository{seen: make(map[string]bool)}
}

func (r *MemoryChangeEventRepository) Append(ctx context.Context, events []models.ChangeEvent) (models.AppendResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := models.AppendResult{}
	for _, event := range events {
		key := event.RunID + "|" + event.Handle + "|" + string(event.Type)
		if r.seen[key] {
			result.Duplicates++
			continue
		}
		r.seen[key] = true
		r.events = append(r.events, event)
		result.Appended++
	}
	return result, nil
}

func (r *MemoryChangeEventRepository) ListByTarget(ctx context.Context, targetID string, limit, offset int) ([]models.ChangeEvent, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.ChangeEvent
	for _, event := range r.events {
		if event.TargetID == targetID {
			out = append(out, event)
		}
	}
	total := len(out)
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })

	if offset >= len(out) {
		return []models.ChangeEvent{}, total, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *MemoryChangeEventRepository) ListForClassification(ctx context.Context, targetID string) ([]models.ChangeEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.ChangeEvent
	for _, event := range r.events {
		if event.TargetID == targetID {
			out = append(out, event)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

// MemoryQualityErrorRepository implements models.QualityErrorRepository in memory.
type MemoryQualityErrorRepository struct {
	mu     sync.Mutex
	errors []models.DataQualityError
}

func NewMemoryQualityErrorRepository() *MemoryQualityErrorRepository {
	return &MemoryQualityErrorRepository{}
}

func (r *MemoryQualityErrorRepository) Store(ctx context.Context, e models.DataQualityError) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, e)
	return nil
}

func (r *MemoryQualityErrorRepository) ListByTarget(ctx context.Context, targetID string, limit int) ([]models.DataQualityError, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.DataQualityError
	for _, e := range r.errors {
		if e.TargetID == targetID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
