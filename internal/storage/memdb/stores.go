package memdb

import (
	"context"
	"fmt"
	"sort"
	"time"

	deploymentmodels "workpermit/internal/deployment/models"
	permitmodels "workpermit/internal/permit/models"
	quotamodels "workpermit/internal/quota/models"
	runawaymodels "workpermit/internal/runaway/models"
	id "workpermit/pkg/domain"
	"workpermit/pkg/platform/sentinel"
	"workpermit/pkg/requestcontext"
)

// ---------------------------------------------------------------------------
// Letters
// ---------------------------------------------------------------------------

// LetterStore is the in-memory ports.LetterStore.
type LetterStore struct{ db *DB }

func (db *DB) Letters() *LetterStore { return &LetterStore{db: db} }

func (s *LetterStore) Create(ctx context.Context, letter *quotamodels.RecruitmentLetter) error {
	defer s.db.enter(ctx)()
	for _, existing := range s.db.letters {
		if existing.LetterNumber == letter.LetterNumber {
			return fmt.Errorf("letter number %s: %w", letter.LetterNumber, sentinel.ErrConflict)
		}
	}
	cp := *letter
	s.db.letters[letter.ID] = &cp
	return nil
}

func (s *LetterStore) FindByID(ctx context.Context, letterID id.LetterID) (*quotamodels.RecruitmentLetter, error) {
	defer s.db.enter(ctx)()
	letter, ok := s.db.letters[letterID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *letter
	return &cp, nil
}

func (s *LetterStore) LockForUpdate(ctx context.Context, letterID id.LetterID) error {
	// The transaction mutex already serializes writers; the guard and the
	// existence check are what remain of FOR UPDATE semantics here.
	if err := s.db.requireTx(ctx); err != nil {
		return err
	}
	if _, ok := s.db.letters[letterID]; !ok {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *LetterStore) CountInUse(ctx context.Context, letterID id.LetterID, circular bool, gender *id.Gender) (int, error) {
	defer s.db.enter(ctx)()
	return s.db.countInUseLocked(letterID, circular, gender), nil
}

func (db *DB) countInUseLocked(letterID id.LetterID, circular bool, gender *id.Gender) int {
	count := 0
	for _, d := range db.deployments {
		if d.LetterID == nil || *d.LetterID != letterID {
			continue
		}
		if gender != nil {
			worker, ok := db.workers[d.WorkerID]
			if !ok || worker.Gender != *gender {
				continue
			}
		}
		if !circular {
			count++
			continue
		}
		if d.Status.IsOpen() || db.hasFrozenRunawayLocked(d.ID) {
			count++
		}
	}
	return count
}

func (db *DB) hasFrozenRunawayLocked(deploymentID id.DeploymentID) bool {
	for _, r := range db.runaways {
		if r.DeploymentID == deploymentID && r.QuotaFrozen {
			return true
		}
	}
	return false
}

func (s *LetterStore) UpdateUsedQuota(ctx context.Context, letterID id.LetterID, used int) error {
	defer s.db.enter(ctx)()
	letter, ok := s.db.letters[letterID]
	if !ok {
		return sentinel.ErrNotFound
	}
	letter.UsedQuota = used
	letter.UpdatedAt = requestcontext.Now(ctx)
	return nil
}

// ---------------------------------------------------------------------------
// Workers and employers
// ---------------------------------------------------------------------------

// WorkerStore is the in-memory ports.WorkerStore.
type WorkerStore struct{ db *DB }

func (db *DB) Workers() *WorkerStore { return &WorkerStore{db: db} }

func (s *WorkerStore) FindByID(ctx context.Context, workerID id.WorkerID) (*deploymentmodels.Worker, error) {
	defer s.db.enter(ctx)()
	worker, ok := s.db.workers[workerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *worker
	return &cp, nil
}

func (s *WorkerStore) Lock(ctx context.Context, workerID id.WorkerID) error {
	if err := s.db.requireTx(ctx); err != nil {
		return err
	}
	if _, ok := s.db.workers[workerID]; !ok {
		return sentinel.ErrNotFound
	}
	return nil
}

// EmployerStore is the in-memory ports.EmployerStore.
type EmployerStore struct{ db *DB }

func (db *DB) Employers() *EmployerStore { return &EmployerStore{db: db} }

func (s *EmployerStore) FindByID(ctx context.Context, employerID id.EmployerID) (*deploymentmodels.Employer, error) {
	defer s.db.enter(ctx)()
	employer, ok := s.db.employers[employerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *employer
	return &cp, nil
}

// ---------------------------------------------------------------------------
// Deployments
// ---------------------------------------------------------------------------

// DeploymentStore is the in-memory ports.DeploymentStore.
type DeploymentStore struct{ db *DB }

func (db *DB) Deployments() *DeploymentStore { return &DeploymentStore{db: db} }

func (s *DeploymentStore) Create(ctx context.Context, deployment *deploymentmodels.Deployment) error {
	defer s.db.enter(ctx)()
	if _, ok := s.db.deployments[deployment.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *deployment
	s.db.deployments[deployment.ID] = &cp
	return nil
}

func (s *DeploymentStore) FindByID(ctx context.Context, deploymentID id.DeploymentID) (*deploymentmodels.Deployment, error) {
	defer s.db.enter(ctx)()
	deployment, ok := s.db.deployments[deploymentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *deployment
	return &cp, nil
}

func (s *DeploymentStore) FindOpenByWorker(ctx context.Context, workerID id.WorkerID) (*deploymentmodels.Deployment, error) {
	defer s.db.enter(ctx)()
	for _, d := range s.db.deployments {
		if d.WorkerID == workerID && d.IsOpen() {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *DeploymentStore) Update(ctx context.Context, deployment *deploymentmodels.Deployment) error {
	defer s.db.enter(ctx)()
	if _, ok := s.db.deployments[deployment.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *deployment
	s.db.deployments[deployment.ID] = &cp
	return nil
}

// ---------------------------------------------------------------------------
// Permits
// ---------------------------------------------------------------------------

// PermitStore is the in-memory ports.PermitStore.
type PermitStore struct{ db *DB }

func (db *DB) Permits() *PermitStore { return &PermitStore{db: db} }

func (s *PermitStore) Create(ctx context.Context, permit *permitmodels.Permit) error {
	defer s.db.enter(ctx)()
	if _, ok := s.db.permits[permit.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *permit
	s.db.permits[permit.ID] = &cp
	return nil
}

func (s *PermitStore) FindActiveByDeployment(ctx context.Context, deploymentID id.DeploymentID) (*permitmodels.Permit, error) {
	defer s.db.enter(ctx)()
	for _, p := range s.db.permits {
		if p.DeploymentID == deploymentID && p.Status == permitmodels.StatusActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *PermitStore) Update(ctx context.Context, permit *permitmodels.Permit) error {
	defer s.db.enter(ctx)()
	if _, ok := s.db.permits[permit.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *permit
	s.db.permits[permit.ID] = &cp
	return nil
}

func (s *PermitStore) ListByDeployment(ctx context.Context, deploymentID id.DeploymentID) ([]*permitmodels.Permit, error) {
	defer s.db.enter(ctx)()
	var out []*permitmodels.Permit
	for _, p := range s.db.permits {
		if p.DeploymentID == deploymentID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssueDate.After(out[j].IssueDate) })
	return out, nil
}

func (s *PermitStore) ListActiveExpiringBefore(ctx context.Context, cutoff time.Time) ([]*permitmodels.Permit, error) {
	defer s.db.enter(ctx)()
	var out []*permitmodels.Permit
	for _, p := range s.db.permits {
		if p.Status == permitmodels.StatusActive && p.ExpiryDate.Before(cutoff) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiryDate.Before(out[j].ExpiryDate) })
	return out, nil
}

// ---------------------------------------------------------------------------
// Runaway records
// ---------------------------------------------------------------------------

// RunawayStore is the in-memory ports.RunawayStore.
type RunawayStore struct{ db *DB }

func (db *DB) Runaways() *RunawayStore { return &RunawayStore{db: db} }

func (s *RunawayStore) Create(ctx context.Context, record *runawaymodels.Record) error {
	defer s.db.enter(ctx)()
	for _, r := range s.db.runaways {
		if r.DeploymentID == record.DeploymentID && r.Status.IsOpen() {
			return fmt.Errorf("open runaway record exists for deployment %s: %w", record.DeploymentID, sentinel.ErrConflict)
		}
	}
	cp := *record
	s.db.runaways[record.ID] = &cp
	return nil
}

func (s *RunawayStore) FindByID(ctx context.Context, recordID id.RunawayID) (*runawaymodels.Record, error) {
	defer s.db.enter(ctx)()
	record, ok := s.db.runaways[recordID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *record
	return &cp, nil
}

func (s *RunawayStore) Update(ctx context.Context, record *runawaymodels.Record) error {
	defer s.db.enter(ctx)()
	if _, ok := s.db.runaways[record.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *record
	s.db.runaways[record.ID] = &cp
	return nil
}

func (s *RunawayStore) ListByDeployment(ctx context.Context, deploymentID id.DeploymentID) ([]*runawaymodels.Record, error) {
	defer s.db.enter(ctx)()
	var out []*runawaymodels.Record
	for _, r := range s.db.runaways {
		if r.DeploymentID == deploymentID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
