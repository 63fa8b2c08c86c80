// Package memdb is the in-memory database behind all memory stores. The
// quota usage predicate joins deployments and runaway records, so the memory
// implementations share one state instead of keeping per-entity silos.
//
// Transactions are serialized by a single mutex, which gives the same
// observable semantics as Postgres row locking for the properties this
// engine relies on: two concurrent placements against one letter never
// interleave between lock and commit.
package memdb

import (
	"context"
	"sync"

	deploymentmodels "workpermit/internal/deployment/models"
	permitmodels "workpermit/internal/permit/models"
	quotamodels "workpermit/internal/quota/models"
	runawaymodels "workpermit/internal/runaway/models"
	id "workpermit/pkg/domain"
	dErrors "workpermit/pkg/domain-errors"
)

type txKey struct{}

// DB holds all entities. Zero value is not usable; construct with New.
type DB struct {
	mu sync.Mutex

	letters     map[id.LetterID]*quotamodels.RecruitmentLetter
	deployments map[id.DeploymentID]*deploymentmodels.Deployment
	permits     map[id.PermitID]*permitmodels.Permit
	runaways    map[id.RunawayID]*runawaymodels.Record
	workers     map[id.WorkerID]*deploymentmodels.Worker
	employers   map[id.EmployerID]*deploymentmodels.Employer
}

// New constructs an empty in-memory database.
func New() *DB {
	return &DB{
		letters:     make(map[id.LetterID]*quotamodels.RecruitmentLetter),
		deployments: make(map[id.DeploymentID]*deploymentmodels.Deployment),
		permits:     make(map[id.PermitID]*permitmodels.Permit),
		runaways:    make(map[id.RunawayID]*runawaymodels.Record),
		workers:     make(map[id.WorkerID]*deploymentmodels.Worker),
		employers:   make(map[id.EmployerID]*deploymentmodels.Employer),
	}
}

// RunInTx serializes the whole function under the database mutex and marks
// the context transactional so lock-requiring store methods accept it.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	// Nested calls join the caller's transaction instead of re-locking.
	if db.inTx(ctx) {
		return fn(ctx)
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	snap := db.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, db)); err != nil {
		db.restore(snap)
		return err
	}
	return nil
}

// snapshot copies every table so a failed transaction can roll back.
// Rows are copied by value; stores never mutate a row in place.
type snapshot struct {
	letters     map[id.LetterID]*quotamodels.RecruitmentLetter
	deployments map[id.DeploymentID]*deploymentmodels.Deployment
	permits     map[id.PermitID]*permitmodels.Permit
	runaways    map[id.RunawayID]*runawaymodels.Record
	workers     map[id.WorkerID]*deploymentmodels.Worker
	employers   map[id.EmployerID]*deploymentmodels.Employer
}

func (db *DB) snapshot() snapshot {
	return snapshot{
		letters:     copyTable(db.letters),
		deployments: copyTable(db.deployments),
		permits:     copyTable(db.permits),
		runaways:    copyTable(db.runaways),
		workers:     copyTable(db.workers),
		employers:   copyTable(db.employers),
	}
}

func (db *DB) restore(s snapshot) {
	db.letters = s.letters
	db.deployments = s.deployments
	db.permits = s.permits
	db.runaways = s.runaways
	db.workers = s.workers
	db.employers = s.employers
}

func copyTable[K comparable, V any](src map[K]*V) map[K]*V {
	dst := make(map[K]*V, len(src))
	for k, v := range src {
		cp := *v
		dst[k] = &cp
	}
	return dst
}

// inTx reports whether ctx was produced by this database's RunInTx.
func (db *DB) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*DB)
	return ok && owner == db
}

// enter takes the database mutex for a standalone read/write unless the
// context already runs inside a transaction (the mutex is then held by
// RunInTx). Returns the matching release function.
func (db *DB) enter(ctx context.Context) func() {
	if db.inTx(ctx) {
		return func() {}
	}
	db.mu.Lock()
	return db.mu.Unlock
}

// requireTx fails with a precondition error when ctx is not transactional.
// Mirrors the Postgres stores' guard on lock-acquiring statements.
func (db *DB) requireTx(ctx context.Context) error {
	if !db.inTx(ctx) {
		return dErrors.New(dErrors.CodePrecondition, "must be called within a transaction")
	}
	return nil
}

// SeedWorker inserts a worker record; test and fixture helper.
func (db *DB) SeedWorker(w *deploymentmodels.Worker) {
	db.mu.Lock()
	defer db.mu.Unlock()
	cp := *w
	db.workers[w.ID] = &cp
}

// SeedEmployer inserts an employer record; test and fixture helper.
func (db *DB) SeedEmployer(e *deploymentmodels.Employer) {
	db.mu.Lock()
	defer db.mu.Unlock()
	cp := *e
	db.employers[e.ID] = &cp
}
