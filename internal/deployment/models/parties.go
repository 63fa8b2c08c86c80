package models

import (
	"time"

	id "workpermit/pkg/domain"
)

// Worker is the migrant worker record. The engine reads it (gender for
// sub-quota checks, existence for placement) but never mutates it; worker
// CRM lives outside this core.
type Worker struct {
	ID        id.WorkerID `json:"id"`
	FullName  string      `json:"full_name"`
	Gender    id.Gender   `json:"gender"`
	CreatedAt time.Time   `json:"created_at"`
}

// Employer is the hiring organization. Read-only here; used for
// letter-ownership checks during placement.
type Employer struct {
	ID        id.EmployerID `json:"id"`
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"created_at"`
}
