package plan

import (
	"context"
	"sync"
	"time"
)

// Audit outcomes.
const (
	AuditAccepted = "accepted"
	AuditRejected = "rejected"
)

// AuditEvent records one plan validation outcome.
type AuditEvent struct {
	PlanID    string    `json:"plan_id"`
	Task      string    `json:"task,omitempty"`
	StepCount int       `json:"step_count"`
	Outcome   string    `json:"outcome"`
	ErrorCode string    `json:"error_code,omitempty"`
	StepIndex int       `json:"step_index"` // -1 when no step is at fault
	CreatedAt time.Time `json:"created_at"`
}

// AuditStore persists plan validation outcomes.
type AuditStore interface {
	Record(ctx context.Context, event AuditEvent) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)
}

// AuditFilter limits audit event queries.
type AuditFilter struct {
	PlanID    string
	Outcome   string
	ErrorCode string
	Limit     int
}

// MemoryAuditStore keeps audit events in memory.
type MemoryAuditStore struct {
	mu     sync.Mutex
	events []AuditEvent
}

// NewMemoryAuditStore returns an in-memory audit store.
func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

// Record appends an audit event.
func (s *MemoryAuditStore) Record(_ context.Context, event AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.CreatedAt = normalizeAuditTime(event.CreatedAt)
	s.events = append(s.events, event)
	return nil
}

// List returns filtered audit events in record order.
func (s *MemoryAuditStore) List(_ context.Context, filter AuditFilter) ([]AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEvent, 0, len(s.events))
	for _, ev := range s.events {
		if filter.PlanID != "" && ev.PlanID != filter.PlanID {
			continue
		}
		if filter.Outcome != "" && ev.Outcome != filter.Outcome {
			continue
		}
		if filter.ErrorCode != "" && ev.ErrorCode != filter.ErrorCode {
			continue
		}
		out = append(out, ev)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// normalizeAuditTime ensures timestamps are in UTC.
func normalizeAuditTime(value time.Time) time.Time {
	if value.IsZero() {
		return value
	}
	return value.UTC()
}
