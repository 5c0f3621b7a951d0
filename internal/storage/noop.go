package storage

import (
	"context"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

// Store archives terminated calls
type Store interface {
	SaveCallRecord(ctx context.Context, record types.CallRecord) error
	GetCallRecords(ctx context.Context, dateKey string) ([]types.CallRecord, error)
	GetAgentCallsByDate(ctx context.Context, agentID, dateKey string) ([]types.CallRecord, error)
}

// NoopStore is a no-op implementation when DynamoDB is disabled
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) SaveCallRecord(_ context.Context, _ types.CallRecord) error { return nil }
func (s *NoopStore) GetCallRecords(_ context.Context, _ string) ([]types.CallRecord, error) {
	return nil, nil
}
func (s *NoopStore) GetAgentCallsByDate(_ context.Context, _, _ string) ([]types.CallRecord, error) {
	return nil, nil
}
