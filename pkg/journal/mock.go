package journal

import (
	"context"
	"time"
)

var _ Journaler = &MockJournal{}

type MockJournal struct {
	RecordMock func(ctx context.Context, entry *Entry) error
	GetMock    func(ctx context.Context, id string) (*Entry, error)
	ListMock   func(ctx context.Context, limit int) ([]Entry, error)
	PruneMock  func(ctx context.Context, before time.Time) (int64, error)
	CloseMock  func() error
}

func (m *MockJournal) Record(ctx context.Context, entry *Entry) error {
	if m.RecordMock != nil {
		return m.RecordMock(ctx, entry)
	}
	panic("RecordMock not implemented")
}

func (m *MockJournal) Get(ctx context.Context, id string) (*Entry, error) {
	if m.GetMock != nil {
		return m.GetMock(ctx, id)
	}
	panic("GetMock not implemented")
}

func (m *MockJournal) List(ctx context.Context, limit int) ([]Entry, error) {
	if m.ListMock != nil {
		return m.ListMock(ctx, limit)
	}
	panic("ListMock not implemented")
}

func (m *MockJournal) Prune(ctx context.Context, before time.Time) (int64, error) {
	if m.PruneMock != nil {
		return m.PruneMock(ctx, before)
	}
	panic("PruneMock not implemented")
}

func (m *MockJournal) Close() error {
	if m.CloseMock != nil {
		return m.CloseMock()
	}
	panic("CloseMock not implemented")
}
