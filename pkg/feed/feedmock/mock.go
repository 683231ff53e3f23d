package feedmock

import (
	"context"

	"github.com/gridglance/gridglance/pkg/feed"
	"github.com/gridglance/gridglance/pkg/types"
	"github.com/stretchr/testify/mock"
)

// MockFetcher records calls to Fetch and returns the configured records.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, src feed.Source) ([]types.IntervalRecord, error) {
	args := m.Called(ctx, src.Name)
	var records []types.IntervalRecord
	if r := args.Get(0); r != nil {
		records = r.([]types.IntervalRecord)
	}
	return records, args.Error(1)
}
