package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/zlnvch/notesync/models"
)

type MockPersister struct {
	mock.Mock
}

func (m *MockPersister) Load(ctx context.Context) (models.Session, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Session), args.Error(1)
}

func (m *MockPersister) Save(ctx context.Context, sess models.Session) error {
	args := m.Called(ctx, sess)
	return args.Error(0)
}

func (m *MockPersister) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
