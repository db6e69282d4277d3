package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/lachelier/sugoroku/internal/repository"
)

// Store 是 repository.Store 的 Mock 实现，用于模拟存储不可用。
type Store struct {
	mock.Mock
}

func (m *Store) Repos() repository.Repositories {
	args := m.Called()
	return args.Get(0).(repository.Repositories)
}

func (m *Store) Atomic(ctx context.Context, fn func(r repository.Repositories) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}
