// Package mocks 提供 testify/mock 实现，供 service 及上层测试使用。
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// Notifier 是 service.Notifier 的 Mock 实现
type Notifier struct {
	mock.Mock
}

func (m *Notifier) MemberAdded(ctx context.Context, userID, roomID uint) error {
	args := m.Called(ctx, userID, roomID)
	return args.Error(0)
}

func (m *Notifier) DiceRolled(ctx context.Context, roomID, userID uint, dice int) error {
	args := m.Called(ctx, roomID, userID, dice)
	return args.Error(0)
}
