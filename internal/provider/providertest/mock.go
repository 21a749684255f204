// Package providertest has a testify mock of provider.Provider.
package providertest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"musicroom-sync-client/internal/provider"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) ListDevices(ctx context.Context) ([]provider.Device, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]provider.Device), args.Error(1)
}

func (m *MockProvider) PlaybackState(ctx context.Context) (provider.PlaybackState, error) {
	args := m.Called(ctx)
	return args.Get(0).(provider.PlaybackState), args.Error(1)
}

func (m *MockProvider) StartResume(ctx context.Context, req provider.PlayRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockProvider) Pause(ctx context.Context, deviceID string) error {
	args := m.Called(ctx, deviceID)
	return args.Error(0)
}

func (m *MockProvider) SkipNext(ctx context.Context, deviceID string) error {
	args := m.Called(ctx, deviceID)
	return args.Error(0)
}

func (m *MockProvider) SkipPrevious(ctx context.Context, deviceID string) error {
	args := m.Called(ctx, deviceID)
	return args.Error(0)
}

func (m *MockProvider) TransferPlayback(ctx context.Context, deviceID string, play bool) error {
	args := m.Called(ctx, deviceID, play)
	return args.Error(0)
}

func (m *MockProvider) Tracks(ctx context.Context, ids ...string) ([]provider.Track, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]provider.Track), args.Error(1)
}
