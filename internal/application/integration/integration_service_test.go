package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wms/shopsync/internal/domain/integration"
	"go.uber.org/zap"
)

func TestIntegrationService_Disconnect(t *testing.T) {
	tests := []struct {
		name      string
		clear     bool
		wantToken string
	}{
		{name: "keeps token", clear: false, wantToken: "sealed-token"},
		{name: "clears token", clear: true, wantToken: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := new(MockIntegrationRepository)
			service := NewIntegrationService(repo, newSyncLogger(new(MockSyncLogRepository)), zap.NewNop())

			in := newActiveIntegration()
			in.Settings.ClearTokenOnDisconnect = tt.clear
			repo.On("FindByID", ctx, in.ID).Return(in, nil)
			repo.On("Save", ctx, in).Return(nil)

			got, err := service.Disconnect(ctx, in.ID)

			require.NoError(t, err)
			assert.Equal(t, integration.IntegrationStatusInactive, got.Status)
			assert.Equal(t, tt.wantToken, got.AccessTokenEncrypted)
			repo.AssertExpectations(t)
		})
	}
}

func TestIntegrationService_UpdateSettings_RejectsInvalid(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntegrationRepository)
	service := NewIntegrationService(repo, newSyncLogger(new(MockSyncLogRepository)), zap.NewNop())

	in := newActiveIntegration()
	repo.On("FindByID", ctx, in.ID).Return(in, nil)

	settings := integration.DefaultSettings()
	settings.InventoryBuffer = -1
	_, err := service.UpdateSettings(ctx, in.ID, settings)

	assert.ErrorIs(t, err, integration.ErrSettingsInvalid)
	repo.AssertNotCalled(t, "UpdateSettings", mock.Anything, mock.Anything, mock.Anything)
}

func TestIntegrationService_ListSyncLogs_ClampsPageSize(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntegrationRepository)
	logs := new(MockSyncLogRepository)
	service := NewIntegrationService(repo, NewSyncLogger(logs, zap.NewNop()), zap.NewNop())

	id := uuid.New()
	repo.On("FindByID", ctx, id).Return(&integration.Integration{ID: id}, nil)
	logs.On("FindByIntegration", ctx, id, integration.SyncLogFilter{Page: 1, PageSize: 50}).
		Return([]integration.SyncLogEntry{{ID: uuid.New()}}, int64(1), nil)

	entries, total, err := service.ListSyncLogs(ctx, id, integration.SyncLogFilter{PageSize: 1000})

	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, int64(1), total)
}
