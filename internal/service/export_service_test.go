package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "useradmin/internal/errors"
	"useradmin/internal/logger"
	"useradmin/internal/model"
)

func TestExportService_Export(t *testing.T) {
	users := []model.User{
		{ID: 1, Username: "admin0", Email: "admin0@admin0.admin0", Roles: model.Roles{model.RoleAdmin}},
		{ID: 2, Username: "moderator0", Email: "moderator0@moderator0.moderator0", Roles: model.Roles{model.RoleModerator}},
		{ID: 3, Username: "multi", Email: "multi@example.com", Roles: model.Roles{model.RoleModerator, model.RoleUser}},
	}
	mockRepo := new(MockUserRepository)
	mockRepo.On("List", mock.Anything).Return(users, nil)

	dir := t.TempDir()
	data, err := NewExportService(mockRepo, dir, logger.Discard()).Export(context.Background())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, len(users), "one row per user and no header")
	assert.Equal(t, []string{"admin0", "admin0@admin0.admin0", "ROLE_ADMIN"}, rows[0])
	assert.Equal(t, []string{"moderator0", "moderator0@moderator0.moderator0", "ROLE_MODERATOR"}, rows[1])
	assert.Equal(t, []string{"multi", "multi@example.com", "ROLE_MODERATOR,ROLE_USER"}, rows[2])

	// scratch files are removed
	leftovers, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestExportService_EmptyStore(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockRepo.On("List", mock.Anything).Return([]model.User{}, nil)

	data, err := NewExportService(mockRepo, t.TempDir(), logger.Discard()).Export(context.Background())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestExportService_WriteFailure(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockRepo.On("List", mock.Anything).Return([]model.User{{Username: "u", Email: "e", Roles: model.Roles{model.RoleUser}}}, nil)

	missing := filepath.Join(t.TempDir(), "does-not-exist")
	_, err := NewExportService(mockRepo, missing, logger.Discard()).Export(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrExportFailed)
}

func TestExportService_StoreFailure(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockRepo.On("List", mock.Anything).Return(nil, fmt.Errorf("db down"))

	_, err := NewExportService(mockRepo, t.TempDir(), logger.Discard()).Export(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrExportFailed))
}
