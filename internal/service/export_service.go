package service

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/gommon/log"
	"github.com/xuri/excelize/v2"

	apperrors "useradmin/internal/errors"
	"useradmin/internal/repository"
)

// ExportService renders every user into an xlsx workbook.
type ExportService interface {
	Export(ctx context.Context) ([]byte, error)
}

type exportService struct {
	repo   repository.UserRepository
	dir    string
	logger *log.Logger
}

// NewExportService creates an export service writing its scratch files to dir.
func NewExportService(repo repository.UserRepository, dir string, logger *log.Logger) ExportService {
	if dir == "" {
		dir = os.TempDir()
	}
	return &exportService{repo: repo, dir: dir, logger: logger}
}

// Export writes one row per user, starting on row 1 without a header:
// A = username, B = email, C = comma-joined roles.
func (s *exportService) Export(ctx context.Context) ([]byte, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, user := range users {
		row := i + 1
		values := []interface{}{user.Username, user.Email, user.Roles.String()}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	data, err := s.writeThroughTempFile(f)
	if err != nil {
		s.logger.Errorf("export of %d users failed: %v", len(users), err)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExportFailed, err)
	}
	s.logger.Debugf("exported %d users (%d bytes)", len(users), len(data))
	return data, nil
}

func (s *exportService) writeThroughTempFile(f *excelize.File) ([]byte, error) {
	tmp, err := os.CreateTemp(s.dir, "users-*.xlsx")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	return os.ReadFile(tmp.Name())
}
