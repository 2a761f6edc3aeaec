package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/andresuchdata/reorder-ai/internal/domain"
	"github.com/andresuchdata/reorder-ai/internal/repository"
	"github.com/rs/zerolog/log"
)

// ErrDriveNotConfigured is returned by Drive imports when no credentials were given.
var ErrDriveNotConfigured = errors.New("google drive is not configured")

// ImportResult summarizes one import.
type ImportResult struct {
	Files    []string `json:"files"`
	Rows     int      `json:"rows"`
	Skipped  int      `json:"skipped"`
	Inserted int      `json:"inserted"`
}

// Importer parses sales exports and writes them through the sales repository.
type Importer struct {
	sales      repository.SalesRepository
	drive      DriveFiles
	downloader *Downloader
}

// NewImporter creates an importer. drive may be nil, which disables Drive imports.
func NewImporter(sales repository.SalesRepository, drive DriveFiles, uploadDir string) *Importer {
	imp := &Importer{sales: sales, drive: drive}
	if drive != nil {
		imp.downloader = NewDownloader(drive, uploadDir)
	}
	return imp
}

// Drive exposes the Drive client for listing, or nil when not configured.
func (i *Importer) Drive() DriveFiles {
	return i.drive
}

// ImportFile imports a local CSV or XLSX export.
func (i *Importer) ImportFile(ctx context.Context, path string) (*ImportResult, error) {
	if !isSupported(path) {
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
	if isSpreadsheet(path) {
		csvPath := csvPathFor(path)
		if err := convertXLSXToCSV(path, csvPath); err != nil {
			return nil, err
		}
		path = csvPath
	}
	return i.importPaths(ctx, []string{path})
}

// ImportDriveFile downloads one Drive file and imports it.
func (i *Importer) ImportDriveFile(ctx context.Context, fileID string) (*ImportResult, error) {
	if i.downloader == nil {
		return nil, ErrDriveNotConfigured
	}
	path, err := i.downloader.DownloadFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return i.importPaths(ctx, []string{path})
}

// ImportDriveFolder downloads every export in a Drive folder and imports them
// in a single batch.
func (i *Importer) ImportDriveFolder(ctx context.Context, folderID string) (*ImportResult, error) {
	if i.downloader == nil {
		return nil, ErrDriveNotConfigured
	}
	paths, err := i.downloader.DownloadFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}
	return i.importPaths(ctx, paths)
}

func (i *Importer) importPaths(ctx context.Context, paths []string) (*ImportResult, error) {
	result := &ImportResult{Files: paths}

	var events []domain.SaleEvent
	for _, path := range paths {
		batch, err := parseFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		result.Rows += batch.Rows
		result.Skipped += batch.Skipped
		events = append(events, batch.Events...)
	}

	if len(events) > 0 {
		inserted, err := i.sales.InsertSales(ctx, events)
		if err != nil {
			return nil, fmt.Errorf("failed to insert sales: %w", err)
		}
		result.Inserted = inserted
	}

	log.Info().
		Strs("files", paths).
		Int("rows", result.Rows).
		Int("skipped", result.Skipped).
		Int("inserted", result.Inserted).
		Msg("ingest: sales imported")

	return result, nil
}

func parseFile(path string) (*SalesBatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open: %w", err)
	}
	defer f.Close()
	return ParseSalesCSV(f)
}
