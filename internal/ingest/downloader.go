package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Downloader pulls sales exports from Google Drive into a local directory.
type Downloader struct {
	drive DriveFiles
	dir   string
}

// NewDownloader creates a new Downloader writing into dir.
func NewDownloader(drive DriveFiles, dir string) *Downloader {
	return &Downloader{drive: drive, dir: dir}
}

// DownloadFolder downloads all CSV and XLSX files from the given Drive folder
// and returns local CSV paths. XLSX files are converted and their temporary
// copy removed.
func (d *Downloader) DownloadFolder(ctx context.Context, folderID string) ([]string, error) {
	files, err := d.drive.ListFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}

	var localPaths []string
	for _, f := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !isSupported(f.Name) {
			continue
		}
		path, err := d.download(ctx, f)
		if err != nil {
			return nil, err
		}
		localPaths = append(localPaths, path)
	}

	return localPaths, nil
}

// DownloadFile downloads one Drive file and returns its local CSV path.
func (d *Downloader) DownloadFile(ctx context.Context, fileID string) (string, error) {
	f, err := d.drive.GetFile(ctx, fileID)
	if err != nil {
		return "", err
	}
	if !isSupported(f.Name) {
		return "", fmt.Errorf("unsupported file type: %s", f.Name)
	}
	return d.download(ctx, f)
}

func (d *Downloader) download(ctx context.Context, f *File) (string, error) {
	if d.dir == "" {
		return "", fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download dir: %w", err)
	}

	localPath := filepath.Join(d.dir, filepath.Base(f.Name))
	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}
	if err := d.drive.DownloadFile(ctx, f.ID, out); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to download %s: %w", f.Name, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", localPath, err)
	}

	if !isSpreadsheet(f.Name) {
		return localPath, nil
	}

	csvPath := csvPathFor(localPath)
	if err := convertXLSXToCSV(localPath, csvPath); err != nil {
		return "", fmt.Errorf("failed to convert %s to csv: %w", f.Name, err)
	}
	_ = os.Remove(localPath)
	return csvPath, nil
}
