package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/andresuchdata/reorder-ai/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type recordingSales struct {
	mu      sync.Mutex
	batches [][]domain.SaleEvent
	err     error
}

func (r *recordingSales) ListConfirmedSales(ctx context.Context, itemID int64, from, to time.Time) ([]domain.SaleEvent, error) {
	return nil, nil
}

func (r *recordingSales) InsertSales(ctx context.Context, events []domain.SaleEvent) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, events)
	return len(events), nil
}

// fakeDrive serves files from a local directory keyed by file ID.
type fakeDrive struct {
	files map[string]*File
	paths map[string]string
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{files: map[string]*File{}, paths: map[string]string{}}
}

func (d *fakeDrive) add(id, name, localPath string) {
	d.files[id] = &File{ID: id, Name: name}
	d.paths[id] = localPath
}

func (d *fakeDrive) ListFiles(ctx context.Context, folderID string) ([]*File, error) {
	var out []*File
	for _, id := range []string{"a", "b", "c", "d"} {
		if f, ok := d.files[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (d *fakeDrive) GetFile(ctx context.Context, fileID string) (*File, error) {
	f, ok := d.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s not found", fileID)
	}
	return f, nil
}

func (d *fakeDrive) DownloadFile(ctx context.Context, fileID string, w io.Writer) error {
	src, err := os.Open(d.paths[fileID])
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(w, src)
	return err
}

func (d *fakeDrive) FindFolderByPath(ctx context.Context, path string) (string, error) {
	return "root", nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeWorkbook(t *testing.T, dir, name string, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &cells))
	}
	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestImporter_ImportFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "sales.csv", "item_id,quantity,timestamp,transaction_type\n1,2,2026-10-01,SALE\n1,9,2026-10-01,RESTOCK\n")
	sales := &recordingSales{}

	result, err := NewImporter(sales, nil, dir).ImportFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Inserted)
	require.Len(t, sales.batches, 1)
	assert.Equal(t, 2, sales.batches[0][0].Quantity)
}

func TestImporter_ImportFileSpreadsheet(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkbook(t, dir, "sales.xlsx", [][]string{
		{"item_id", "quantity", "timestamp"},
		{"5", "4", "2026-10-02"},
		{"6", "1", "2026-10-03 09:15:00"},
	})
	sales := &recordingSales{}

	result, err := NewImporter(sales, nil, dir).ImportFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, []string{filepath.Join(dir, "sales.csv")}, result.Files)
	assert.Equal(t, int64(6), sales.batches[0][1].ItemID)
}

func TestImporter_RejectsUnsupportedAndBadFiles(t *testing.T) {
	dir := t.TempDir()
	imp := NewImporter(&recordingSales{}, nil, dir)

	_, err := imp.ImportFile(context.Background(), writeFile(t, dir, "notes.txt", "hello"))
	assert.ErrorContains(t, err, "unsupported file type")

	_, err = imp.ImportFile(context.Background(), writeFile(t, dir, "bad.csv", "item_id,quantity,timestamp\n1,-2,2026-10-01\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestImporter_InsertFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "sales.csv", "item_id,quantity,timestamp\n1,2,2026-10-01\n")

	_, err := NewImporter(&recordingSales{err: errors.New("tx aborted")}, nil, dir).ImportFile(context.Background(), path)
	assert.ErrorContains(t, err, "tx aborted")
}

func TestImporter_DriveNotConfigured(t *testing.T) {
	imp := NewImporter(&recordingSales{}, nil, t.TempDir())

	_, err := imp.ImportDriveFile(context.Background(), "x")
	assert.ErrorIs(t, err, ErrDriveNotConfigured)
	_, err = imp.ImportDriveFolder(context.Background(), "x")
	assert.ErrorIs(t, err, ErrDriveNotConfigured)
	assert.Nil(t, imp.Drive())
}

func TestImporter_ImportDriveFolderInOneBatch(t *testing.T) {
	src := t.TempDir()
	drive := newFakeDrive()
	drive.add("a", "week1.csv", writeFile(t, src, "week1.csv", "item_id,quantity,timestamp\n1,2,2026-10-01\n"))
	drive.add("b", "readme.pdf", writeFile(t, src, "readme.pdf", "ignored"))
	drive.add("c", "week2.xlsx", writeWorkbook(t, src, "week2.xlsx", [][]string{
		{"item_id", "quantity", "timestamp"},
		{"1", "3", "2026-10-08"},
	}))
	sales := &recordingSales{}
	uploads := t.TempDir()

	result, err := NewImporter(sales, drive, uploads).ImportDriveFolder(context.Background(), "folder")
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(uploads, "week1.csv"), filepath.Join(uploads, "week2.csv")}, result.Files)
	assert.Equal(t, 2, result.Inserted)
	require.Len(t, sales.batches, 1)

	_, err = os.Stat(filepath.Join(uploads, "week2.xlsx"))
	assert.True(t, os.IsNotExist(err), "temporary workbook is removed")
}

func TestImporter_ImportDriveFile(t *testing.T) {
	src := t.TempDir()
	drive := newFakeDrive()
	drive.add("a", "day.csv", writeFile(t, src, "day.csv", "item_id,quantity,timestamp\n2,7,2026-10-01\n"))
	drive.add("b", "image.png", writeFile(t, src, "image.png", "png"))
	imp := NewImporter(&recordingSales{}, drive, t.TempDir())

	result, err := imp.ImportDriveFile(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)

	_, err = imp.ImportDriveFile(context.Background(), "b")
	assert.ErrorContains(t, err, "unsupported file type")
}
