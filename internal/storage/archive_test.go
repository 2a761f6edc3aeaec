package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andresuchdata/reorder-ai/internal/config"
	"github.com/andresuchdata/reorder-ai/internal/domain"
	"github.com/andresuchdata/reorder-ai/internal/forecast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: map[string][]byte{}}
}

func (m *memoryObjects) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memoryObjects) DownloadObject(ctx context.Context, key, destPath string) error {
	return errors.New("not supported")
}

func (m *memoryObjects) ReadObject(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return data, nil
}

func (m *memoryObjects) UploadObject(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

var archiveNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func trainedModel(t *testing.T, itemID int64) *forecast.TrainedModel {
	t.Helper()
	var events []domain.SaleEvent
	for i := 0; i < 60; i++ {
		events = append(events, domain.SaleEvent{
			ItemID:           itemID,
			Quantity:         2 + i%3,
			Timestamp:        archiveNow.AddDate(0, 0, -i),
			PaymentConfirmed: true,
		})
	}
	model, err := forecast.Train(itemID, events, archiveNow, forecast.DefaultConfig())
	require.NoError(t, err)
	return model
}

func TestModelArchive_SaveWritesSnapshotAndLatest(t *testing.T) {
	objects := newMemoryObjects()
	archive := NewModelArchive(objects, "/reorder/")
	model := trainedModel(t, 7)

	require.NoError(t, archive.Save(context.Background(), model))

	keys, err := objects.ListObjects(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, keys, 2)

	stamp := model.Metrics.TrainedAt.UTC().Format(snapshotStamp)
	assert.Equal(t, "reorder/models/7/"+stamp+".json", keys[0].Key)
	assert.Equal(t, "reorder/models/7/latest.json", keys[1].Key)
}

func TestModelArchive_KeyLayout(t *testing.T) {
	cases := []struct {
		prefix string
		want   string
	}{
		{"", "models/7/latest.json"},
		{"models", "models/7/latest.json"},
		{"/reorder/models/", "reorder/models/7/latest.json"},
		{"reorder", "reorder/models/7/latest.json"},
	}

	for _, tc := range cases {
		t.Run(tc.prefix, func(t *testing.T) {
			objects := newMemoryObjects()
			archive := NewModelArchive(objects, tc.prefix)
			require.NoError(t, archive.Save(context.Background(), trainedModel(t, 7)))

			_, err := objects.ReadObject(context.Background(), tc.want)
			require.NoError(t, err)

			loaded, err := archive.LoadAll(context.Background())
			require.NoError(t, err)
			require.Len(t, loaded, 1)
		})
	}
}

func TestModelArchive_LoadLatestForecastsLikeTheOriginal(t *testing.T) {
	archive := NewModelArchive(newMemoryObjects(), "")
	model := trainedModel(t, 3)
	require.NoError(t, archive.Save(context.Background(), model))

	loaded, err := archive.LoadLatest(context.Background(), 3)
	require.NoError(t, err)

	want, err := forecast.Project(model, archiveNow, 7)
	require.NoError(t, err)
	got, err := forecast.Project(loaded, archiveNow, 7)
	require.NoError(t, err)
	assert.Equal(t, want.Predictions, got.Predictions)
	assert.Equal(t, want.Summary, got.Summary)
}

func TestModelArchive_LoadLatestMissing(t *testing.T) {
	archive := NewModelArchive(newMemoryObjects(), "")

	_, err := archive.LoadLatest(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrModelNotTrained)
}

func TestModelArchive_LoadAllSkipsHistoryAndBrokenSnapshots(t *testing.T) {
	objects := newMemoryObjects()
	archive := NewModelArchive(objects, "")
	require.NoError(t, archive.Save(context.Background(), trainedModel(t, 1)))
	require.NoError(t, archive.Save(context.Background(), trainedModel(t, 2)))
	require.NoError(t, objects.UploadObject(context.Background(), "models/9/latest.json", []byte("{not json")))

	// parameters that do not line up with the feature list
	broken := trainedModel(t, 5)
	broken.Regression.Coefficients = broken.Regression.Coefficients[:2]
	payload, err := json.Marshal(broken)
	require.NoError(t, err)
	require.NoError(t, objects.UploadObject(context.Background(), "models/5/latest.json", payload))

	models, err := archive.LoadAll(context.Background())
	require.NoError(t, err)

	ids := make([]int64, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ItemID)
	}
	assert.ElementsMatch(t, []int64{1, 2}, ids)
}

func TestModelArchive_LoadLatestRejectsMalformedSnapshot(t *testing.T) {
	objects := newMemoryObjects()
	archive := NewModelArchive(objects, "")

	model := trainedModel(t, 4)
	model.Scaler.Mean = model.Scaler.Mean[:1]
	payload, err := json.Marshal(model)
	require.NoError(t, err)
	require.NoError(t, objects.UploadObject(context.Background(), "models/4/latest.json", payload))

	_, err = archive.LoadLatest(context.Background(), 4)
	assert.ErrorIs(t, err, forecast.ErrMalformedModel)
}

func TestNewMinioClient_Validation(t *testing.T) {
	_, err := NewMinioClient(configWith("", "a", "s", "b"))
	assert.ErrorContains(t, err, "endpoint")

	_, err = NewMinioClient(configWith("localhost:9000", "", "s", "b"))
	assert.ErrorContains(t, err, "credentials")

	_, err = NewMinioClient(configWith("localhost:9000", "a", "s", ""))
	assert.ErrorContains(t, err, "bucket")

	client, err := NewMinioClient(configWith("http://localhost:9000", "a", "s", "b"))
	require.NoError(t, err)
	assert.Equal(t, "b", client.bucket)
}

func configWith(endpoint, access, secret, bucket string) config.StorageConfig {
	return config.StorageConfig{
		Endpoint:  endpoint,
		AccessKey: access,
		SecretKey: secret,
		Bucket:    bucket,
	}
}
