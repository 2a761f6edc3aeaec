package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/andresuchdata/reorder-ai/internal/domain"
	"github.com/andresuchdata/reorder-ai/internal/forecast"
	"github.com/rs/zerolog/log"
)

const (
	modelsDir     = "models"
	latestObject  = "latest.json"
	snapshotStamp = "20060102T150405Z"
)

// ModelArchive keeps trained model snapshots in object storage so a fresh
// process can warm its model store without retraining.
type ModelArchive struct {
	store  ObjectStorage
	prefix string
}

// NewModelArchive creates an archive rooted at prefix inside the bucket.
func NewModelArchive(store ObjectStorage, prefix string) *ModelArchive {
	return &ModelArchive{
		store:  store,
		prefix: strings.Trim(prefix, "/"),
	}
}

// Save writes a timestamped snapshot and replaces the item's latest pointer.
func (a *ModelArchive) Save(ctx context.Context, model *forecast.TrainedModel) error {
	if model == nil {
		return errors.New("nil model")
	}

	payload, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("failed to encode model for item %d: %w", model.ItemID, err)
	}

	snapshot := a.itemKey(model.ItemID, model.Metrics.TrainedAt.UTC().Format(snapshotStamp)+".json")
	if err := a.store.UploadObject(ctx, snapshot, payload); err != nil {
		return err
	}
	if err := a.store.UploadObject(ctx, a.itemKey(model.ItemID, latestObject), payload); err != nil {
		return err
	}

	log.Debug().Int64("item_id", model.ItemID).Str("key", snapshot).Msg("archive: model saved")
	return nil
}

// LoadLatest reads the most recent snapshot for an item. A missing snapshot
// yields domain.ErrModelNotTrained.
func (a *ModelArchive) LoadLatest(ctx context.Context, itemID int64) (*forecast.TrainedModel, error) {
	data, err := a.store.ReadObject(ctx, a.itemKey(itemID, latestObject))
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, fmt.Errorf("item %d: %w", itemID, domain.ErrModelNotTrained)
		}
		return nil, err
	}
	return decodeModel(data)
}

// LoadAll reads every item's latest snapshot. Unreadable snapshots are skipped.
func (a *ModelArchive) LoadAll(ctx context.Context) ([]*forecast.TrainedModel, error) {
	objects, err := a.store.ListObjects(ctx, a.root()+"/")
	if err != nil {
		return nil, err
	}

	models := make([]*forecast.TrainedModel, 0)
	for _, object := range objects {
		if path.Base(object.Key) != latestObject {
			continue
		}
		data, err := a.store.ReadObject(ctx, object.Key)
		if err != nil {
			return nil, err
		}
		model, err := decodeModel(data)
		if err != nil {
			log.Warn().Err(err).Str("key", object.Key).Msg("archive: skipping unreadable snapshot")
			continue
		}
		models = append(models, model)
	}
	return models, nil
}

// root is <prefix>/models, or the prefix itself when it already ends in models.
func (a *ModelArchive) root() string {
	switch {
	case a.prefix == "":
		return modelsDir
	case path.Base(a.prefix) == modelsDir:
		return a.prefix
	default:
		return path.Join(a.prefix, modelsDir)
	}
}

func (a *ModelArchive) itemKey(itemID int64, name string) string {
	return path.Join(a.root(), strconv.FormatInt(itemID, 10), name)
}

func decodeModel(data []byte) (*forecast.TrainedModel, error) {
	var model forecast.TrainedModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if model.ItemID == 0 {
		return nil, errors.New("incomplete model snapshot: missing item id")
	}
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("incomplete model snapshot: %w", err)
	}
	return &model, nil
}
