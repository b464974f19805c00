package checkpoint

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mcdev12/excon/go/internal/models"
	"github.com/rs/zerolog/log"
)

// SaveSnapshot overwrites key with the JSON form of snap. Failures are logged and
// reported through the return value only; they never interrupt the caller.
func SaveSnapshot(ctx context.Context, kv KV, origin, key string, snap models.DashboardSnapshot) bool {
	data, err := json.Marshal(snap)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to encode snapshot")
		return false
	}
	if err := kv.Set(ctx, origin, key, data); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to save snapshot")
		return false
	}
	return true
}

// ReadSnapshot returns the snapshot stored at key, or nil when it is missing, unreadable
// or corrupt.
func ReadSnapshot(ctx context.Context, kv KV, key string) *models.DashboardSnapshot {
	data, err := kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Str("key", key).Msg("failed to read snapshot")
		}
		return nil
	}
	var snap models.DashboardSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("ignoring corrupt snapshot")
		return nil
	}
	if snap.Injects == nil {
		snap.Injects = []models.Inject{}
	}
	if snap.Resources == nil {
		snap.Resources = []models.Resource{}
	}
	return &snap
}
