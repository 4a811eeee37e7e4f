package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/rs/zerolog/log"

	"scanner/internal/model"
)

// SnapshotArchive copies every status snapshot to object storage as JSON
type SnapshotArchive struct {
	files  FileService
	prefix string
}

func NewSnapshotArchive(files FileService, prefix string) *SnapshotArchive {
	return &SnapshotArchive{files: files, prefix: prefix}
}

// SnapshotKey returns <prefix>/YYYY/MM/DD/<unix>-<id>.json, dated in UTC
func SnapshotKey(prefix string, snapshot model.StatusSnapshot) string {
	ts := snapshot.Timestamp.UTC()
	name := fmt.Sprintf("%d-%s.json", ts.Unix(), snapshot.ID)
	return path.Join(prefix, ts.Format("2006/01/02"), name)
}

func (a *SnapshotArchive) PublishSnapshot(ctx context.Context, snapshot model.StatusSnapshot) error {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	key := SnapshotKey(a.prefix, snapshot)
	url, err := a.files.UploadFile(ctx, key, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("upload snapshot %s: %w", key, err)
	}

	log.Debug().Str("url", url).Int("player_count", snapshot.OnlineCount).Msg("Archived status snapshot")
	return nil
}
