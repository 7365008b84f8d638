package assets

import (
	"context"
	"drawsync-server/core"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

const metaExt = ".meta"

// Store is content-addressed binary blob storage keyed by a caller-supplied
// upload id. Keys are sanitized before touching the filesystem; uploads are
// write-once.
type Store struct {
	basePath string
}

func NewStore(basePath string) *Store {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		logrus.WithError(err).Fatal("Failed to create asset storage directory")
	}
	return &Store{basePath: basePath}
}

func (s *Store) blobPath(uploadID string) string {
	return filepath.Join(s.basePath, core.SanitizeKey(uploadID))
}

// Upload stores a new asset under uploadID. It returns ErrInvalidAsset for a
// non-media content type or an empty body, and ErrConflict when the key is
// already taken. The create is exclusive, so concurrent uploads to one key
// yield exactly one success.
func (s *Store) Upload(ctx context.Context, uploadID, contentType string, data []byte, headers http.Header) error {
	log := logrus.WithFields(logrus.Fields{
		"upload_id":    uploadID,
		"content_type": contentType,
		"size":         len(data),
	})

	if !strings.HasPrefix(contentType, "image/") && !strings.HasPrefix(contentType, "video/") {
		return fmt.Errorf("content type %q: %w", contentType, core.ErrInvalidAsset)
	}
	if len(data) == 0 {
		return fmt.Errorf("empty body: %w", core.ErrInvalidAsset)
	}

	path := s.blobPath(uploadID)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("asset %s: %w", uploadID, core.ErrConflict)
		}
		log.WithError(err).Error("Failed to create asset file")
		return err
	}

	_, werr := f.Write(data)
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		// Remove the half-written blob so the key is not poisoned for a
		// retry.
		os.Remove(path)
		log.WithError(werr).Error("Failed to write asset file")
		return werr
	}

	meta := core.AssetMetadata{
		ContentType:     contentType,
		Size:            int64(len(data)),
		UploadedAt:      time.Now().UTC(),
		OriginalHeaders: headers,
	}
	buf, err := json.Marshal(meta)
	if err == nil {
		err = os.WriteFile(path+metaExt, buf, 0644)
	}
	if err != nil {
		// The blob is intact; reads fall back to sniffing the type.
		log.WithError(err).Warn("Failed to write asset metadata sidecar")
	}

	log.Info("Asset uploaded")
	return nil
}

// Get reads an asset's bytes and metadata. A missing or corrupt sidecar
// degrades to a content type sniffed from the bytes; it never fails the read.
func (s *Store) Get(ctx context.Context, uploadID string) (*core.AssetContent, error) {
	log := logrus.WithField("upload_id", uploadID)

	path := s.blobPath(uploadID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("asset %s: %w", uploadID, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to read asset file")
		return nil, err
	}

	var meta core.AssetMetadata
	raw, err := os.ReadFile(path + metaExt)
	if err == nil {
		err = json.Unmarshal(raw, &meta)
	}
	if err != nil || meta.ContentType == "" {
		if err != nil {
			log.WithError(err).Warn("Asset sidecar missing or corrupt, sniffing content type")
		}
		meta.ContentType = mimetype.Detect(data).String()
	}
	meta.Size = int64(len(data))

	return &core.AssetContent{Data: data, Meta: meta}, nil
}
