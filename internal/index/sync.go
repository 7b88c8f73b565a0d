package index

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/starford/lorekeeper/internal/models"
	"github.com/starford/lorekeeper/internal/parser"
	"github.com/starford/lorekeeper/internal/storage"
)

// Sync walks the content directories and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
func Sync(db Index, fs storage.Provider, logger *slog.Logger) error {
	disk, err := listContent(fs)
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	for _, p := range disk {
		data, err := fs.ReadFile(p)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		if checksums[p] == checksum(data) {
			continue
		}
		if err := indexFile(db, p, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", p), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", p))
		}
	}

	onDisk := make(map[string]struct{}, len(disk))
	for _, p := range disk {
		onDisk[p] = struct{}{}
	}
	for p := range checksums {
		if _, ok := onDisk[p]; !ok {
			if err := db.DeleteDocument(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// listContent returns every content file of the project that ParsePath
// accepts.
func listContent(fs storage.Provider) ([]string, error) {
	var out []string
	for _, c := range models.Categories {
		files, err := fs.ListFiles(c.Dir())
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, name := range files {
			p := c.Dir() + "/" + name
			if _, _, ok := models.ParsePath(p); ok {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

// indexFile parses data and upserts it. Unchanged content is skipped.
func indexFile(db Index, path string, data []byte) error {
	c, id, ok := models.ParsePath(path)
	if !ok {
		return nil
	}
	cs := checksum(data)
	if prev, err := db.GetChecksum(path); err == nil && prev == cs {
		return nil
	}

	res, err := parser.Parse(c, data)
	if err != nil {
		return err
	}
	title := res.Title
	if title == "" {
		title = id
	}

	doc := Document{
		Path:      path,
		Category:  c,
		ItemID:    id,
		Title:     title,
		Checksum:  cs,
		UpdatedAt: time.Now(),
	}
	return db.UpsertDocument(doc, res.Body, res.Mentions)
}

func checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
