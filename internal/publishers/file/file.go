package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"subforge/internal/logger"
	"subforge/internal/publishers"
)

// Publisher writes the document to a local path. "{name}" in the path is
// replaced by the subscription name.
type Publisher struct{}

func (p *Publisher) Publish(_ context.Context, doc *publishers.Document, config map[string]interface{}) error {
	path, _ := config["path"].(string)
	if path == "" {
		return fmt.Errorf("file publisher requires path")
	}
	path = strings.ReplaceAll(path, "{name}", doc.Subscription)

	payload, err := publishers.Render(doc, config)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logger.Log.Debugf("File publisher wrote %d bytes to %s", len(payload), path)
	return nil
}

func init() {
	publishers.Register("file", func() publishers.Publisher { return &Publisher{} })
}
