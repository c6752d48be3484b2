// Package report keeps the current report page in memory and reloads it from
// disk when the file changes.
package report

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/qareport/internal/task"
)

const (
	errorMessageMissingPath = "report: missing path"
	errorMessageReadReport  = "report: read file"
	errorMessageEmptyReport = "report: file is empty"

	logEventReportLoaded       = "report_loaded"
	logEventReportUnchanged    = "report_unchanged"
	logEventReportReloadFailed = "report_reload_failed"
	logFieldReportPath         = "path"
	logFieldReportVersion      = "version"
	logFieldReportBytes        = "bytes"
)

var (
	ErrMissingPath = errors.New(errorMessageMissingPath)
	ErrEmptyReport = errors.New(errorMessageEmptyReport)
)

// Document is one loaded revision of the report page.
type Document struct {
	Content  []byte
	Digest   string
	Version  int
	LoadedAt time.Time
}

// Reader returns a fresh reader over the page markup.
func (document Document) Reader() io.Reader {
	return bytes.NewReader(document.Content)
}

// Source serves the latest successfully loaded report page.
type Source struct {
	path   string
	clock  task.Clock
	logger *zap.Logger

	mutex   sync.RWMutex
	current Document
}

// NewSource loads path once and returns a Source holding it.
func NewSource(ctx context.Context, path string, clock task.Clock, logger *zap.Logger) (*Source, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return nil, ErrMissingPath
	}
	if clock == nil {
		clock = task.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	source := &Source{path: trimmedPath, clock: clock, logger: logger}
	if loadErr := source.Reload(ctx); loadErr != nil {
		return nil, loadErr
	}
	return source, nil
}

// Path returns the file the source reads.
func (source *Source) Path() string {
	return source.path
}

// Current returns the latest loaded document.
func (source *Source) Current() Document {
	source.mutex.RLock()
	defer source.mutex.RUnlock()
	return source.current
}

// Reload reads the file again. The version only advances when the content
// changed; a failed read keeps the previous document.
func (source *Source) Reload(ctx context.Context) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	content, readErr := os.ReadFile(source.path)
	if readErr != nil {
		return fmt.Errorf("%s: %w", errorMessageReadReport, readErr)
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyReport, source.path)
	}
	checksum := sha256.Sum256(content)
	digest := hex.EncodeToString(checksum[:])

	source.mutex.Lock()
	defer source.mutex.Unlock()
	if digest == source.current.Digest {
		source.logger.Debug(logEventReportUnchanged, zap.String(logFieldReportPath, source.path))
		return nil
	}
	source.current = Document{
		Content:  content,
		Digest:   digest,
		Version:  source.current.Version + 1,
		LoadedAt: source.clock.Now(),
	}
	source.logger.Info(logEventReportLoaded,
		zap.String(logFieldReportPath, source.path),
		zap.Int(logFieldReportVersion, source.current.Version),
		zap.Int(logFieldReportBytes, len(content)),
	)
	return nil
}

// Runner adapts Reload to a task.Scheduler, logging failures.
func (source *Source) Runner() task.RunnerFunc {
	return func(ctx context.Context) {
		if reloadErr := source.Reload(ctx); reloadErr != nil {
			source.logger.Warn(logEventReportReloadFailed,
				zap.String(logFieldReportPath, source.path),
				zap.Error(reloadErr),
			)
		}
	}
}
