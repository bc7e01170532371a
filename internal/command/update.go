package command

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"
)

const (
	updateTimeout     = 10 * time.Minute
	updateFileMode    = 0o644
	defaultUpdateName = "update.bin"
)

// ErrUpdateInProgress indicates a download is already running.
var ErrUpdateInProgress = errors.New("update already in progress")

// Updater downloads update packages in the background. Start returns
// as soon as the download begins; completion or failure is reported
// through the event publisher, never as a second command result.
type Updater struct {
	dir    string
	client *http.Client
	events EventPublisher
	logger Logger

	mu     sync.Mutex
	active bool
}

// NewUpdater creates an updater writing downloads into dir.
func NewUpdater(dir string, events EventPublisher) *Updater {
	return &Updater{
		dir:    dir,
		client: &http.Client{Timeout: updateTimeout},
		events: events,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the updater.
func (u *Updater) SetLogger(logger Logger) {
	u.logger = logger
}

// Start begins downloading rawURL. Only one download runs at a time.
func (u *Updater) Start(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("invalid update URL %q", rawURL)
	}

	u.mu.Lock()
	if u.active {
		u.mu.Unlock()
		return ErrUpdateInProgress
	}
	u.active = true
	u.mu.Unlock()

	go u.download(rawURL, parsed)
	return nil
}

func (u *Updater) download(rawURL string, parsed *url.URL) {
	defer func() {
		u.mu.Lock()
		u.active = false
		u.mu.Unlock()
	}()

	dest, size, err := u.fetch(rawURL, parsed)
	if err != nil {
		u.logger.Error("update download failed", "url", rawURL, "error", err)
		u.events.PublishEvent("updateFailed", map[string]any{
			"url":   rawURL,
			"error": err.Error(),
		})
		return
	}

	u.logger.Info("update downloaded", "url", rawURL, "path", dest, "bytes", size)
	u.events.PublishEvent("updateDownloaded", map[string]any{
		"url":  rawURL,
		"path": dest,
		"size": size,
	})
}

func (u *Updater) fetch(rawURL string, parsed *url.URL) (string, int64, error) {
	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("creating update dir: %w", err)
	}

	resp, err := u.client.Get(rawURL)
	if err != nil {
		return "", 0, fmt.Errorf("fetching update: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("fetching update: unexpected status %s", resp.Status)
	}

	name := path.Base(parsed.Path)
	if name == "" || name == "." || name == "/" {
		name = defaultUpdateName
	}
	dest := filepath.Join(u.dir, name)

	file, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, updateFileMode)
	if err != nil {
		return "", 0, fmt.Errorf("creating update file: %w", err)
	}

	size, err := io.Copy(file, resp.Body)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dest)
		return "", 0, fmt.Errorf("writing update file: %w", err)
	}

	return dest, size, nil
}
