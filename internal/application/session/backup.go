package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/otp-relay/internal/domain"
)

type objectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// snapshotter copies a live credential database consistently and verifies copies.
type snapshotter interface {
	Snapshot(ctx context.Context, src, dst string) error
	Check(ctx context.Context, path string) error
}

// CredentialPath is where a channel's transport keeps its credential database.
func CredentialPath(dir, channel string) string {
	return filepath.Join(dir, channel+".db")
}

// CredentialBackup mirrors per-channel credential files to an object store so
// a fresh host can resume sessions without re-pairing.
type CredentialBackup struct {
	store    objectStore
	files    snapshotter
	dir      string
	prefix   string
	interval time.Duration
	log      *slog.Logger
}

func NewCredentialBackup(store objectStore, files snapshotter, dir string, interval time.Duration, log *slog.Logger) *CredentialBackup {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &CredentialBackup{store: store, files: files, dir: dir, prefix: "sessions/", interval: interval, log: log}
}

func (b *CredentialBackup) key(channel string) string {
	return b.prefix + channel + ".db"
}

// Restore downloads the channel's credential file when none exists locally.
// Failures are logged; the channel then falls back to pairing.
func (b *CredentialBackup) Restore(ctx context.Context, channel string) {
	if err := b.restore(ctx, channel); err != nil {
		b.log.Warn("credential restore failed", "channel", channel, "err", err)
	}
}

func (b *CredentialBackup) restore(ctx context.Context, channel string) error {
	path := CredentialPath(b.dir, channel)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	body, err := b.store.Download(ctx, b.key(channel))
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	defer body.Close()

	if err := os.MkdirAll(b.dir, 0o700); err != nil {
		return err
	}
	tmp := path + ".restore"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := b.files.Check(ctx, tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("discarding unusable backup: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	b.log.Info("credentials restored", "channel", channel)
	return nil
}

// Backup uploads a consistent snapshot of the channel's credential file.
// A missing file is not an error.
func (b *CredentialBackup) Backup(ctx context.Context, channel string) error {
	path := CredentialPath(b.dir, channel)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	snap := path + ".snapshot"
	defer os.Remove(snap)
	if err := b.files.Snapshot(ctx, path, snap); err != nil {
		return err
	}
	f, err := os.Open(snap)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := b.store.Upload(ctx, b.key(channel), f, "application/vnd.sqlite3"); err != nil {
		return err
	}
	return nil
}

// Run uploads every channel each interval until ctx is done, then once more.
func (b *CredentialBackup) Run(ctx context.Context, channels []string) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			b.backupAll(final, channels)
			cancel()
			return
		case <-ticker.C:
			b.backupAll(ctx, channels)
		}
	}
}

func (b *CredentialBackup) backupAll(ctx context.Context, channels []string) {
	for _, ch := range channels {
		if err := b.Backup(ctx, ch); err != nil {
			b.log.Warn("credential backup failed", "channel", ch, "err", err)
		}
	}
}
