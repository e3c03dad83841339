package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/otp-relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockObjectStore struct{ mock.Mock }

func (m *mockObjectStore) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	data, _ := io.ReadAll(r)
	args := m.Called(ctx, key, string(data), contentType)
	return args.String(0), args.Error(1)
}
func (m *mockObjectStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

// fakeFiles snapshots by copying with a marker and rejects files containing "torn".
type fakeFiles struct{}

func (fakeFiles) Snapshot(_ context.Context, src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, append([]byte("snapshot:"), data...), 0o600)
}

func (fakeFiles) Check(_ context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if bytes.Contains(data, []byte("torn")) {
		return errors.New("database disk image is malformed")
	}
	return nil
}

func TestCredentialBackup_RestoreWhenMissing(t *testing.T) {
	dir := t.TempDir()
	store := &mockObjectStore{}
	store.On("Download", mock.Anything, "sessions/otp.db").
		Return(io.NopCloser(bytes.NewReader([]byte("sqlite-bytes"))), nil)

	b := NewCredentialBackup(store, fakeFiles{}, dir, 0, nil)
	b.Restore(context.Background(), "otp")

	data, err := os.ReadFile(filepath.Join(dir, "otp.db"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite-bytes", string(data))
}

func TestCredentialBackup_RestoreKeepsLocalFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(CredentialPath(dir, "otp"), []byte("local"), 0o600))
	store := &mockObjectStore{}

	NewCredentialBackup(store, fakeFiles{}, dir, 0, nil).Restore(context.Background(), "otp")
	store.AssertNotCalled(t, "Download", mock.Anything, mock.Anything)
}

func TestCredentialBackup_RestoreNoRemoteObject(t *testing.T) {
	dir := t.TempDir()
	store := &mockObjectStore{}
	store.On("Download", mock.Anything, "sessions/notifications.db").Return(nil, domain.ErrNotFound)

	NewCredentialBackup(store, fakeFiles{}, dir, 0, nil).Restore(context.Background(), "notifications")
	_, err := os.Stat(CredentialPath(dir, "notifications"))
	assert.True(t, os.IsNotExist(err))
}

func TestCredentialBackup_Backup(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(CredentialPath(dir, "otp"), []byte("creds"), 0o600))
	store := &mockObjectStore{}
	store.On("Upload", mock.Anything, "sessions/otp.db", "snapshot:creds", "application/vnd.sqlite3").Return("s3://b/sessions/otp.db", nil)

	b := NewCredentialBackup(store, fakeFiles{}, dir, 0, nil)
	require.NoError(t, b.Backup(context.Background(), "otp"))
	// Nothing to upload for a channel that never paired.
	require.NoError(t, b.Backup(context.Background(), "notifications"))
	store.AssertExpectations(t)
	store.AssertNumberOfCalls(t, "Upload", 1)
}

func TestCredentialBackup_RunUploadsOnShutdown(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(CredentialPath(dir, "otp"), []byte("creds"), 0o600))
	store := &mockObjectStore{}
	store.On("Upload", mock.Anything, "sessions/otp.db", "snapshot:creds", mock.Anything).Return("", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewCredentialBackup(store, fakeFiles{}, dir, 0, nil).Run(ctx, []string{"otp"})
	store.AssertNumberOfCalls(t, "Upload", 1)
}

func TestCredentialBackup_RestoreDiscardsUnusableBackup(t *testing.T) {
	dir := t.TempDir()
	store := &mockObjectStore{}
	store.On("Download", mock.Anything, "sessions/otp.db").
		Return(io.NopCloser(bytes.NewReader([]byte("torn-page"))), nil)

	NewCredentialBackup(store, fakeFiles{}, dir, 0, nil).Restore(context.Background(), "otp")

	// The channel falls back to pairing instead of opening a broken store.
	_, err := os.Stat(CredentialPath(dir, "otp"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(CredentialPath(dir, "otp") + ".restore")
	assert.True(t, os.IsNotExist(err))
}

func TestCredentialBackup_BackupRemovesSnapshot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(CredentialPath(dir, "otp"), []byte("creds"), 0o600))
	store := &mockObjectStore{}
	store.On("Upload", mock.Anything, "sessions/otp.db", "snapshot:creds", mock.Anything).Return("", nil)

	require.NoError(t, NewCredentialBackup(store, fakeFiles{}, dir, 0, nil).Backup(context.Background(), "otp"))
	_, err := os.Stat(CredentialPath(dir, "otp") + ".snapshot")
	assert.True(t, os.IsNotExist(err))
}
