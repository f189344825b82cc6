package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arloliu/go-hl7/logger"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func runWatcher(t *testing.T, w *outboxWatcher) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
}

func TestOutboxWatcher_RenamesSentFiles(t *testing.T) {
	require := require.New(t)

	rcv := startReceiver(t)
	dir := t.TempDir()
	fs := afero.NewOsFs()

	// present before the watcher starts
	existing := filepath.Join(dir, "first.hl7")
	require.NoError(os.WriteFile(existing, []byte(batchFile("P1")), 0o644))

	s := newTestSender(t, rcv, fs)
	w := newOutboxWatcher(s, fs, dir, "*.hl7", 20*time.Millisecond, "", logger.GetLogger())
	runWatcher(t, w)

	require.Eventually(func() bool {
		ok, _ := afero.Exists(fs, existing+sentSuffix)
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	dropped := filepath.Join(dir, "second.hl7")
	require.NoError(os.WriteFile(dropped, []byte(batchFile("P2", "P3")), 0o644))

	require.Eventually(func() bool {
		ok, _ := afero.Exists(fs, dropped+sentSuffix)
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	ok, err := afero.Exists(fs, dropped)
	require.NoError(err)
	require.False(ok)
	require.Equal(int32(3), rcv.frames.Load())
}

func TestOutboxWatcher_ArchiveAndRejected(t *testing.T) {
	require := require.New(t)

	rcv := startReceiver(t)
	dir := t.TempDir()
	archiveDir := filepath.Join(t.TempDir(), "sent")
	fs := afero.NewOsFs()

	s := newTestSender(t, rcv, fs)
	w := newOutboxWatcher(s, fs, dir, "*.hl7", 20*time.Millisecond, archiveDir, logger.GetLogger())
	runWatcher(t, w)

	rejected := filepath.Join(dir, "rejected.hl7")
	require.NoError(os.WriteFile(rejected, []byte(batchFile("REJECT")), 0o644))
	accepted := filepath.Join(dir, "accepted.hl7")
	require.NoError(os.WriteFile(accepted, []byte(batchFile("P1")), 0o644))
	require.NoError(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	require.Eventually(func() bool {
		ok, _ := afero.Exists(fs, filepath.Join(archiveDir, "accepted.hl7"))
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(func() bool { return rcv.frames.Load() == 2 }, 5*time.Second, 20*time.Millisecond)

	ok, err := afero.Exists(fs, rejected)
	require.NoError(err)
	require.True(ok, "file with rejected messages stays in the outbox")

	ok, err = afero.Exists(fs, filepath.Join(dir, "notes.txt"))
	require.NoError(err)
	require.True(ok)
}

func TestOutboxWatcher_Matches(t *testing.T) {
	w := &outboxWatcher{pattern: "*.hl7"}

	require.True(t, w.matches("/outbox/adt.hl7"))
	require.False(t, w.matches("/outbox/adt.hl7.sent"))
	require.False(t, w.matches("/outbox/readme.txt"))

	w.pattern = "["
	require.False(t, w.matches("/outbox/adt.hl7"))
}

func TestOutboxWatcher_Archive(t *testing.T) {
	require := require.New(t)

	fs := afero.NewMemMapFs()
	require.NoError(afero.WriteFile(fs, "/outbox/a.hl7", []byte("x"), 0o644))
	require.NoError(afero.WriteFile(fs, "/outbox/b.hl7", []byte("x"), 0o644))

	w := &outboxWatcher{fs: fs}
	dest, err := w.archive("/outbox/a.hl7")
	require.NoError(err)
	require.Equal("/outbox/a.hl7.sent", dest)

	w.archiveDir = "/archive"
	dest, err = w.archive("/outbox/b.hl7")
	require.NoError(err)
	require.Equal(filepath.Join("/archive", "b.hl7"), dest)

	ok, err := afero.Exists(fs, dest)
	require.NoError(err)
	require.True(ok)

	_, err = w.archive("/outbox/missing.hl7")
	require.Error(err)
}

func TestOutboxWatcher_MissingDir(t *testing.T) {
	w := newOutboxWatcher(nil, afero.NewOsFs(), filepath.Join(t.TempDir(), "none"), "*.hl7", time.Millisecond, "", logger.GetLogger())
	require.Error(t, w.Run(context.Background()))
}
