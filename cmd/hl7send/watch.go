package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/arloliu/go-hl7/internal/queue"
	"github.com/arloliu/go-hl7/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const (
	sentSuffix         = ".sent"
	metricsNamespace   = "hl7send"
	watchQueuePrealloc = 16
)

// outboxWatcher sends files that appear in an outbox directory and moves them out of the way
// once every message was accepted.
type outboxWatcher struct {
	sender     *sender
	fs         afero.Fs
	dir        string
	pattern    string
	debounce   time.Duration
	archiveDir string
	logger     logger.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	queue   *queue.Unique[string]
}

func newOutboxWatcher(s *sender, fs afero.Fs, dir, pattern string, debounce time.Duration, archiveDir string, l logger.Logger) *outboxWatcher {
	return &outboxWatcher{
		sender:     s,
		fs:         fs,
		dir:        dir,
		pattern:    pattern,
		debounce:   debounce,
		archiveDir: archiveDir,
		logger:     l.With("dir", dir),
		pending:    make(map[string]*time.Timer),
		queue:      queue.NewUnique[string](watchQueuePrealloc),
	}
}

// Run watches the directory until ctx is done. Files already present are sent first.
func (w *outboxWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.worker(ctx)
	}()
	defer func() {
		cancel()
		w.stopPending()
		wg.Wait()
	}()

	if err := w.scan(); err != nil {
		return err
	}

	w.logger.Info("watching outbox", "pattern", w.pattern)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if w.matches(event.Name) {
				w.schedule(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *outboxWatcher) matches(path string) bool {
	ok, err := filepath.Match(w.pattern, filepath.Base(path))
	return err == nil && ok
}

// scan queues the matching files already in the directory.
func (w *outboxWatcher) scan() error {
	entries, err := afero.ReadDir(w.fs, w.dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", w.dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(w.dir, entry.Name())
		if !entry.IsDir() && w.matches(path) {
			w.schedule(path)
		}
	}

	return nil
}

// schedule queues path once no event for it arrived within the debounce window.
func (w *outboxWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}

	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if !w.queue.Enqueue(path) && w.logger.Level() == logger.DebugLevel {
			w.logger.Debug("file already queued", "file", path)
		}
	})
}

func (w *outboxWatcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *outboxWatcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.queue.Ready():
			for ctx.Err() == nil {
				path, ok := w.queue.Dequeue()
				if !ok {
					break
				}
				w.process(ctx, path)
			}
		}
	}
}

func (w *outboxWatcher) process(ctx context.Context, path string) {
	if _, err := w.fs.Stat(path); err != nil {
		return
	}

	res, err := w.sender.sendFile(ctx, path)
	if err != nil {
		w.logger.Error("failed to send file", "file", path, "sent", res.Sent, "error", err)
		return
	}

	if res.Rejected > 0 {
		w.logger.Warn("file has rejected messages, left in outbox", "file", path, "rejected", res.Rejected)
		return
	}

	dest, err := w.archive(path)
	if err != nil {
		w.logger.Error("failed to archive file", "file", path, "error", err)
		return
	}

	w.logger.Info("file sent", "file", path, "sent", res.Sent, "archived", dest)
}

// archive moves path into the archive directory, or renames it with the sent suffix when no
// archive directory is configured.
func (w *outboxWatcher) archive(path string) (string, error) {
	dest := path + sentSuffix
	if w.archiveDir != "" {
		if err := w.fs.MkdirAll(w.archiveDir, 0o755); err != nil {
			return "", err
		}
		dest = filepath.Join(w.archiveDir, filepath.Base(path))
	}

	if err := w.fs.Rename(path, dest); err != nil {
		return "", err
	}

	return dest, nil
}

func (a *app) watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Send batch files dropped into an outbox directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			if a.cfg.MetricsAddr != "" {
				stop, err := serveMetrics(a.cfg.MetricsAddr, a.logger, client.Collectors(metricsNamespace)...)
				if err != nil {
					return err
				}
				defer stop()
			}

			s := newSender(client, a.cfg.Port, a.fs, a.logger)
			w := newOutboxWatcher(s, a.fs, args[0], a.cfg.WatchPattern, a.cfg.WatchDebounce, a.cfg.ArchiveDir, a.logger)

			return w.Run(cmd.Context())
		},
	}

	cfg := &a.cfg
	cmd.Flags().StringVar(&cfg.WatchPattern, "pattern", cfg.WatchPattern, "file name pattern of batch files")
	cmd.Flags().DurationVar(&cfg.WatchDebounce, "debounce", cfg.WatchDebounce, "quiet period after the last write before a file is sent")
	cmd.Flags().StringVar(&cfg.ArchiveDir, "archive-dir", cfg.ArchiveDir, "directory for sent files (default: rename with .sent suffix)")

	return cmd
}

// serveMetrics serves collectors on addr/metrics. The returned function shuts the server down.
func serveMetrics(addr string, l logger.Logger, collectors ...prometheus.Collector) (func(), error) {
	reg := prometheus.NewRegistry()
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
