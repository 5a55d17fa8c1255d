// Package app wires the sync engine: offline store, state containers,
// dispatcher, retention and the debug HTTP endpoint.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"chatsync/internal/retention"
	"chatsync/pkg/banner"
	"chatsync/pkg/channel"
	"chatsync/pkg/config"
	"chatsync/pkg/logger"
	"chatsync/pkg/models"
	"chatsync/pkg/query"
	"chatsync/pkg/state"
	"chatsync/pkg/store"
	"chatsync/pkg/sync"
	"chatsync/pkg/thread"
)

// App encapsulates the engine components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	paths state.Paths
	st    *store.Store

	global   *state.Global
	channels *channel.Registry
	queries  *query.Registry
	threads  *thread.Registry
	disp     *sync.Dispatcher

	srv *http.Server
}

// New initializes resources that do not require a running context (store,
// state containers, dispatcher). It does not start the dispatcher or the
// HTTP server; call Run to start those and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	// validate effective config early and fail fast
	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	paths, err := state.EnsureDirs(eff.DBPath)
	if err != nil {
		return nil, fmt.Errorf("cache layout: %w", err)
	}

	st, err := store.Open(paths.Store, eff.Config.Storage.CacheSize.Int64())
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", paths.Store, err)
	}

	userID := eff.Config.Session.UserID
	a := &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		paths:     paths,
		st:        st,
		global:    state.NewGlobal(userID),
		channels:  channel.NewRegistry(userID),
		queries:   query.NewRegistry(),
		threads:   thread.NewRegistry(userID),
	}

	a.disp = sync.NewDispatcher(sync.Deps{
		Global:   a.global,
		Channels: a.channels,
		Queries:  a.queries,
		Threads:  a.threads,
		Repo:     a.st,
	}, sync.Options{
		QueueCapacity: eff.Config.Sync.QueueCapacity,
		BatchSize:     eff.Config.Sync.BatchSize,
		TypingRPS:     eff.Config.Sync.Typing.RPS,
		TypingBurst:   eff.Config.Sync.Typing.Burst,
	})

	// default query: every channel the session user is a member of, kept
	// sorted by latest activity for the debug endpoint
	a.queries.Add(query.NewState("member-channels", query.MembersContain(userID), userID, a.resolveChannel))

	return a, nil
}

// resolveChannel reads the published snapshot for cid, if any.
func (a *App) resolveChannel(cid string) *models.Channel {
	if st, ok := a.channels.Get(cid); ok {
		snap := st.Snapshot()
		if snap.Initialized() {
			return snap.Channel
		}
	}
	return nil
}

// Run starts retention, the dispatcher and the HTTP server, and blocks
// until ctx is canceled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()

	ret, err := retention.New(a.eff.Config.Retention, a.st, a.paths.Retention)
	if err != nil {
		return err
	}
	var retCancel context.CancelFunc = func() {}
	if ret != nil {
		retCancel = ret.Start(ctx)
	}

	source, err := a.eventSource()
	if err != nil {
		retCancel()
		return err
	}
	a.disp.Start(ctx, source)

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("http_server_failed", "error", err)
		}
	}

	// ordered teardown: stop feeding batches, then retention, then the
	// debug endpoint, then the store
	a.disp.Stop()
	retCancel()
	if a.srv != nil {
		shctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.srv.Shutdown(shctx)
		cancel()
	}
	if err := a.st.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
	return a.disp.Err()
}

// eventSource builds the configured feed; with no feed configured the
// dispatcher idles until a resync batch is pushed.
func (a *App) eventSource() (sync.EventSource, error) {
	if path := a.eff.Config.Session.EventsFile; path != "" {
		src, err := sync.NewReplay(path)
		if err != nil {
			return nil, fmt.Errorf("event feed %s: %w", path, err)
		}
		return src, nil
	}
	return sync.NewReplayEvents(nil), nil
}

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "none" && a.commit != "" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "unknown" && a.buildDate != "" {
		verStr += " @ " + a.buildDate
	}
	banner.PrintWithEff(a.eff, verStr)
}
