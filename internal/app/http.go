package app

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatsync/pkg/channel"
)

// setupRoutes registers the debug surface: health, metrics and read-only
// state snapshots.
func (a *App) setupRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.HandleFunc("/readyz", a.readyzHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/state/global", a.globalStateHandler).Methods(http.MethodGet)
	v1.HandleFunc("/state/channels", a.channelsHandler).Methods(http.MethodGet)
	v1.HandleFunc("/state/channels/{cid}", a.channelHandler).Methods(http.MethodGet)
	v1.HandleFunc("/state/channels/{cid}/watch", a.channelWatchHandler).Methods(http.MethodGet)
	v1.HandleFunc("/state/queries", a.queriesHandler).Methods(http.MethodGet)
	v1.HandleFunc("/state/threads", a.threadsHandler).Methods(http.MethodGet)
	v1.HandleFunc("/store/stats", a.storeStatsHandler).Methods(http.MethodGet)
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) readyzHandler(w http.ResponseWriter, _ *http.Request) {
	if !a.st.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": ver})
}

func (a *App) globalStateHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":            a.global.UserID(),
		"session_id":         a.global.SessionID(),
		"user":               a.global.User().Value(),
		"connection_id":      a.global.ConnectionID().Value(),
		"connectivity":       a.global.Connectivity().Value().String(),
		"total_unread_count": a.global.TotalUnreadCount().Value(),
		"unread_channels":    a.global.UnreadChannels().Value(),
	})
}

type channelSummary struct {
	CID          string `json:"cid"`
	Messages     int    `json:"messages"`
	WatcherCount int    `json:"watcher_count"`
	Typing       int    `json:"typing"`
	Hidden       bool   `json:"hidden,omitempty"`
	Muted        bool   `json:"muted,omitempty"`
}

func (a *App) channelsHandler(w http.ResponseWriter, _ *http.Request) {
	states := a.channels.Active()
	out := make([]channelSummary, 0, len(states))
	for _, st := range states {
		snap := st.Snapshot()
		s := channelSummary{
			CID:          st.Cid(),
			Messages:     len(snap.Messages),
			WatcherCount: snap.WatcherCount,
			Typing:       len(snap.Typing),
		}
		if snap.Initialized() {
			s.Hidden = snap.Channel.Hidden
			s.Muted = snap.Channel.Muted
		}
		out = append(out, s)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *App) channelHandler(w http.ResponseWriter, r *http.Request) {
	cid := mux.Vars(r)["cid"]
	st, ok := a.channels.Get(cid)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no state for cid"})
		return
	}
	snap := st.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"cid":           cid,
		"channel":       snap.Channel,
		"messages":      snap.Messages,
		"watcher_count": snap.WatcherCount,
		"typing_users":  typingUserIDs(snap.Typing),
	})
}

// channelWatchHandler streams snapshot summaries for cid as server-sent
// events until the client disconnects. Canceling the subscription evicts
// the state once the last observer is gone, so watch-created states do
// not outlive their watchers.
func (a *App) channelWatchHandler(w http.ResponseWriter, r *http.Request) {
	cid := mux.Vars(r)["cid"]
	fl, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	snaps, cancel := a.channels.Subscribe(cid)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			s := channelSummary{
				CID:          cid,
				Messages:     len(snap.Messages),
				WatcherCount: snap.WatcherCount,
				Typing:       len(snap.Typing),
			}
			if snap.Initialized() {
				s.Hidden = snap.Channel.Hidden
				s.Muted = snap.Channel.Muted
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if err := json.NewEncoder(w).Encode(s); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n")); err != nil {
				return
			}
			fl.Flush()
		}
	}
}

func typingUserIDs(typing map[string]channel.TypingRecord) []string {
	out := make([]string, 0, len(typing))
	for uid := range typing {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out
}

func (a *App) queriesHandler(w http.ResponseWriter, _ *http.Request) {
	out := map[string][]string{}
	for _, qs := range a.queries.Active() {
		snap := qs.Snapshot()
		cids := make([]string, 0, len(snap.Channels))
		for _, ch := range snap.Channels {
			cids = append(cids, ch.CID)
		}
		out[qs.QueryID()] = cids
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *App) threadsHandler(w http.ResponseWriter, _ *http.Request) {
	out := map[string]int{}
	for _, ts := range a.threads.Active() {
		out[ts.ParentID()] = len(ts.Snapshot().Replies)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *App) storeStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := a.st.CollectStats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// startHTTP builds the router, starts the HTTP server in a goroutine and
// returns a channel that will contain any server error.
func (a *App) startHTTP(_ context.Context) <-chan error {
	r := mux.NewRouter()
	a.setupRoutes(r)

	a.srv = &http.Server{Addr: a.eff.Addr, Handler: r}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.srv.ListenAndServe()
	}()
	return errCh
}
