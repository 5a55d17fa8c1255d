// Command inspect dumps the contents of an offline cache store: channels,
// a channel's messages, cached users, or overall stats.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"chatsync/pkg/logger"
	"chatsync/pkg/store"
)

func main() {
	var (
		path string
		cid  string
		what string
	)
	flag.StringVar(&path, "path", "", "store path (the .../store directory)")
	flag.StringVar(&cid, "cid", "", "channel cid for --what=messages")
	flag.StringVar(&what, "what", "stats", "what to dump: stats | channels | messages | configs")
	flag.Parse()
	if path == "" {
		fmt.Fprintln(os.Stderr, "--path required")
		os.Exit(2)
	}

	logger.InitWithLevel("error")
	st, err := store.Open(path, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open failed: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	switch what {
	case "stats":
		stats, err := st.CollectStats(ctx)
		if err != nil {
			fatal(err)
		}
		_ = enc.Encode(stats)
	case "channels":
		cids, err := st.Channels(ctx)
		if err != nil {
			fatal(err)
		}
		channels, err := st.SelectChannels(ctx, cids)
		if err != nil {
			fatal(err)
		}
		_ = enc.Encode(channels)
	case "messages":
		if cid == "" {
			fmt.Fprintln(os.Stderr, "--cid required for --what=messages")
			os.Exit(2)
		}
		msgs, err := st.ChannelMessages(ctx, cid)
		if err != nil {
			fatal(err)
		}
		_ = enc.Encode(msgs)
	case "configs":
		cfgs, err := st.CacheChannelConfigs(ctx)
		if err != nil {
			fatal(err)
		}
		_ = enc.Encode(cfgs)
	default:
		fmt.Fprintf(os.Stderr, "unknown --what: %s\n", what)
		os.Exit(2)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
