package store

import (
	"bytes"
	"context"

	"github.com/cockroachdb/pebble"
)

// Stats is a compact view of the store exposed on the debug endpoint.
type Stats struct {
	DiskUsageBytes uint64 `json:"disk_usage_bytes"`
	Channels       int    `json:"channels"`
	Messages       int    `json:"messages"`
	Users          int    `json:"users"`
}

// CollectStats walks the key space and reads pebble's own metrics. It is
// intended for debug inspection, not hot paths.
func (s *Store) CollectStats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.guard(ctx); err != nil {
		return st, err
	}
	st.DiskUsageBytes = s.db.Metrics().DiskSpaceUsage()

	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return st, err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		switch {
		case bytes.HasPrefix(key, []byte(msgIdxPrefix)):
			st.Messages++
		case bytes.HasPrefix(key, []byte(userPrefix)):
			st.Users++
		case bytes.HasPrefix(key, []byte(channelPrefix)) && bytes.HasSuffix(key, []byte(":meta")):
			st.Channels++
		}
	}
	return st, iter.Error()
}
