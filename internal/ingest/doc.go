// Package ingest turns raw block payloads from the node callback into notifications,
// records first-seen timestamps and hands notifications to the broadcaster.
//
// Processing is fire-and-forget: the HTTP caller is acknowledged before Accept runs,
// malformed payloads are only logged, and the dedup write races the broadcast.
package ingest
