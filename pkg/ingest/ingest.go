// Package ingest receives log lines from the network and pushes them into
// the pipeline buffer.
package ingest

// Pusher accepts ingested entries. *engine.RingBuffer implements it.
type Pusher interface {
	Push(item []byte) error
}
