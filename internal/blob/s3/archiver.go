package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/attnmarkets/attnd/internal/domain"
)

// Archiver offloads the index history of long-resolved events to object
// storage as JSONL. Rows stay in Postgres until the archive has been
// verified; deletion is a separate, explicit step.
type Archiver struct {
	writer    *Writer
	events    domain.EventStore
	snapshots domain.SnapshotStore
}

// NewArchiver creates an Archiver.
func NewArchiver(writer *Writer, events domain.EventStore, snapshots domain.SnapshotStore) *Archiver {
	return &Archiver{
		writer:    writer,
		events:    events,
		snapshots: snapshots,
	}
}

// archivedEvent is the JSONL record written per archived event.
type archivedEvent struct {
	Event   domain.Event        `json:"event"`
	History []domain.IndexPoint `json:"history"`
}

// ArchiveResolved uploads the history of every resolved event whose window
// ended before the cutoff. The archive key is partitioned by the cutoff's
// year-month:
//
//	archive/events/2026-08.jsonl
//
// It returns the number of events archived.
func (a *Archiver) ArchiveResolved(ctx context.Context, before time.Time) (int64, error) {
	events, err := a.events.List(ctx, domain.EventFilter{Status: domain.StatusResolved})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive query: %w", err)
	}

	var records []archivedEvent
	for _, e := range events {
		if !e.WindowEnd.Before(before) {
			continue
		}
		history, err := a.snapshots.History(ctx, e.ID)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive history %s: %w", e.ID, err)
		}
		records = append(records, archivedEvent{Event: e, History: history})
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	key := fmt.Sprintf("archive/events/%s.jsonl", before.Format("2006-01"))
	if err := a.writer.PutMultipart(ctx, key, bytes.NewReader(buf), minPartSize); err != nil {
		return 0, fmt.Errorf("s3blob: archive upload: %w", err)
	}

	return int64(len(records)), nil
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
