package progress

import (
	"context"
	"errors"

	"github.com/kerbaras/reader/pkg/data"
)

// Remote stores reading checkpoints keyed by media type and entry.
// FetchCheckpoint returns nil, nil when nothing is stored.
type Remote interface {
	FetchCheckpoint(ctx context.Context, mediaType data.MediaType, entryID string) (*data.Checkpoint, error)
	ReportCheckpoint(ctx context.Context, mediaType data.MediaType, entryID string, cp data.Checkpoint) error
}

// Multi fans checkpoint writes out to several remotes. Reads return the most
// advanced checkpoint any remote holds.
type Multi []Remote

func (m Multi) FetchCheckpoint(ctx context.Context, mediaType data.MediaType, entryID string) (*data.Checkpoint, error) {
	var (
		best *data.Checkpoint
		errs []error
	)
	for _, r := range m {
		cp, err := r.FetchCheckpoint(ctx, mediaType, entryID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if cp == nil {
			continue
		}
		if best == nil || ahead(*cp, *best) {
			best = cp
		}
	}
	if best != nil {
		return best, nil
	}
	return nil, errors.Join(errs...)
}

func (m Multi) ReportCheckpoint(ctx context.Context, mediaType data.MediaType, entryID string, cp data.Checkpoint) error {
	var errs []error
	for _, r := range m {
		if err := r.ReportCheckpoint(ctx, mediaType, entryID, cp); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func ahead(a, b data.Checkpoint) bool {
	if a.UnitOrdinal != b.UnitOrdinal {
		return a.UnitOrdinal > b.UnitOrdinal
	}
	if a.Offset != b.Offset {
		return a.Offset > b.Offset
	}
	return a.UpdatedAt.After(b.UpdatedAt)
}
