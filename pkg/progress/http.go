package progress

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/kerbaras/reader/pkg/data"
	"github.com/kerbaras/reader/pkg/utils"
)

type checkpointPayload struct {
	MediaType   string    `json:"media_type"`
	EntryID     string    `json:"entry_id"`
	UnitOrdinal float64   `json:"unit_ordinal"`
	Offset      int       `json:"offset"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HTTPRemote talks to a progress service exposing
//
//	GET  /progress?media_type=..&entry_id=..  -> checkpoint or 404
//	POST /progress                            <- checkpoint
type HTTPRemote struct {
	api *utils.API
}

// NewHTTPRemote creates a remote for baseURL. An empty token sends no
// Authorization header.
func NewHTTPRemote(baseURL, token string, opts ...utils.APIOption) *HTTPRemote {
	if token != "" {
		opts = append(opts, utils.WithHeader("Authorization", "Bearer "+token))
	}
	return &HTTPRemote{api: utils.NewAPI(baseURL, opts...)}
}

func (h *HTTPRemote) FetchCheckpoint(ctx context.Context, mediaType data.MediaType, entryID string) (*data.Checkpoint, error) {
	params := url.Values{}
	params.Set("media_type", string(mediaType))
	params.Set("entry_id", entryID)

	var payload checkpointPayload
	if err := h.api.Get(ctx, "/progress", params, &payload); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch checkpoint: %w", err)
	}
	return &data.Checkpoint{
		UnitOrdinal: payload.UnitOrdinal,
		Offset:      payload.Offset,
		UpdatedAt:   payload.UpdatedAt,
	}, nil
}

func (h *HTTPRemote) ReportCheckpoint(ctx context.Context, mediaType data.MediaType, entryID string, cp data.Checkpoint) error {
	payload := checkpointPayload{
		MediaType:   string(mediaType),
		EntryID:     entryID,
		UnitOrdinal: cp.UnitOrdinal,
		Offset:      cp.Offset,
		UpdatedAt:   cp.UpdatedAt.UTC(),
	}
	if err := h.api.Post(ctx, "/progress", payload, nil); err != nil {
		return fmt.Errorf("report checkpoint: %w", err)
	}
	return nil
}
