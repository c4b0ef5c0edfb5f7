package cleanup

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/booking"
)

// PurgeResult reports a purge pass by terminal status.
type PurgeResult struct {
	DeletedCancelled int `json:"deletedCancelled"`
	DeletedExpired   int `json:"deletedExpired"`
}

// Purge permanently deletes cancelled and expired archived rows in
// fixed-size batches ordered by archive key, continuing until no matching
// page remains. No-show rows stay: like completed visits, they are the
// salon's client history, not dead weight from the booking flow. Destructive
// and irreversible; it never touches live bookings. Re-running with nothing
// new archived is a no-op.
func (e *Engine) Purge(ctx context.Context, siteID string) (*PurgeResult, error) {
	if siteID == "" {
		return nil, errors.New("cleanup: siteID required")
	}

	result := &PurgeResult{}
	var cursor map[string]types.AttributeValue
	for {
		page, err := e.archives.ListPage(ctx, siteID, cursor, e.purgeBatchSize)
		if err != nil {
			return result, err
		}

		var cancelled, expired []string
		for _, rec := range page.Records {
			switch rec.Status {
			case booking.StatusCancelled, booking.StatusCancelledBySalon:
				cancelled = append(cancelled, rec.ArchiveKey)
			case booking.StatusExpired:
				expired = append(expired, rec.ArchiveKey)
			}
		}

		// Each batch commits independently; a failure mid-run leaves
		// earlier pages durably purged and the pass safe to re-invoke.
		deleted, err := e.archives.BatchDelete(ctx, siteID, cancelled)
		result.DeletedCancelled += deleted
		if err != nil {
			return result, err
		}
		deleted, err = e.archives.BatchDelete(ctx, siteID, expired)
		result.DeletedExpired += deleted
		if err != nil {
			return result, err
		}

		if len(page.Cursor) == 0 {
			break
		}
		cursor = page.Cursor
	}

	e.logger.Info("cleanup: purge complete",
		"site_id", siteID,
		"deleted_cancelled", result.DeletedCancelled,
		"deleted_expired", result.DeletedExpired,
	)
	return result, nil
}
