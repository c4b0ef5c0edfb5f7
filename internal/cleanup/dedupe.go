package cleanup

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/archive"
)

// DedupeResult reports the repair of one client's archive groups.
type DedupeResult struct {
	DeletedCount int `json:"deletedCount"`
	WrittenCount int `json:"writtenCount"`
}

// DedupeAllResult aggregates a whole-tenant dedup pass.
type DedupeAllResult struct {
	ClientsProcessed int `json:"clientsProcessed"`
	TotalDeleted     int `json:"totalDeleted"`
	TotalWritten     int `json:"totalWritten"`
}

// Dedupe collapses legacy duplicate archive rows: for each (client,
// serviceType) group the most-recently-updated row survives, is rewritten
// under the canonical dedup key, and the rest are deleted. Rekeying the
// survivor matters: the next archival scan writes to the canonical key, so a
// survivor left under a legacy key would duplicate again on the next run.
// clientPhone scopes the pass to one client when non-empty.
func (e *Engine) Dedupe(ctx context.Context, siteID, clientPhone string) (*DedupeAllResult, error) {
	if siteID == "" {
		return nil, errors.New("cleanup: siteID required")
	}

	records, err := e.listAllArchived(ctx, siteID)
	if err != nil {
		return nil, err
	}

	groups := map[string][]archive.ArchivedBooking{}
	for _, rec := range records {
		if clientPhone != "" && rec.CustomerPhone != clientPhone {
			continue
		}
		key := archive.DedupKey(rec.CustomerPhone, rec.ServiceTypeID)
		groups[key] = append(groups[key], rec)
	}

	result := &DedupeAllResult{}
	clients := map[string]bool{}
	for canonical, group := range groups {
		if len(group) > 0 {
			clients[group[0].CustomerPhone] = true
		}
		if len(group) < 2 {
			continue
		}

		survivor := group[0]
		for _, rec := range group[1:] {
			if lastTouched(rec) > lastTouched(survivor) {
				survivor = rec
			}
		}

		// Non-survivor rows: one already sitting at the canonical key is
		// replaced by the Put below, the rest are deleted outright. Both
		// count as removed duplicates.
		var stale []string
		overwritten := 0
		for _, rec := range group {
			if rec.ArchiveKey == survivor.ArchiveKey {
				continue
			}
			if rec.ArchiveKey == canonical {
				overwritten++
				continue
			}
			stale = append(stale, rec.ArchiveKey)
		}

		keep := survivor
		keep.ArchiveKey = canonical
		if err := e.archives.Put(ctx, &keep); err != nil {
			e.logger.Warn("cleanup: dedupe rewrite failed", "site_id", siteID, "archive_key", canonical, "error", err)
			continue
		}
		result.TotalWritten++
		result.TotalDeleted += overwritten

		deleted, err := e.archives.BatchDelete(ctx, siteID, stale)
		result.TotalDeleted += deleted
		if err != nil {
			e.logger.Warn("cleanup: dedupe delete failed", "site_id", siteID, "error", err)
		}

		if survivor.ArchiveKey != canonical {
			// The survivor moved to the canonical key; its legacy row is a
			// leftover of the move, not a removed duplicate.
			if _, err := e.archives.BatchDelete(ctx, siteID, []string{survivor.ArchiveKey}); err != nil {
				e.logger.Warn("cleanup: dedupe legacy key delete failed", "site_id", siteID, "archive_key", survivor.ArchiveKey, "error", err)
			}
		}
	}
	result.ClientsProcessed = len(clients)

	e.logger.Info("cleanup: dedupe complete",
		"site_id", siteID,
		"client_phone", clientPhone,
		"clients", result.ClientsProcessed,
		"deleted", result.TotalDeleted,
		"written", result.TotalWritten,
	)
	return result, nil
}

func (e *Engine) listAllArchived(ctx context.Context, siteID string) ([]archive.ArchivedBooking, error) {
	var all []archive.ArchivedBooking
	var cursor map[string]types.AttributeValue
	for {
		page, err := e.archives.ListPage(ctx, siteID, cursor, e.pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Records...)
		if len(page.Cursor) == 0 {
			return all, nil
		}
		cursor = page.Cursor
	}
}

func lastTouched(rec archive.ArchivedBooking) string {
	if rec.UpdatedAt != "" {
		return rec.UpdatedAt
	}
	return rec.ArchivedAt
}
