package notionsync

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/money-mirror/internal/logger"
	"github.com/jomei/notionapi"
	"golang.org/x/time/rate"
)

// DefaultRequestsPerSecond stays under Notion's documented average limit.
const DefaultRequestsPerSecond = 3

// Options tunes a sync run.
type Options struct {
	DryRun bool
	// Limiter paces write calls. Nil uses DefaultRequestsPerSecond.
	Limiter *rate.Limiter
}

// SyncResult counts what a sync changed.
type SyncResult struct {
	Created   int
	Updated   int
	Deleted   int
	Unchanged int
	Failed    int
}

// SyncDashboard mirrors the dashboard records dated within [start, end] into a
// Notion database. Pages are matched by transaction id: missing ones are
// created, pages whose category changed are updated, and pages in the range
// whose transaction no longer exists are archived. Per-page failures are
// logged and counted without stopping the run.
func SyncDashboard(ctx context.Context, repo DashboardReader, client NotionService, databaseID string, start, end civil.Date, opts Options) (*SyncResult, error) {
	log := logger.FromContext(ctx)
	limiter := opts.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1)
	}

	log.Info().
		Str("start_date", start.String()).
		Str("end_date", end.String()).
		Bool("dry_run", opts.DryRun).
		Msg("Starting dashboard sync to Notion")

	records, err := repo.QueryDashboard(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("SyncDashboard: query dashboard: %w", err)
	}

	pages, err := queryAllNotionPages(ctx, client, databaseID, start, end)
	if err != nil {
		return nil, fmt.Errorf("SyncDashboard: %w", err)
	}
	log.Info().Int("records", len(records)).Int("notion_pages", len(pages)).Msg("Loaded sync inputs")

	existing := make(map[string]pageState, len(pages))
	var stale []pageState
	wanted := make(map[string]bool, len(records))
	for _, rec := range records {
		wanted[rec.TransactionID] = true
	}
	for _, page := range pages {
		st := readPage(page)
		if st.Date != nil && (st.Date.Before(start) || st.Date.After(end)) {
			continue
		}
		if st.TransactionID == "" || !wanted[st.TransactionID] {
			stale = append(stale, st)
			continue
		}
		if _, dup := existing[st.TransactionID]; dup {
			stale = append(stale, st)
			continue
		}
		existing[st.TransactionID] = st
	}

	res := &SyncResult{}
	// write reports whether the call succeeded; dry runs always do.
	write := func(action string, fn func() error) bool {
		if opts.DryRun {
			return true
		}
		err := limiter.Wait(ctx)
		if err == nil {
			err = fn()
		}
		if err != nil {
			res.Failed++
			log.Warn().Err(err).Str("action", action).Msg("Notion write failed")
			return false
		}
		return true
	}

	for _, st := range stale {
		if write("archive", func() error { return client.ArchivePage(ctx, st.PageID) }) {
			res.Deleted++
		}
	}

	for _, rec := range records {
		props := RecordToNotionProperties(rec)
		st, ok := existing[rec.TransactionID]
		switch {
		case !ok:
			if write("create", func() error {
				_, err := client.CreatePage(ctx, databaseID, props)
				return err
			}) {
				res.Created++
			}
		case st.Category != rec.GeneralCategory || st.Subcategory != rec.DetailedCategory:
			if write("update", func() error {
				_, err := client.UpdatePage(ctx, st.PageID, props)
				return err
			}) {
				res.Updated++
			}
		default:
			res.Unchanged++
		}
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("deleted", res.Deleted).
		Int("unchanged", res.Unchanged).
		Int("failed", res.Failed).
		Msg("Dashboard sync complete")
	return res, nil
}

// queryAllNotionPages reads every page in the date range, following cursors.
func queryAllNotionPages(ctx context.Context, client NotionService, databaseID string, start, end civil.Date) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		resp, err := client.QueryDashboardPages(ctx, databaseID, start, end, cursor)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}
		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}
	return allPages, nil
}
