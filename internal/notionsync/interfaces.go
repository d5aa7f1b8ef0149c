package notionsync

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/jomei/notionapi"
)

// NotionService defines the Notion operations the sync needs.
type NotionService interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDashboardPages(ctx context.Context, databaseID string, start, end civil.Date, cursor notionapi.Cursor) (*notionapi.DatabaseQueryResponse, error)
	ArchivePage(ctx context.Context, pageID string) error
}

// DashboardReader reads dashboard records by transaction date.
type DashboardReader interface {
	QueryDashboard(ctx context.Context, start, end civil.Date) ([]domain.DashboardRecord, error)
}
