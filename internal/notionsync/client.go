package notionsync

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jomei/notionapi"
)

// notionPageSize is the largest page size the Notion query API accepts.
const notionPageSize = 100

// NotionClient is the NotionService backed by the Notion SDK. It knows the
// layout of the dashboard database (see the prop* names in mapper.go) so the
// sync loop never builds raw API requests itself.
type NotionClient struct {
	client *notionapi.Client
}

// NewNotionClient creates a NotionClient authenticated with an integration token.
func NewNotionClient(token string) *NotionClient {
	return &NotionClient{
		client: notionapi.NewClient(notionapi.Token(token)),
	}
}

// CreatePage adds one dashboard record as a new page of the database.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	page, err := n.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("CreatePage: database %s: %w", databaseID, err)
	}
	return page, nil
}

// UpdatePage overwrites the properties of an existing record page. Properties
// not present in the map keep their current values.
func (n *NotionClient) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	page, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("UpdatePage: page %s: %w", pageID, err)
	}
	return page, nil
}

// QueryDashboardPages returns one page of results for records dated within
// [start, end], plus undated pages so the sync can clean them up. Pass the
// previous response's NextCursor to continue.
func (n *NotionClient) QueryDashboardPages(ctx context.Context, databaseID string, start, end civil.Date, cursor notionapi.Cursor) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), dashboardQuery(start, end, cursor))
	if err != nil {
		return nil, fmt.Errorf("QueryDashboardPages: database %s: %w", databaseID, err)
	}
	return resp, nil
}

// ArchivePage moves a record page to the trash. Notion has no hard delete.
func (n *NotionClient) ArchivePage(ctx context.Context, pageID string) error {
	_, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Archived: true,
	})
	if err != nil {
		return fmt.Errorf("ArchivePage: page %s: %w", pageID, err)
	}
	return nil
}

// dashboardQuery filters on the Date property: inside the range, or empty.
func dashboardQuery(start, end civil.Date, cursor notionapi.Cursor) *notionapi.DatabaseQueryRequest {
	from := notionapi.Date(start.In(time.UTC))
	to := notionapi.Date(end.In(time.UTC))

	return &notionapi.DatabaseQueryRequest{
		Filter: notionapi.OrCompoundFilter{
			notionapi.AndCompoundFilter{
				notionapi.PropertyFilter{Property: propDate, Date: &notionapi.DateFilterCondition{OnOrAfter: &from}},
				notionapi.PropertyFilter{Property: propDate, Date: &notionapi.DateFilterCondition{OnOrBefore: &to}},
			},
			notionapi.PropertyFilter{Property: propDate, Date: &notionapi.DateFilterCondition{IsEmpty: true}},
		},
		StartCursor: cursor,
		PageSize:    notionPageSize,
	}
}

var _ NotionService = (*NotionClient)(nil)
