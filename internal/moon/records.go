package moon

import (
	"context"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/florianilch/moonctl/internal/apierror"
	"github.com/florianilch/moonctl/internal/httpclient"
)

// Record is a single row of a collection.
type Record = map[string]any

// RecordListParams filters and pages a record listing.
type RecordListParams struct {
	Q     string
	Sort  string
	Limit int
	After string
}

func (p RecordListParams) values() url.Values {
	v := url.Values{}
	if p.Q != "" {
		v.Set("q", p.Q)
	}
	if p.Sort != "" {
		v.Set("sort", p.Sort)
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.After != "" {
		v.Set("after", p.After)
	}
	return v
}

// RecordList is one page of records.
type RecordList struct {
	Data       []Record `json:"data"`
	NextCursor string   `json:"next_cursor,omitempty"`
	HasMore    bool     `json:"has_more"`
}

// RecordService reads and writes records of any collection.
type RecordService struct {
	requester Requester
}

// List returns a page of records of collection.
func (s *RecordService) List(ctx context.Context, collection string, params RecordListParams) (RecordList, error) {
	path, err := collectionPath(collection, "list")
	if err != nil {
		return RecordList{}, err
	}

	list, err := httpclient.JSON[RecordList](s.requester.Get(ctx, path, httpclient.WithQuery(params.values())))
	if err != nil {
		return RecordList{}, err
	}
	if list.Data == nil {
		list.Data = []Record{}
	}
	if !list.HasMore && list.NextCursor != "" {
		list.HasMore = true
	}
	return list, nil
}

// Get returns a record by id. The {"data": {...}} wrapper is removed.
func (s *RecordService) Get(ctx context.Context, collection, id string) (Record, error) {
	path, err := collectionPath(collection, "get")
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, invalidRecordID()
	}

	resp, err := s.requester.Get(ctx, path, idQuery(id))
	if err != nil {
		return nil, err
	}
	return unwrapData(resp)
}

// Create inserts a record and returns it as stored.
func (s *RecordService) Create(ctx context.Context, collection string, data Record) (Record, error) {
	path, err := collectionPath(collection, "create")
	if err != nil {
		return nil, err
	}

	resp, err := s.requester.Post(ctx, path, map[string]any{"data": data})
	if err != nil {
		return nil, err
	}
	return unwrapData(resp)
}

// Update replaces the given fields of a record.
func (s *RecordService) Update(ctx context.Context, collection, id string, data Record) (Record, error) {
	path, err := collectionPath(collection, "update")
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, invalidRecordID()
	}

	resp, err := s.requester.Post(ctx, path, map[string]any{"id": id, "data": data})
	if err != nil {
		return nil, err
	}
	return unwrapData(resp)
}

// Destroy deletes a record.
func (s *RecordService) Destroy(ctx context.Context, collection, id string) error {
	path, err := collectionPath(collection, "destroy")
	if err != nil {
		return err
	}
	if id == "" {
		return invalidRecordID()
	}

	_, err = s.requester.Post(ctx, path, map[string]string{"id": id})
	return err
}

// unwrapData decodes a record body, descending into "data" when the server
// wraps the record.
func unwrapData(resp *httpclient.Response) (Record, error) {
	body := resp.Body
	if data := gjson.GetBytes(body, "data"); data.IsObject() {
		body = []byte(data.Raw)
	}

	record := Record{}
	decoded := &httpclient.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	if err := decoded.Decode(&record); err != nil {
		return nil, err
	}
	return record, nil
}

func invalidCollection() error {
	return apierror.Invalid("collection identifier is required")
}

func invalidRecordID() error {
	return apierror.Invalid("record id is required")
}
