package moon

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/florianilch/moonctl/internal/httpclient"
)

// Column describes one field of a collection.
type Column struct {
	Name     string `json:"name" validate:"moon_name"`
	Type     string `json:"type" validate:"required"`
	Nullable bool   `json:"nullable,omitempty"`
}

// CollectionInfo describes a collection.
type CollectionInfo struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns,omitempty"`
	Records int      `json:"records,omitempty"`
}

// CreateCollectionInput is the body of /collections:create.
type CreateCollectionInput struct {
	Name    string   `json:"name" validate:"moon_name"`
	Columns []Column `json:"columns" validate:"dive"`
}

// CollectionService manages collections and their schemas.
type CollectionService struct {
	requester Requester
}

// List returns all collections.
func (s *CollectionService) List(ctx context.Context) ([]CollectionInfo, error) {
	resp, err := httpclient.JSON[struct {
		Collections []CollectionInfo `json:"collections"`
		Count       int              `json:"count"`
	}](s.requester.Get(ctx, "/collections:list"))
	if err != nil {
		return nil, err
	}

	for _, c := range resp.Collections {
		if c.Name == "" {
			slog.WarnContext(ctx, "collection without name in list response")
		}
	}
	return resp.Collections, nil
}

// Get returns a single collection by name.
func (s *CollectionService) Get(ctx context.Context, name string) (CollectionInfo, error) {
	if err := ValidateName(name, "collection"); err != nil {
		return CollectionInfo{}, err
	}
	return httpclient.JSON[CollectionInfo](s.requester.Get(ctx, "/collections:get",
		httpclient.WithQuery(url.Values{"name": {name}}),
	))
}

// Create creates a collection with the given columns.
func (s *CollectionService) Create(ctx context.Context, in CreateCollectionInput) error {
	if err := ValidateName(in.Name, "collection"); err != nil {
		return err
	}
	for _, col := range in.Columns {
		if err := ValidateName(col.Name, "field"); err != nil {
			return err
		}
	}
	if err := validateInput(in); err != nil {
		return err
	}
	if in.Columns == nil {
		in.Columns = []Column{}
	}

	_, err := s.requester.Post(ctx, "/collections:create", in)
	return err
}

// Destroy deletes a collection and all its records.
func (s *CollectionService) Destroy(ctx context.Context, name string) error {
	if err := ValidateName(name, "collection"); err != nil {
		return err
	}
	_, err := s.requester.Post(ctx, "/collections:destroy", map[string]string{"name": name})
	return err
}

// Schema returns the fields of a collection. A response without a fields
// array yields an empty schema.
func (s *CollectionService) Schema(ctx context.Context, collection string) ([]Column, error) {
	path, err := collectionPath(collection, "schema")
	if err != nil {
		return nil, err
	}

	resp, err := httpclient.JSON[struct {
		Collection string   `json:"collection"`
		Fields     []Column `json:"fields"`
	}](s.requester.Get(ctx, path))
	if err != nil {
		return nil, err
	}

	if resp.Fields == nil {
		slog.WarnContext(ctx, "schema response without fields", "collection", collection)
		return []Column{}, nil
	}
	return resp.Fields, nil
}

// collectionPath builds /{collection}:{action}.
func collectionPath(collection, action string) (string, error) {
	if collection == "" {
		return "", invalidCollection()
	}
	return "/" + url.PathEscape(collection) + ":" + action, nil
}
