// Copyright (C) 2026 Seabird Labs (oss@seabirdlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package techniques

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/seabird-labs/cormorant/services/retrieval"
)

// KeywordSearch retrieves document chunks by BM25 keyword match.
//
// Thread Safety: Safe for concurrent use.
type KeywordSearch struct {
	client *weaviate.Client
}

// NewKeywordSearch creates the executor; errors if client is nil.
func NewKeywordSearch(client *weaviate.Client) (*KeywordSearch, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &KeywordSearch{client: client}, nil
}

// Validate rejects invocations without query text before any network call.
func (k *KeywordSearch) Validate(_ context.Context, cfg retrieval.ExecutionConfig) (bool, error) {
	return cfg.Query != "", nil
}

// Execute runs a BM25 query and returns the matching documents.
func (k *KeywordSearch) Execute(ctx context.Context, cfg retrieval.ExecutionConfig) (any, error) {
	bm25 := k.client.GraphQL().Bm25ArgBuilder().
		WithQuery(cfg.Query).
		WithProperties("content")

	query := k.client.GraphQL().Get().
		WithClassName(className(cfg)).
		WithFields(documentFields()...).
		WithBM25(bm25).
		WithLimit(resultLimit(cfg))

	if where := collectionFilter(cfg.CollectionIDs); where != nil {
		query = query.WithWhere(where)
	}

	result, err := query.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	return parseDocuments(result, className(cfg))
}
