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

// defaultHybridAlpha balances vector (1.0) against keyword (0.0) scoring.
const defaultHybridAlpha = 0.5

// HybridSearch fuses vector and BM25 retrieval in a single Weaviate query.
//
// Thread Safety: Safe for concurrent use.
type HybridSearch struct {
	client *weaviate.Client
}

// NewHybridSearch creates the executor; errors if client is nil.
func NewHybridSearch(client *weaviate.Client) (*HybridSearch, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &HybridSearch{client: client}, nil
}

// Validate rejects invocations without query text before any network call.
func (h *HybridSearch) Validate(_ context.Context, cfg retrieval.ExecutionConfig) (bool, error) {
	return cfg.Query != "", nil
}

// Execute runs a hybrid query. The fusion alpha comes from the "alpha"
// metadata key, defaulting to an even split.
func (h *HybridSearch) Execute(ctx context.Context, cfg retrieval.ExecutionConfig) (any, error) {
	alpha := defaultHybridAlpha
	if v, ok := cfg.Metadata["alpha"].(float64); ok && v >= 0 && v <= 1 {
		alpha = v
	}

	hybrid := h.client.GraphQL().HybridArgumentBuilder().
		WithQuery(cfg.Query).
		WithAlpha(float32(alpha))

	query := h.client.GraphQL().Get().
		WithClassName(className(cfg)).
		WithFields(documentFields()...).
		WithHybrid(hybrid).
		WithLimit(resultLimit(cfg))

	if where := collectionFilter(cfg.CollectionIDs); where != nil {
		query = query.WithWhere(where)
	}

	result, err := query.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}
	return parseDocuments(result, className(cfg))
}
