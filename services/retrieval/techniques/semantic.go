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
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/seabird-labs/cormorant/services/retrieval"
)

// SemanticSearch retrieves document chunks by vector similarity.
//
// Thread Safety: Safe for concurrent use; the Weaviate client is
// goroutine-safe.
type SemanticSearch struct {
	client *weaviate.Client
}

// NewSemanticSearch creates the executor.
//
// Outputs:
//   - *SemanticSearch - the configured executor
//   - error - non-nil if client is nil
func NewSemanticSearch(client *weaviate.Client) (*SemanticSearch, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &SemanticSearch{client: client}, nil
}

// Validate rejects invocations without query text before any network call.
func (s *SemanticSearch) Validate(_ context.Context, cfg retrieval.ExecutionConfig) (bool, error) {
	return cfg.Query != "", nil
}

// Execute runs a nearText query and returns the matching documents.
func (s *SemanticSearch) Execute(ctx context.Context, cfg retrieval.ExecutionConfig) (any, error) {
	nearText := s.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{cfg.Query})
	if cfg.SimilarityThreshold > 0 {
		nearText = nearText.WithCertainty(float32(cfg.SimilarityThreshold))
	}

	query := s.client.GraphQL().Get().
		WithClassName(className(cfg)).
		WithFields(documentFields()...).
		WithNearText(nearText).
		WithLimit(resultLimit(cfg))

	if where := collectionFilter(cfg.CollectionIDs); where != nil {
		query = query.WithWhere(where)
	}

	result, err := query.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	return parseDocuments(result, className(cfg))
}

// documentFields are the properties every search executor fetches.
func documentFields() []graphql.Field {
	return []graphql.Field{
		{Name: "chunkId"},
		{Name: "content"},
		{Name: "source"},
		{Name: "collectionId"},
		{Name: "createdAt"},
		{Name: "_additional { certainty distance score }"},
	}
}

// collectionFilter builds an Or-of-Equal filter over the collection IDs,
// nil when unrestricted.
func collectionFilter(ids []string) *filters.WhereBuilder {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) == 1 {
		return filters.Where().
			WithPath([]string{"collectionId"}).
			WithOperator(filters.Equal).
			WithValueString(ids[0])
	}

	operands := make([]*filters.WhereBuilder, len(ids))
	for i, id := range ids {
		operands[i] = filters.Where().
			WithPath([]string{"collectionId"}).
			WithOperator(filters.Equal).
			WithValueString(id)
	}
	return filters.Where().
		WithOperator(filters.Or).
		WithOperands(operands)
}

// parseDocuments converts a GraphQL response into documents.
func parseDocuments(result *models.GraphQLResponse, class string) ([]Document, error) {
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("search error: %s", result.Errors[0].Message)
	}

	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return []Document{}, nil
	}
	objects, ok := data[class].([]interface{})
	if !ok {
		return []Document{}, nil
	}

	docs := make([]Document, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue // skip malformed objects
		}

		doc := Document{
			ID:           getString(m, "chunkId"),
			Content:      getString(m, "content"),
			Source:       getString(m, "source"),
			CollectionID: getString(m, "collectionId"),
		}
		if createdStr := getString(m, "createdAt"); createdStr != "" {
			if t, err := time.Parse(time.RFC3339, createdStr); err == nil {
				doc.CreatedAt = t
			}
		}
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			// Hybrid and BM25 report "score", nearText reports certainty.
			if score, ok := additional["score"].(float64); ok && score > 0 {
				doc.Score = score
			} else if certainty, ok := additional["certainty"].(float64); ok {
				doc.Score = certainty
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
