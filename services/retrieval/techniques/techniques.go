// Copyright (C) 2026 Seabird Labs (oss@seabirdlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package techniques provides the built-in retrieval technique executors:
// vector, keyword, and hybrid search against Weaviate, LLM-backed query
// expansion and reranking, and a recency reranker. Each executor satisfies
// the orchestrator's executor contract and knows nothing about scheduling,
// retries, or circuit breaking.
package techniques

import (
	"errors"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/seabird-labs/cormorant/services/retrieval"
)

// DocumentClassName is the default Weaviate class the search executors
// query. Override per invocation with the "class_name" metadata key.
const DocumentClassName = "DocumentChunk"

// Document is one retrieved chunk as returned by the search executors.
type Document struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	Source       string    `json:"source"`
	CollectionID string    `json:"collection_id,omitempty"`
	Score        float64   `json:"score"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
}

// ErrNilClient is returned when an executor is constructed without its
// backing client.
var ErrNilClient = errors.New("techniques: client must not be nil")

// RegisterBuiltins registers every built-in technique the given clients can
// support.
//
// Description:
//
//	The Weaviate-backed searches require client; the LLM-backed expansion
//	and rerank require llm; the recency reranker is always available. A nil
//	client simply skips its techniques so a deployment without an OpenAI
//	key still gets the searches.
func RegisterBuiltins(o *retrieval.Orchestrator, client *weaviate.Client, llm *openai.Client) error {
	if client != nil {
		semantic, err := NewSemanticSearch(client)
		if err != nil {
			return err
		}
		if err := o.Register(retrieval.TechniqueDefinition{
			Type:        retrieval.TechniqueSemanticSearch,
			Name:        "Semantic Search",
			Description: "Vector similarity search over document chunks",
			Executor:    semantic,
			Priority:    retrieval.PriorityHigh,
		}); err != nil {
			return err
		}

		keyword, err := NewKeywordSearch(client)
		if err != nil {
			return err
		}
		if err := o.Register(retrieval.TechniqueDefinition{
			Type:        retrieval.TechniqueKeywordSearch,
			Name:        "Keyword Search",
			Description: "BM25 keyword search over document chunks",
			Executor:    keyword,
			Priority:    retrieval.PriorityMedium,
		}); err != nil {
			return err
		}

		hybrid, err := NewHybridSearch(client)
		if err != nil {
			return err
		}
		if err := o.Register(retrieval.TechniqueDefinition{
			Type:        retrieval.TechniqueHybridSearch,
			Name:        "Hybrid Search",
			Description: "Fused vector and keyword search",
			Executor:    hybrid,
			Priority:    retrieval.PriorityHigh,
		}); err != nil {
			return err
		}
	}

	if llm != nil {
		if err := o.Register(retrieval.TechniqueDefinition{
			Type:        retrieval.TechniqueQueryExpansion,
			Name:        "Query Expansion",
			Description: "LLM-generated query variants",
			Executor:    NewQueryExpansion(llm),
			Priority:    retrieval.PriorityLow,
		}); err != nil {
			return err
		}
		if err := o.Register(retrieval.TechniqueDefinition{
			Type:         retrieval.TechniqueLLMRerank,
			Name:         "LLM Rerank",
			Description:  "LLM relevance reranking of retrieved documents",
			Executor:     NewLLMRerank(llm),
			Dependencies: []retrieval.TechniqueType{retrieval.TechniqueSemanticSearch},
			Priority:     retrieval.PriorityLow,
		}); err != nil {
			return err
		}
	}

	return o.Register(retrieval.TechniqueDefinition{
		Type:        retrieval.TechniqueRecencyBoost,
		Name:        "Recency Boost",
		Description: "Rerank documents with exponential recency decay",
		Executor:    NewRecencyBoost(),
		Priority:    retrieval.PriorityLow,
	})
}

// className resolves the Weaviate class for an invocation.
func className(cfg retrieval.ExecutionConfig) string {
	if name, ok := cfg.Metadata["class_name"].(string); ok && name != "" {
		return name
	}
	return DocumentClassName
}

// resultLimit resolves the result cap, defaulting to 10.
func resultLimit(cfg retrieval.ExecutionConfig) int {
	if cfg.Limit > 0 {
		return cfg.Limit
	}
	return 10
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
