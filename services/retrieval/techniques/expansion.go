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
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/seabird-labs/cormorant/services/retrieval"
)

const expansionSystemPrompt = "You rewrite search queries. Given a query, " +
	"produce up to %d alternative phrasings that could surface relevant " +
	"documents the original might miss. Output one phrasing per line, no " +
	"numbering, no commentary."

// defaultExpansions is how many variants to request when the caller does
// not set the "expansions" metadata key.
const defaultExpansions = 3

// QueryExpansion generates alternative query phrasings with an LLM.
//
// Thread Safety: Safe for concurrent use.
type QueryExpansion struct {
	client *openai.Client
	model  string
}

// NewQueryExpansion creates the executor with the default model.
func NewQueryExpansion(client *openai.Client) *QueryExpansion {
	return &QueryExpansion{client: client, model: openai.GPT4oMini}
}

// WithModel overrides the chat model and returns the executor for chaining.
func (q *QueryExpansion) WithModel(model string) *QueryExpansion {
	q.model = model
	return q
}

// Validate rejects invocations without query text before any API call.
func (q *QueryExpansion) Validate(_ context.Context, cfg retrieval.ExecutionConfig) (bool, error) {
	return cfg.Query != "", nil
}

// Execute returns the original query followed by the generated variants.
func (q *QueryExpansion) Execute(ctx context.Context, cfg retrieval.ExecutionConfig) (any, error) {
	n := defaultExpansions
	if v, ok := cfg.Metadata["expansions"].(int); ok && v > 0 {
		n = v
	}

	resp, err := q.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: q.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(expansionSystemPrompt, n)},
			{Role: openai.ChatMessageRoleUser, Content: cfg.Query},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query expansion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("query expansion: no choices returned")
	}

	queries := []string{cfg.Query}
	for _, line := range strings.Split(resp.Choices[0].Message.Content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && line != cfg.Query {
			queries = append(queries, line)
		}
		if len(queries) > n {
			break
		}
	}
	return queries, nil
}
