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
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/seabird-labs/cormorant/services/retrieval"
)

const rerankSystemPrompt = "You rank document snippets by relevance to a " +
	"query. Given a query and numbered snippets, output the snippet numbers " +
	"from most to least relevant, comma separated, nothing else."

// LLMRerank reorders candidate documents by LLM-judged relevance.
//
// Description:
//
//	Candidates arrive through the "documents" metadata key as []Document.
//	The executor truncates each snippet, asks the model for an ordering,
//	and returns the documents in that order. Numbers the model omits keep
//	their original relative order at the tail; numbers it invents are
//	ignored.
//
// Thread Safety: Safe for concurrent use.
type LLMRerank struct {
	client *openai.Client
	model  string
}

// NewLLMRerank creates the executor with the default model.
func NewLLMRerank(client *openai.Client) *LLMRerank {
	return &LLMRerank{client: client, model: openai.GPT4oMini}
}

// WithModel overrides the chat model and returns the executor for chaining.
func (r *LLMRerank) WithModel(model string) *LLMRerank {
	r.model = model
	return r
}

// Validate requires query text and a candidate document list.
func (r *LLMRerank) Validate(_ context.Context, cfg retrieval.ExecutionConfig) (bool, error) {
	if cfg.Query == "" {
		return false, nil
	}
	_, ok := documentsFromMetadata(cfg)
	return ok, nil
}

// Execute returns the candidates reordered by model-judged relevance.
func (r *LLMRerank) Execute(ctx context.Context, cfg retrieval.ExecutionConfig) (any, error) {
	docs, ok := documentsFromMetadata(cfg)
	if !ok {
		return nil, fmt.Errorf("llm rerank: metadata key %q must hold []Document", "documents")
	}
	if len(docs) <= 1 {
		return docs, nil
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Query: %s\n\n", cfg.Query)
	for i, doc := range docs {
		fmt.Fprintf(&prompt, "[%d] %s\n\n", i+1, snippet(doc.Content, 500))
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: rerankSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt.String()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("llm rerank: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm rerank: no choices returned")
	}

	return applyOrdering(docs, resp.Choices[0].Message.Content), nil
}

// applyOrdering reorders docs by the model's comma-separated 1-based
// numbers, appending anything the model omitted.
func applyOrdering(docs []Document, answer string) []Document {
	out := make([]Document, 0, len(docs))
	seen := make(map[int]bool, len(docs))

	for _, tok := range strings.Split(answer, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil || n < 1 || n > len(docs) || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, docs[n-1])
	}
	for i, doc := range docs {
		if !seen[i+1] {
			out = append(out, doc)
		}
	}
	return out
}

// documentsFromMetadata extracts the candidate list from the config.
func documentsFromMetadata(cfg retrieval.ExecutionConfig) ([]Document, bool) {
	docs, ok := cfg.Metadata["documents"].([]Document)
	return docs, ok
}

func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
