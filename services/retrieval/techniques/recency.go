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
	"math"
	"sort"
	"time"

	"github.com/seabird-labs/cormorant/services/retrieval"
)

// defaultDecayDays is how many days before a document's recency factor
// drops to 1/e.
const defaultDecayDays = 30.0

// RecencyBoost reranks candidate documents by score weighted with an
// exponential recency decay. Pure computation, no network.
//
// Thread Safety: Stateless apart from the injected clock; safe for
// concurrent use.
type RecencyBoost struct {
	// now is injectable for tests.
	now func() time.Time
}

// NewRecencyBoost creates the executor.
func NewRecencyBoost() *RecencyBoost {
	return &RecencyBoost{now: time.Now}
}

// Validate requires a candidate document list.
func (r *RecencyBoost) Validate(_ context.Context, cfg retrieval.ExecutionConfig) (bool, error) {
	_, ok := documentsFromMetadata(cfg)
	return ok, nil
}

// Execute returns the candidates reordered by recency-weighted score.
//
// Description:
//
//	boosted = score × exp(-ageDays / decayDays). Documents without a
//	CreatedAt timestamp keep their raw score. The decay constant comes from
//	the "decay_days" metadata key, defaulting to 30.
func (r *RecencyBoost) Execute(_ context.Context, cfg retrieval.ExecutionConfig) (any, error) {
	docs, ok := documentsFromMetadata(cfg)
	if !ok {
		return nil, fmt.Errorf("recency boost: metadata key %q must hold []Document", "documents")
	}

	decayDays := defaultDecayDays
	if v, ok := cfg.Metadata["decay_days"].(float64); ok && v > 0 {
		decayDays = v
	}

	now := r.now()
	out := make([]Document, len(docs))
	copy(out, docs)
	for i := range out {
		if out[i].CreatedAt.IsZero() {
			continue
		}
		ageDays := now.Sub(out[i].CreatedAt).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		out[i].Score *= math.Exp(-ageDays / decayDays)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit := resultLimit(cfg); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
