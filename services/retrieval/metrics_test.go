// Copyright (C) 2026 Seabird Labs (oss@seabirdlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestCollector_RecordAndSnapshot(t *testing.T) {
	c := NewCollector(true, discardLogger())
	ctx := context.Background()

	c.Record(ctx, TechniqueSemanticSearch, true, 100*time.Millisecond)
	c.Record(ctx, TechniqueSemanticSearch, false, 300*time.Millisecond)
	c.Record(ctx, TechniqueKeywordSearch, true, 200*time.Millisecond)

	snap := c.Snapshot()
	if snap.TotalExecutions != 3 {
		t.Errorf("total = %d, want 3", snap.TotalExecutions)
	}
	if snap.SuccessfulExecutions != 2 || snap.FailedExecutions != 1 {
		t.Errorf("success/fail = %d/%d, want 2/1",
			snap.SuccessfulExecutions, snap.FailedExecutions)
	}
	if snap.AverageExecutionTime != 200*time.Millisecond {
		t.Errorf("average = %v, want 200ms", snap.AverageExecutionTime)
	}

	sem := snap.PerTechnique[TechniqueSemanticSearch]
	if sem.Executions != 2 || sem.Successes != 1 || sem.Failures != 1 {
		t.Errorf("semantic counters = %+v", sem)
	}
	if sem.AverageExecutionTime != 200*time.Millisecond {
		t.Errorf("semantic average = %v, want 200ms", sem.AverageExecutionTime)
	}
}

func TestCollector_Disabled(t *testing.T) {
	c := NewCollector(false, discardLogger())
	c.Record(context.Background(), TechniqueSemanticSearch, true, time.Second)

	snap := c.Snapshot()
	if snap.TotalExecutions != 0 {
		t.Errorf("disabled collector recorded %d executions", snap.TotalExecutions)
	}
}

func TestCollector_Reset(t *testing.T) {
	c := NewCollector(true, discardLogger())
	c.Record(context.Background(), TechniqueSemanticSearch, true, time.Second)

	c.Reset()
	snap := c.Snapshot()
	if snap.TotalExecutions != 0 || len(snap.PerTechnique) != 0 {
		t.Errorf("Reset left counters: %+v", snap)
	}
}

func TestCollector_ConcurrentRecord(t *testing.T) {
	c := NewCollector(true, discardLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Record(ctx, TechniqueSemanticSearch, i%2 == 0, 10*time.Millisecond)
		}(i)
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.TotalExecutions != 50 {
		t.Errorf("total = %d, want 50", snap.TotalExecutions)
	}
	if snap.SuccessfulExecutions != 25 || snap.FailedExecutions != 25 {
		t.Errorf("success/fail = %d/%d, want 25/25",
			snap.SuccessfulExecutions, snap.FailedExecutions)
	}
}

func TestCollector_SnapshotIsolation(t *testing.T) {
	c := NewCollector(true, discardLogger())
	c.Record(context.Background(), TechniqueSemanticSearch, true, time.Second)

	snap := c.Snapshot()
	snap.PerTechnique[TechniqueSemanticSearch] = TechniqueMetrics{Executions: 999}

	again := c.Snapshot()
	if again.PerTechnique[TechniqueSemanticSearch].Executions != 1 {
		t.Error("mutating a snapshot leaked into the collector")
	}
}
