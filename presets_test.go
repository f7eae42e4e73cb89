// SPDX-License-Identifier: Apache-2.0

package datamerge_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sam-fredrickson/datamerge"
)

func TestConfigMerger(t *testing.T) {
	e := datamerge.NewConfigMerger()

	res, err := e.Merge(context.Background(), docs(
		`{
			"database":{"host":"db1","pool":{"max":10,"min":2,"idleTimeout":300,"mode":"lifo"}},
			"headers":{"X-A":"1","X-B":"1"},
			"features":{"search":false,"beta":true}
		}`,
		`{
			"database":{"host":"db2","pool":{"max":5,"min":4,"idleTimeout":60,"mode":"fifo","extra":1}},
			"headers":{"X-B":"2","X-C":"2"},
			"features":{"search":true,"beta":false,"new":false}
		}`,
	))
	if err != nil {
		t.Fatal(err)
	}
	want := js(`{
		"database":{"host":"db2","pool":{"max":10,"min":4,"idleTimeout":60,"mode":"fifo","extra":1}},
		"headers":{"X-A":"1","X-B":"2","X-C":"2"},
		"features":{"search":true,"beta":true,"new":false}
	}`)
	if diff := cmp.Diff(want, res.Value); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	// Only database.host goes through the conflict resolver.
	if len(res.Conflicts) != 1 || res.Conflicts[0].Path != "database.host" {
		t.Fatalf("unexpected conflicts %v", res.Conflicts)
	}
}

func TestConfigMergerNulls(t *testing.T) {
	e := datamerge.NewConfigMerger()
	res, err := e.Merge(context.Background(), docs(`{"headers":{"a":"1"}}`, `{"headers":null}`))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(js(`{"headers":{"a":"1"}}`), res.Value); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigMergerOverrides(t *testing.T) {
	e := datamerge.NewConfigMerger(datamerge.WithConflictResolution(datamerge.ResolvePreserve))
	res, err := e.Merge(context.Background(), docs(`{"name":"a","features":true}`, `{"name":"b","features":false}`))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(js(`{"name":"a","features":true}`), res.Value); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestTableMerger(t *testing.T) {
	e := datamerge.NewTableMerger()
	opts := e.Options()
	if opts.ArrayMerge != datamerge.ArrayCombine || !opts.PreserveOrder {
		t.Fatalf("unexpected table options %+v", opts)
	}

	res, err := e.Merge(context.Background(), docs(
		`{
			"columns":["id","name"],
			"rows":[{"id":1,"name":"a","n":1},{"id":2,"name":"b"},["raw"]]
		}`,
		`{
			"columns":["id","label"],
			"rows":[{"id":2,"name":"B","extra":true},{"_id":3},["raw"],{"id":1,"n":2}]
		}`,
	))
	if err != nil {
		t.Fatal(err)
	}
	want := js(`{
		"columns":["id","label"],
		"rows":[{"id":1,"name":"a","n":2},{"id":2,"name":"B","extra":true},["raw"],{"_id":3}]
	}`)
	if diff := cmp.Diff(want, res.Value); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	if len(res.ConflictsAt("columns[1]")) != 1 {
		t.Fatalf("expected combine conflict at columns[1], got %v", res.Conflicts)
	}
}
