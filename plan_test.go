// SPDX-License-Identifier: Apache-2.0

package datamerge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sam-fredrickson/datamerge"
	"github.com/sam-fredrickson/datamerge/value"
)

func ptr(v value.Value) *value.Value { return &v }

func TestCreateMergePlan(t *testing.T) {
	sources := docs(
		`{"a":1,"b":{"c":1}}`,
		`{"a":2,"b":{"c":1},"d":[true]}`,
	)
	plan, err := datamerge.CreateMergePlan(context.Background(), sources)
	if err != nil {
		t.Fatal(err)
	}

	want := []datamerge.Operation{
		{Path: "a", Action: datamerge.ActionConflict, Values: docs(`1`, `2`), Resolution: ptr(js(`2`))},
		{Path: "b", Action: datamerge.ActionUpdate, Values: docs(`{"c":1}`)},
		{Path: "b.c", Action: datamerge.ActionUpdate, Values: docs(`1`)},
		{Path: "d", Action: datamerge.ActionAdd, Values: docs(`[true]`)},
		{Path: "d[0]", Action: datamerge.ActionAdd, Values: docs(`true`)},
	}
	if diff := cmp.Diff(want, plan.Operations); diff != "" {
		t.Fatalf("operations mismatch (-want +got):\n%s", diff)
	}

	wantConflicts := []datamerge.PlanConflict{
		{Path: "a", Values: docs(`1`, `2`), SuggestedResolution: js(`2`)},
	}
	if diff := cmp.Diff(wantConflicts, plan.Conflicts); diff != "" {
		t.Fatalf("conflicts mismatch (-want +got):\n%s", diff)
	}
	if !plan.HasConflicts() {
		t.Fatal("expected HasConflicts")
	}
}

func TestCreateMergePlanNeverAborts(t *testing.T) {
	sources := docs(`{"a":{"b":1}}`, `{"a":{"b":2}}`)
	before := value.Canonical(sources[0])

	plan, err := datamerge.CreateMergePlan(context.Background(), sources,
		datamerge.WithConflictResolution(datamerge.ResolveError))
	if err != nil {
		t.Fatalf("plan must not fail under the error policy: %v", err)
	}
	ops := plan.OperationsFor("a.b")
	if len(ops) != 1 || ops[0].Action != datamerge.ActionConflict {
		t.Fatalf("expected a conflict operation at a.b, got %v", ops)
	}
	if diff := cmp.Diff(js(`2`), *ops[0].Resolution); diff != "" {
		t.Fatalf("suggestion mismatch (-want +got):\n%s", diff)
	}
	if value.Canonical(sources[0]) != before {
		t.Fatal("plan must not modify its sources")
	}
}

func TestCreateMergePlanSuggestions(t *testing.T) {
	boom := errors.New("boom")
	opts := datamerge.DefaultOptions()
	opts.ConflictResolution = datamerge.ResolveCustom
	opts.RegisterConflictResolver("fails", func(context.Context, []value.Value, string) (value.Value, error) {
		return value.Value{}, boom
	})
	opts.SetPathPolicy("sum", datamerge.ConflictPolicy(datamerge.ResolveSum))
	opts.SetPathPolicy("first", datamerge.ConflictPolicy(datamerge.ResolvePreserve))
	e := mustEngine(t, opts)

	plan, err := e.CreateMergePlan(context.Background(), docs(
		`{"fails":1,"sum":1,"first":1}`,
		`{"fails":2,"sum":2,"first":2}`,
		`{"fails":3,"sum":3,"first":3}`,
	))
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]value.Value{
		"fails": js(`3`),
		"sum":   js(`6`),
		"first": js(`1`),
	}
	for _, c := range plan.Conflicts {
		if diff := cmp.Diff(want[c.Path], c.SuggestedResolution); diff != "" {
			t.Errorf("suggestion at %s mismatch (-want +got):\n%s", c.Path, diff)
		}
		if len(c.Values) != 3 {
			t.Errorf("expected 3 values at %s, got %v", c.Path, c.Values)
		}
	}
	if len(plan.Conflicts) != 3 {
		t.Fatalf("expected 3 conflicts, got %v", plan.Conflicts)
	}
}

func TestCreateMergePlanTransformAndScalars(t *testing.T) {
	opts := datamerge.DefaultOptions()
	opts.RegisterTransformer("name", func(_ context.Context, v value.Value, _ string) (value.Value, error) {
		return v, nil
	})
	e := mustEngine(t, opts)

	plan, err := e.CreateMergePlan(context.Background(), docs(`{"name":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	want := []datamerge.Operation{
		{Path: "name", Action: datamerge.ActionAdd, Values: docs(`"x"`)},
		{Path: "name", Action: datamerge.ActionTransform},
	}
	if diff := cmp.Diff(want, plan.Operations); diff != "" {
		t.Fatalf("operations mismatch (-want +got):\n%s", diff)
	}
	if plan.HasConflicts() {
		t.Fatal("unexpected conflicts")
	}

	plan, err = e.CreateMergePlan(context.Background(), docs(`1`, `2`))
	if err != nil {
		t.Fatal(err)
	}
	if ops := plan.OperationsFor(""); len(ops) != 1 || ops[0].Action != datamerge.ActionConflict {
		t.Fatalf("expected a root conflict, got %v", plan.Operations)
	}
}

func TestCreateMergePlanEmpty(t *testing.T) {
	plan, err := datamerge.CreateMergePlan(context.Background(), []value.Value{value.Null()})
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Operations) != 0 || len(plan.Conflicts) != 0 {
		t.Fatalf("expected an empty plan, got %+v", plan)
	}
}

func TestCreateMergePlanCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := datamerge.CreateMergePlan(ctx, docs(`{"a":1}`, `{"a":2}`))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
