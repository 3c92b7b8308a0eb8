package sources

import (
	"slices"
	"testing"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&Source{ID: "monta"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&Source{ID: "nobil_realtime"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := r.Register(&Source{ID: "monta"}); err == nil {
		t.Error("duplicate registration accepted")
	}

	src, err := r.Get("monta")
	if err != nil || src.ID != "monta" {
		t.Errorf("Get(monta) = %+v, %v", src, err)
	}
	if _, err := r.Get("unknown"); err == nil {
		t.Error("Get of unknown source succeeded")
	}

	if ids := r.IDs(); !slices.Equal(ids, []string{"monta", "nobil_realtime"}) {
		t.Errorf("IDs = %v, want sorted", ids)
	}
}
