// 指示: miu200521358
package model

import (
	"testing"

	"github.com/miu200521358/mu_autorig/pkg/domain/model/merrors"
)

func TestRegistryRegisterAndFind(t *testing.T) {
	registry := NewRegistry()
	keys := []RigKey{
		{Zone: "spine", Role: "spine", Index: 2, ChainType: CHAIN_TYPE_FK_CTR},
		{Zone: "spine", Role: "spine", Index: 1, ChainType: CHAIN_TYPE_FK_CTR},
		{Zone: "spine", Role: "hip", ChainType: CHAIN_TYPE_FK_CTR},
		{Zone: "spine", Role: "spine", Index: 1, ChainType: CHAIN_TYPE_MAIN_JOINT},
	}
	for i, key := range keys {
		if err := registry.Register(key, 10+i); err != nil {
			t.Fatalf("register failed: %v", err)
		}
	}
	if err := registry.Register(keys[0], 10); err != nil {
		t.Fatalf("same index re-register should succeed: %v", err)
	}
	if err := registry.Register(keys[0], 99); !merrors.IsNameConflictError(err) {
		t.Fatalf("conflict expected, got %v", err)
	}
	if registry.Len() != 4 {
		t.Fatalf("len mismatch: %d", registry.Len())
	}

	got := registry.Find("spine", SIDE_NONE, CHAIN_TYPE_FK_CTR)
	want := []int{12, 11, 10}
	if len(got) != len(want) {
		t.Fatalf("find mismatch: got=%v want=%v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("find order mismatch: got=%v want=%v", got, want)
		}
	}
	if index, ok := registry.Lookup(keys[3]); !ok || index != 13 {
		t.Fatalf("lookup mismatch: index=%d ok=%v", index, ok)
	}
	if _, ok := registry.Lookup(RigKey{Zone: "arm"}); ok {
		t.Fatalf("unknown key should be absent")
	}
}
