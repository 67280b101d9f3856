// 指示: miu200521358
package model

import (
	"fmt"
	"sort"

	"github.com/miu200521358/mu_autorig/pkg/domain/model/merrors"
)

// RigKey はレジストリ上のノード識別子を表す。
type RigKey struct {
	Zone      string
	Side      Side
	Role      string
	Index     int
	ChainType ChainType
}

// String は表示用文字列を返す。
func (k RigKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%d/%s", k.Zone, k.Side, k.Role, k.Index, k.ChainType)
}

// Registry は構築中に生成したノードを (zone, side, role) で引く明示レジストリを表す。
type Registry struct {
	entries map[RigKey]int
	keys    []RigKey
}

// NewRegistry はRegistryを生成する。
func NewRegistry() *Registry {
	return &Registry{entries: map[RigKey]int{}}
}

// Register はキーにノードindexを登録する。既存キーは NameConflictError を返す。
func (r *Registry) Register(key RigKey, index int) error {
	if existing, ok := r.entries[key]; ok {
		if existing == index {
			return nil
		}
		return merrors.NewNameConflictError(key.String())
	}
	r.entries[key] = index
	r.keys = append(r.keys, key)
	return nil
}

// Lookup はキーに対応するノードindexを返す。
func (r *Registry) Lookup(key RigKey) (int, bool) {
	index, ok := r.entries[key]
	return index, ok
}

// Len は登録件数を返す。
func (r *Registry) Len() int {
	return len(r.keys)
}

// Find はゾーン・左右・系列種別に一致するノードindexを役割名・添字順で返す。
func (r *Registry) Find(zone string, side Side, chainType ChainType) []int {
	matched := make([]RigKey, 0)
	for _, key := range r.keys {
		if key.Zone == zone && key.Side == side && key.ChainType == chainType {
			matched = append(matched, key)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Role != matched[j].Role {
			return matched[i].Role < matched[j].Role
		}
		return matched[i].Index < matched[j].Index
	})
	indexes := make([]int, 0, len(matched))
	for _, key := range matched {
		indexes = append(indexes, r.entries[key])
	}
	return indexes
}

// Keys は登録順のキー一覧を返す。
func (r *Registry) Keys() []RigKey {
	return append([]RigKey(nil), r.keys...)
}
