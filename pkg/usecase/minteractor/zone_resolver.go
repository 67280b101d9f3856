// 指示: miu200521358
package minteractor

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/domain/model/merrors"
)

// ゾーン名。
const (
	ZONE_ROOT  = "root"
	ZONE_SPINE = "spine"
	ZONE_NECK  = "neck"
	ZONE_LEG   = "leg"
	ZONE_ARM   = "arm"
	ZONE_FOOT  = "foot"
)

// TWIST_KEYWORD は捩りジョイント名に含まれる語。
const TWIST_KEYWORD = "twist"

// ZoneResolver はスキンジョイント名からゾーンのジョイント列を解決する。
type ZoneResolver struct {
	Character string
	// Excludes は名前に含まれると除外する語(大文字小文字を区別しない)。
	Excludes []string
}

// NewZoneResolver は捩りジョイントを除外するZoneResolverを生成する。
func NewZoneResolver(character string) *ZoneResolver {
	return &ZoneResolver{Character: character, Excludes: []string{TWIST_KEYWORD}}
}

// Resolve はゾーン名パターン(ゾーントークンに対する正規表現)と左右に一致するスキンジョイントを
// 階層の浅い順(ルートから先端)で返す。一致しない場合は空を返し、扱いは呼び出し側が決める。
func (r *ZoneResolver) Resolve(scene *model.Scene, zonePattern string, side model.Side, excludes ...string) ([]int, error) {
	matched, err := r.match(scene, zonePattern, side, func(name string) bool {
		return !r.isExcluded(name, excludes)
	})
	if err != nil {
		return nil, err
	}
	logRigDebug("ゾーン解決: zone=%s side=%s joints=%d", zonePattern, side, len(matched))
	return matched, nil
}

// Require は Resolve と同じ解決を行い、1件も一致しない場合は ResolutionError を返す。
func (r *ZoneResolver) Require(scene *model.Scene, zonePattern string, side model.Side, excludes ...string) ([]int, error) {
	matched, err := r.Resolve(scene, zonePattern, side, excludes...)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return nil, merrors.NewResolutionError(zonePattern, string(side), r.describePattern(zonePattern, side))
	}
	return matched, nil
}

// ResolveWithKeyword はゾーンに一致し、かつ keyword を名前に含むスキンジョイントを返す。
// 一致しない場合は空を返す(捩りジョイントは任意のため)。
func (r *ZoneResolver) ResolveWithKeyword(scene *model.Scene, zonePattern string, side model.Side, keyword string) ([]int, error) {
	lowered := strings.ToLower(keyword)
	return r.match(scene, zonePattern, side, func(name string) bool {
		return strings.Contains(strings.ToLower(name), lowered)
	})
}

func (r *ZoneResolver) match(scene *model.Scene, zonePattern string, side model.Side, accept func(name string) bool) ([]int, error) {
	pattern, err := regexp.Compile("^(?:" + zonePattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("ゾーンパターンが不正です: %s: %w", zonePattern, err)
	}
	matched := make([]int, 0)
	for _, node := range scene.Values() {
		if node.Kind != model.NODE_KIND_JOINT {
			continue
		}
		parsed, err := model.ParseRigName(node.Name)
		if err != nil || parsed.ChainType != model.CHAIN_TYPE_SKIN_JOINT {
			continue
		}
		if r.Character != "" && parsed.Character != r.Character {
			continue
		}
		if parsed.Side != side || !pattern.MatchString(parsed.Zone) {
			continue
		}
		if !accept(node.Name) {
			continue
		}
		matched = append(matched, node.Index())
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return scene.Depth(matched[i]) < scene.Depth(matched[j])
	})
	return matched, nil
}

func (r *ZoneResolver) isExcluded(name string, extra []string) bool {
	lowered := strings.ToLower(name)
	for _, exclude := range append(append([]string(nil), r.Excludes...), extra...) {
		if exclude != "" && strings.Contains(lowered, strings.ToLower(exclude)) {
			return true
		}
	}
	return false
}

func (r *ZoneResolver) describePattern(zonePattern string, side model.Side) string {
	character := r.Character
	if character == "" {
		character = "*"
	}
	if side == model.SIDE_NONE {
		return fmt.Sprintf("%s_%s_*_skin_joint", character, zonePattern)
	}
	return fmt.Sprintf("%s_%s_%s_*_skin_joint", character, zonePattern, side)
}

// SyncByKeyword は副リスト(捩りジョイント等)の各名前を、最も類似する主リストの名前へ割り当てる。
// 戻り値は主リストと同じ長さで、各要素は副リストのindex列。keyword が空の場合は推定する。
func SyncByKeyword(primary []string, secondary []string, keyword string) ([][]int, error) {
	buckets := make([][]int, len(primary))
	for i := range buckets {
		buckets[i] = []int{}
	}
	if len(secondary) == 0 {
		return buckets, nil
	}
	if len(primary) == 0 {
		return nil, fmt.Errorf("同期先の主リストが空です: secondary=%d", len(secondary))
	}
	if keyword == "" {
		inferred, err := inferKeyword(primary, secondary)
		if err != nil {
			return nil, err
		}
		keyword = inferred
	}

	normalizedPrimary := make([]string, len(primary))
	for i, name := range primary {
		normalizedPrimary[i] = normalizeForSync(name, keyword)
	}
	metric := metrics.NewLevenshtein()
	for j, name := range secondary {
		normalized := normalizeForSync(name, keyword)
		best := 0
		bestScore := -1.0
		for i, candidate := range normalizedPrimary {
			score := strutil.Similarity(normalized, candidate, metric)
			if score > bestScore {
				best = i
				bestScore = score
			}
		}
		buckets[best] = append(buckets[best], j)
		logRigDebug("名前同期: %s -> %s (%.3f)", name, primary[best], bestScore)
	}
	return buckets, nil
}

// inferKeyword は全ての副リスト名に含まれ、どの主リスト名にも含まれないトークンを返す。
func inferKeyword(primary []string, secondary []string) (string, error) {
	inPrimary := map[string]struct{}{}
	for _, name := range primary {
		for _, token := range syncTokens(name) {
			inPrimary[token] = struct{}{}
		}
	}
	counts := map[string]int{}
	for _, name := range secondary {
		seen := map[string]struct{}{}
		for _, token := range syncTokens(name) {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			counts[token]++
		}
	}
	candidates := make([]string, 0)
	for token, count := range counts {
		if _, ok := inPrimary[token]; ok || count != len(secondary) {
			continue
		}
		candidates = append(candidates, token)
	}
	sort.Strings(candidates)
	if len(candidates) != 1 {
		return "", fmt.Errorf("同期キーワードを推定できません: candidates=%v", candidates)
	}
	return candidates[0], nil
}

func syncTokens(name string) []string {
	tokens := make([]string, 0)
	for _, token := range strings.Split(strings.ToLower(name), "_") {
		if token == "" {
			continue
		}
		if _, err := strconv.Atoi(token); err == nil {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}

// normalizeForSync は数字・区切り・キーワードを除いた小文字名を返す。
func normalizeForSync(name string, keyword string) string {
	lowered := strings.ToLower(name)
	if keyword != "" {
		lowered = strings.ReplaceAll(lowered, strings.ToLower(keyword), "")
	}
	var builder strings.Builder
	for _, r := range lowered {
		if r == '_' || unicode.IsDigit(r) {
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

// SyncTwistJoints はシーン上の主ジョイント列に捩りジョイントを割り当て、区間内の投影位置順に並べる。
func SyncTwistJoints(scene *model.Scene, primary []int, twists []int) ([][]int, error) {
	primaryNames := make([]string, len(primary))
	for i, index := range primary {
		primaryNames[i] = scene.MustGet(index).Name
	}
	twistNames := make([]string, len(twists))
	for i, index := range twists {
		twistNames[i] = scene.MustGet(index).Name
	}
	buckets, err := SyncByKeyword(primaryNames, twistNames, TWIST_KEYWORD)
	if err != nil {
		return nil, err
	}
	result := make([][]int, len(primary))
	for i, bucket := range buckets {
		nodes := make([]int, 0, len(bucket))
		for _, j := range bucket {
			nodes = append(nodes, twists[j])
		}
		if len(nodes) > 1 && i+1 < len(primary) {
			start := scene.WorldPosition(primary[i])
			axis := scene.WorldPosition(primary[i+1]).Subed(start)
			sort.SliceStable(nodes, func(a, b int) bool {
				return scene.WorldPosition(nodes[a]).Subed(start).Dot(axis) < scene.WorldPosition(nodes[b]).Subed(start).Dot(axis)
			})
		}
		result[i] = nodes
	}
	return result, nil
}
