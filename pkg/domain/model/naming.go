// 指示: miu200521358
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ChainType は名前末尾の系列種別を表す。
type ChainType string

const (
	CHAIN_TYPE_SKIN_JOINT ChainType = "skin_joint"
	CHAIN_TYPE_MAIN_JOINT ChainType = "main_joint"
	CHAIN_TYPE_IK_JOINT   ChainType = "ik_joint"
	CHAIN_TYPE_IK_CTR     ChainType = "ik_ctr"
	CHAIN_TYPE_FK_CTR     ChainType = "fk_ctr"
	CHAIN_TYPE_IK_HANDLE  ChainType = "ik_handle"
	CHAIN_TYPE_CTR        ChainType = "ctr"
	CHAIN_TYPE_DRIVER     ChainType = "driver"
	CHAIN_TYPE_LOC        ChainType = "loc"
	CHAIN_TYPE_GRP        ChainType = "grp"
	CHAIN_TYPE_CRV        ChainType = "crv"
	CHAIN_TYPE_UTIL       ChainType = "util"
)

// twoTokenChainTypes は2トークンで構成される系列種別。
var twoTokenChainTypes = map[string]ChainType{
	string(CHAIN_TYPE_SKIN_JOINT): CHAIN_TYPE_SKIN_JOINT,
	string(CHAIN_TYPE_MAIN_JOINT): CHAIN_TYPE_MAIN_JOINT,
	string(CHAIN_TYPE_IK_JOINT):   CHAIN_TYPE_IK_JOINT,
	string(CHAIN_TYPE_IK_CTR):     CHAIN_TYPE_IK_CTR,
	string(CHAIN_TYPE_FK_CTR):     CHAIN_TYPE_FK_CTR,
	string(CHAIN_TYPE_IK_HANDLE):  CHAIN_TYPE_IK_HANDLE,
}

// oneTokenChainTypes は1トークンの系列種別。
var oneTokenChainTypes = map[string]ChainType{
	string(CHAIN_TYPE_CTR):    CHAIN_TYPE_CTR,
	string(CHAIN_TYPE_DRIVER): CHAIN_TYPE_DRIVER,
	string(CHAIN_TYPE_LOC):    CHAIN_TYPE_LOC,
	string(CHAIN_TYPE_GRP):    CHAIN_TYPE_GRP,
	string(CHAIN_TYPE_CRV):    CHAIN_TYPE_CRV,
	string(CHAIN_TYPE_UTIL):   CHAIN_TYPE_UTIL,
}

// Side は左右区分を表す。
type Side string

const (
	SIDE_NONE  Side = ""
	SIDE_LEFT  Side = "left"
	SIDE_RIGHT Side = "right"
)

// Sides は左右の列挙順を返す。
func Sides() []Side {
	return []Side{SIDE_LEFT, SIDE_RIGHT}
}

// IsValid は既知の左右区分か判定する。
func (s Side) IsValid() bool {
	return s == SIDE_NONE || s == SIDE_LEFT || s == SIDE_RIGHT
}

// Sign は左右に応じた符号(左:+1 右:-1 なし:+1)を返す。
func (s Side) Sign() float64 {
	if s == SIDE_RIGHT {
		return -1
	}
	return 1
}

// RigName は `<character>_<zone>[_<side>]_<role>[_<index>]_<chainType>` 形式の名前を表す。
type RigName struct {
	Character string
	Zone      string
	Side      Side
	Role      string
	Index     int
	ChainType ChainType
}

// String は命名規約に従った名前を返す。Index が0以下の場合は添字を省略する。
func (n RigName) String() string {
	parts := []string{n.Character, n.Zone}
	if n.Side != SIDE_NONE {
		parts = append(parts, string(n.Side))
	}
	parts = append(parts, n.Role)
	if n.Index > 0 {
		parts = append(parts, fmt.Sprintf("%02d", n.Index))
	}
	parts = append(parts, string(n.ChainType))
	return strings.Join(parts, "_")
}

// With は系列種別だけ差し替えた名前を返す。
func (n RigName) With(chainType ChainType) RigName {
	n.ChainType = chainType
	return n
}

// WithRole は役割名だけ差し替えた名前を返す。
func (n RigName) WithRole(role string) RigName {
	n.Role = role
	return n
}

// WithIndex は添字だけ差し替えた名前を返す。
func (n RigName) WithIndex(index int) RigName {
	n.Index = index
	return n
}

// Key はレジストリキーを返す。
func (n RigName) Key() RigKey {
	return RigKey{
		Zone:      n.Zone,
		Side:      n.Side,
		Role:      n.Role,
		Index:     n.Index,
		ChainType: n.ChainType,
	}
}

// ParseRigName は命名規約の名前を分解する。
func ParseRigName(name string) (RigName, error) {
	tokens := strings.Split(name, "_")
	if len(tokens) < 4 {
		return RigName{}, fmt.Errorf("命名規約に一致しません: %s", name)
	}

	var chainType ChainType
	if ct, ok := twoTokenChainTypes[strings.Join(tokens[len(tokens)-2:], "_")]; ok {
		chainType = ct
		tokens = tokens[:len(tokens)-2]
	} else if ct, ok := oneTokenChainTypes[tokens[len(tokens)-1]]; ok {
		chainType = ct
		tokens = tokens[:len(tokens)-1]
	} else {
		return RigName{}, fmt.Errorf("系列種別が不明です: %s", name)
	}
	if len(tokens) < 3 {
		return RigName{}, fmt.Errorf("命名規約に一致しません: %s", name)
	}

	parsed := RigName{
		Character: tokens[0],
		Zone:      tokens[1],
		ChainType: chainType,
	}
	rest := tokens[2:]
	if side := Side(rest[0]); side == SIDE_LEFT || side == SIDE_RIGHT {
		parsed.Side = side
		rest = rest[1:]
	}
	if len(rest) > 1 {
		if index, err := strconv.Atoi(rest[len(rest)-1]); err == nil {
			parsed.Index = index
			rest = rest[:len(rest)-1]
		}
	}
	if len(rest) == 0 {
		return RigName{}, fmt.Errorf("役割名がありません: %s", name)
	}
	parsed.Role = strings.Join(rest, "_")
	return parsed, nil
}
