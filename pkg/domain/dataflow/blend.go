// 指示: miu200521358
package dataflow

import (
	"fmt"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
)

// BlendOperator はIK側とFK側のローカル回転(と位置)を相補重みで合成し、出力ノードへ書き込む。
// IK重みとFK重みはチェーン共通のスイッチ属性と共有反転ノードから読む。
type BlendOperator struct {
	Label     string
	Ik        int
	Fk        int
	Target    int
	IkWeight  Source
	FkWeight  Source
	Translate bool
}

func (o *BlendOperator) Name() string { return o.Label }

func (o *BlendOperator) Kind() string { return "blend" }

func (o *BlendOperator) Inputs() []Plug {
	inputs := []Plug{RotatePlug(o.Ik), RotatePlug(o.Fk)}
	if o.Translate {
		inputs = append(inputs, TranslatePlug(o.Ik), TranslatePlug(o.Fk))
	}
	inputs = append(inputs, o.IkWeight.Plugs(nil)...)
	return append(inputs, o.FkWeight.Plugs(nil)...)
}

func (o *BlendOperator) Outputs() []Plug {
	if o.Translate {
		return []Plug{RotatePlug(o.Target), TranslatePlug(o.Target)}
	}
	return []Plug{RotatePlug(o.Target)}
}

// Weights は現在の (IK重み, FK重み) を返す。和は常に1になる。
func (o *BlendOperator) Weights(scene *model.Scene) (float64, float64) {
	wIk := mmath.Clamped(o.IkWeight.Value(scene), 0, 1)
	wFk := mmath.Clamped(o.FkWeight.Value(scene), 0, 1)
	total := wIk + wFk
	if total <= mmath.EPSILON {
		return 0, 1
	}
	return wIk / total, wFk / total
}

func (o *BlendOperator) Evaluate(scene *model.Scene) error {
	ik, err := scene.Get(o.Ik)
	if err != nil {
		return err
	}
	fk, err := scene.Get(o.Fk)
	if err != nil {
		return err
	}
	target, err := scene.Get(o.Target)
	if err != nil {
		return err
	}
	wIk, wFk := o.Weights(scene)
	target.Rotation = fk.Rotation.Slerp(ik.Rotation, wIk)
	if o.Translate {
		target.Translation = ik.Translation.MuledScalar(wIk).Added(fk.Translation.MuledScalar(wFk))
	}
	return nil
}

// String は接続内容を返す。
func (o *BlendOperator) String() string {
	return fmt.Sprintf("blend(%s: ik=%d fk=%d -> %d)", o.Label, o.Ik, o.Fk, o.Target)
}
