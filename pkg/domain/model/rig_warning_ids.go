// 指示: miu200521358
package model

const (
	// RigWarningOptionalZoneAbsent は任意ゾーン未検出警告。
	RigWarningOptionalZoneAbsent = "RigWarningOptionalZoneAbsent"
	// RigWarningShapeFallback はシェイプライブラリ未登録による既定形状採用警告。
	RigWarningShapeFallback = "RigWarningShapeFallback"
	// RigWarningTwistBucketEmpty は捩りジョイント同期結果が空の区間警告。
	RigWarningTwistBucketEmpty = "RigWarningTwistBucketEmpty"
	// RigWarningDegeneratePolePlane はポール平面が退化したため補助軸を使った警告。
	RigWarningDegeneratePolePlane = "RigWarningDegeneratePolePlane"
	// RigWarningCurveFitResidual は曲線フィットが許容値に収まらなかった警告。
	RigWarningCurveFitResidual = "RigWarningCurveFitResidual"
	// RigWarningBuildCacheHit は構築済みゾーンを再利用した警告。
	RigWarningBuildCacheHit = "RigWarningBuildCacheHit"
)

// RigWarningIDs は警告ID一覧を返す。
func RigWarningIDs() []string {
	return []string{
		RigWarningOptionalZoneAbsent,
		RigWarningShapeFallback,
		RigWarningTwistBucketEmpty,
		RigWarningDegeneratePolePlane,
		RigWarningCurveFitResidual,
		RigWarningBuildCacheHit,
	}
}
