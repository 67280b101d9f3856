// 指示: miu200521358
// Package messages はCLI表示に使うメッセージを提供する。
package messages

// メッセージ一覧。
const (
	HelpUsageTitle = "使い方"
	HelpUsage      = "mu_autorig -in <skeleton.(json|gltf|glb)> [-out <rig.(json|yaml)>] [-config <config.yaml>]"

	FlagInputTip  = "入力スケルトンファイルパス"
	FlagOutputTip = "出力リグ結果ファイルパス"
	FlagConfigTip = "リグ構築設定ファイルパス(YAML)"

	MessageInputRequired   = "入力スケルトンファイルを指定してください (-in)"
	MessageInputExtFormat  = "入力拡張子が未対応です: %s"
	MessageOutputExtFormat = "出力拡張子が .json/.yaml ではありません: %s"
	MessageConfigFailed    = "設定の読み込みに失敗しました: %w"
	MessageBuildFailed     = "リグ構築に失敗しました: %w"

	LogLoadStart     = "[mu_autorig] 読み込み開始: %s"
	LogBuildSuccess  = "[mu_autorig] 構築完了: character=%s zones=%d switches=%d nodes=%d"
	LogSaveSuccess   = "[mu_autorig] 保存完了: %s"
	LogZoneSkipped   = "[mu_autorig] ゾーン省略: %s"
	LogWarningsCount = "[mu_autorig] 警告: %d件 %v"
)
