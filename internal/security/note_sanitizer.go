// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NoteSanitizerService はユーザー入力の自由記述テキスト（抽出ノート、
// 通知メッセージ）をサニタイズし、マークアップ混入やXSSから保護する。
// bluemondayのStrictPolicyにより全てのHTMLタグを除去し、
// プレーンテキストのみを通過させる。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NoteSanitizerService は自由記述テキストのサニタイズ機能のインターフェースを定義する。
// イベント・通知の保存前に使用される。
type NoteSanitizerService interface {
	// Sanitize は入力テキストからHTMLマークアップを全て除去したプレーンテキストを返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// noteSanitizer はNoteSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type noteSanitizer struct {
	policy *bluemonday.Policy
}

// NewNoteSanitizer はNoteSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicy（許可タグなし）を使用するため、<b>や<script>を含む入力からは
// タグが全て剥がされ、テキスト内容だけが残る。
func NewNoteSanitizer() *noteSanitizer {
	return &noteSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力テキストからHTMLマークアップを全て除去したプレーンテキストを返す。
// bluemondayはエンティティをエスケープ形式で残すため、
// 除去後にアンエスケープして表示用のプレーンテキストへ戻す。
func (s *noteSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
