// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はユーザー入力の自由記述テキスト（自己紹介、
// レビューコメント、メッセージ本文等）をサニタイズし、XSS攻撃などの
// セキュリティリスクから他のユーザーを保護する。
// bluemondayライブラリの許可リストベースのポリシーを使用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はテキストのサニタイズ機能のインターフェースを定義する。
// 自由記述フィールドの保存前に使用される。
type ContentSanitizerService interface {
	// Sanitize はユーザー入力テキストをサニタイズしてプレーンテキストを返す。
	// HTMLタグは全て除去し、エンティティは復号し、前後の空白を取り除く。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 自由記述フィールドはプレーンテキストとして扱うため、StrictPolicy
// （全タグ除去）を使用する。scriptタグやon*イベント属性を含む入力からは
// タグが取り除かれ、テキスト部分のみが残る。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はユーザー入力テキストをサニタイズしてプレーンテキストを返す。
// bluemondayはタグ除去後のテキストをHTMLエスケープして返すため、
// 保存用のプレーンテキストとしてはエンティティを復号してから返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	cleaned := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
