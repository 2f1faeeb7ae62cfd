// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザーが投稿する書籍情報や翻訳本文からHTMLを取り除き、
// フロントエンドで表示した際のXSSを防ぐ。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー投稿テキストのサニタイズ機能のインターフェース。
// 書籍・翻訳の保存前に使用される。
type TextSanitizer interface {
	// Sanitize は全てのHTMLタグを除去したプレーンテキストを返す。
	// script, styleなどの要素は中身ごと除去される。
	// エンティティは元の文字に戻すため、"a & b" や "x < y" はそのまま保持される。
	// エスケープされたタグを戻した結果に再びタグが現れる場合は、それも除去する。
	// 前後の空白は取り除く。出力を再度渡しても変化しない（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので共有してよい。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// maxSanitizePasses はエスケープの入れ子を剥がす回数の上限。
const maxSanitizePasses = 4

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はHTMLを除去したプレーンテキストを返す。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	text := raw
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(text))
		if next == text {
			break
		}
		text = next
	}
	return strings.TrimSpace(text)
}

var _ TextSanitizer = (*textSanitizer)(nil)
