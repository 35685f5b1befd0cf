package provider

import "strings"

// ContentPlaceholder marks where the section text goes in a prompt template.
const ContentPlaceholder = "{content}"

// DefaultPrompt asks for a Japanese translation that keeps Markdown structure,
// code blocks, URLs and image paths intact. Settings may replace it.
const DefaultPrompt = `以下のMarkdown形式のテキストを日本語に翻訳してください。

要件:
- Markdown記法はそのまま保持してください
- 見出し、リスト、コードブロック、リンクなどのフォーマットを維持してください
- 自然で読みやすい日本語に翻訳してください
- 技術用語は適切に日本語化してください（例: "function" → "関数"）
- URLやリンクは変更しないでください
- 画像の参照パス（例: ./images/xxx.jpg）は変更しないでください
- コードブロック内のコードは翻訳しないでください

翻訳対象テキスト:
{content}`

// BuildPrompt substitutes text into template. A template without the
// placeholder falls back to DefaultPrompt.
func BuildPrompt(template, text string) string {
	if strings.Contains(template, ContentPlaceholder) {
		return strings.Replace(template, ContentPlaceholder, text, 1)
	}
	return strings.Replace(DefaultPrompt, ContentPlaceholder, text, 1)
}
