package ui

import (
	"bytes"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Markup 将助手回答的 markdown 转为经过清洗的 HTML。
type Markup struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewMarkup 创建一个支持 GFM 的渲染器。换行按硬换行处理。
// 回答中的原始 HTML 会被保留，再由 bluemonday 统一清洗。
func NewMarkup() *Markup {
	return &Markup{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps(), html.WithUnsafe()),
		),
		policy: bluemonday.UGCPolicy(),
	}
}

// Render 渲染 markdown。转换失败时退回为转义后的纯文本。
func (m *Markup) Render(text string) template.HTML {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(m.policy.SanitizeBytes(buf.Bytes()))
}
