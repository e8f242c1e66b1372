// Package ui 负责页面渲染：确认对话框、聊天消息的展示模型与 HTML 模板。
package ui

import (
	"agrichat-web/pkg/log"
	"bytes"
	"context"
	"html/template"
)

const (
	DefaultConfirmColor      = "#4aaa87"
	DefaultConfirmHoverColor = "#3b8b6d"
	DefaultCancelColor       = "#e53e3e"
	DefaultCancelHoverColor  = "#c53030"
	DefaultConfirmText       = "확인"
	DefaultCancelText        = "닫기"
)

// ModalActions 是确认对话框的调用方需要提供的两个动作。返回值是动作完成后要跳转的地址。
type ModalActions interface {
	OnConfirm(ctx context.Context) (string, error)
	CloseModal(ctx context.Context) (string, error)
}

// RequestCloser 可选地处理点击遮罩或按下 Esc 的关闭请求，未实现时回退到 CloseModal。
type RequestCloser interface {
	OnRequestClose(ctx context.Context) (string, error)
}

// ModalFuncs 用两个函数实现 ModalActions。
type ModalFuncs struct {
	Confirm func(ctx context.Context) (string, error)
	Close   func(ctx context.Context) (string, error)
}

func (f ModalFuncs) OnConfirm(ctx context.Context) (string, error)  { return f.Confirm(ctx) }
func (f ModalFuncs) CloseModal(ctx context.Context) (string, error) { return f.Close(ctx) }

// Redirect 返回一个总是跳转到 to 的动作。
func Redirect(to string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return to, nil }
}

// ModalConfig 是对话框的展示参数。
type ModalConfig struct {
	Title             string
	Content           string
	ConfirmText       string
	CancelText        string
	ConfirmColor      string
	ConfirmHoverColor string
	CancelColor       string
	CancelHoverColor  string
}

// ModalOption 修改 ModalConfig 中的一项。
type ModalOption func(*ModalConfig)

func WithTitle(title string) ModalOption {
	return func(c *ModalConfig) { c.Title = title }
}

func WithContent(content string) ModalOption {
	return func(c *ModalConfig) { c.Content = content }
}

func WithConfirmText(text string) ModalOption {
	return func(c *ModalConfig) { c.ConfirmText = text }
}

func WithCancelText(text string) ModalOption {
	return func(c *ModalConfig) { c.CancelText = text }
}

// WithConfirmColors 设置确认按钮的颜色和悬停颜色。
func WithConfirmColors(color, hover string) ModalOption {
	return func(c *ModalConfig) { c.ConfirmColor, c.ConfirmHoverColor = color, hover }
}

// WithCancelColors 设置取消按钮的颜色和悬停颜色。
func WithCancelColors(color, hover string) ModalOption {
	return func(c *ModalConfig) { c.CancelColor, c.CancelHoverColor = color, hover }
}

// NewModalConfig 返回应用了选项的配置，未设置的项使用默认值。
func NewModalConfig(opts ...ModalOption) ModalConfig {
	cfg := ModalConfig{
		ConfirmText:       DefaultConfirmText,
		CancelText:        DefaultCancelText,
		ConfirmColor:      DefaultConfirmColor,
		ConfirmHoverColor: DefaultConfirmHoverColor,
		CancelColor:       DefaultCancelColor,
		CancelHoverColor:  DefaultCancelHoverColor,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// ConfirmModal 是一个无内部状态的确认对话框，是否显示由调用方决定。
type ConfirmModal struct {
	ID     string
	Config ModalConfig
	IsOpen bool

	actions ModalActions
}

// NewConfirmModal 创建一个对话框。
func NewConfirmModal(id string, isOpen bool, actions ModalActions, opts ...ModalOption) *ConfirmModal {
	return &ConfirmModal{ID: id, Config: NewModalConfig(opts...), IsOpen: isOpen, actions: actions}
}

// Render 返回对话框的 HTML。关闭状态下返回空字符串。
func (m *ConfirmModal) Render() template.HTML {
	if m == nil || !m.IsOpen {
		return ""
	}
	var buf bytes.Buffer
	if err := modalTemplate.ExecuteTemplate(&buf, "confirm_modal", m); err != nil {
		log.Errorf("渲染确认对话框失败, id: %s, error: %v", m.ID, err)
		return ""
	}
	return template.HTML(buf.String())
}

// Confirm 调用 OnConfirm。
func (m *ConfirmModal) Confirm(ctx context.Context) (string, error) {
	return m.actions.OnConfirm(ctx)
}

// Close 调用 CloseModal。
func (m *ConfirmModal) Close(ctx context.Context) (string, error) {
	return m.actions.CloseModal(ctx)
}

// RequestClose 处理遮罩点击或 Esc。
func (m *ConfirmModal) RequestClose(ctx context.Context) (string, error) {
	if rc, ok := m.actions.(RequestCloser); ok {
		return rc.OnRequestClose(ctx)
	}
	return m.actions.CloseModal(ctx)
}
