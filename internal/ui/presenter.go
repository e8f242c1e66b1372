package ui

import (
	"agrichat-web/internal/config"
	"agrichat-web/internal/model"
	"bytes"
	"fmt"
	"html/template"
	"time"
	_ "time/tzdata"
)

// TurnView 是一条消息的展示模型。用户消息只作为纯文本输出，助手消息输出清洗后的 HTML。
type TurnView struct {
	IsUser    bool
	Text      string
	HTML      template.HTML
	TimeLabel string
	Icon      string
}

// ChatPage 是聊天页面模板的数据。
type ChatPage struct {
	Title         string
	ViewID        string
	SessionID     string
	SessionName   string
	LoggedIn      bool
	Turns         []TurnView
	HiddenTurns   int
	Waiting       bool
	LoadingText   string
	AssistantIcon string
	Revision      int
	Draft         string
	Notice        string
}

// Presenter 将领域对象转换为模板数据，并持有全部页面模板。
type Presenter struct {
	loc           *time.Location
	window        int
	assistantIcon string
	userIcon      string
	title         string
	loadingText   string
	markup        *Markup
	templates     *template.Template
}

// NewPresenter 加载时区并解析内嵌模板。
func NewPresenter(uiCfg config.UIConfig, chatCfg config.ChatConfig) (*Presenter, error) {
	loc, err := time.LoadLocation(uiCfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("加载时区失败: %w", err)
	}
	p := &Presenter{
		loc:           loc,
		window:        uiCfg.RenderWindow,
		assistantIcon: uiCfg.AssistantIcon,
		userIcon:      uiCfg.UserIcon,
		title:         chatCfg.Title,
		loadingText:   chatCfg.LoadingText,
		markup:        NewMarkup(),
	}
	p.templates, err = template.New("pages").Funcs(template.FuncMap{
		"postTypes": func() []model.PostType { return model.PostTypes },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("解析页面模板失败: %w", err)
	}
	return p, nil
}

// Templates 返回供 gin 使用的模板集合。
func (p *Presenter) Templates() *template.Template {
	return p.templates
}

// Title 返回站点标题。
func (p *Presenter) Title() string {
	return p.title
}

// Turn 构造单条消息的展示模型。
func (p *Presenter) Turn(t model.ChatTurn) TurnView {
	tv := TurnView{IsUser: t.IsFromUser, Text: t.Text, TimeLabel: TimeLabel(t.Timestamp, p.loc)}
	if t.IsFromUser {
		tv.Icon = p.userIcon
	} else {
		tv.Icon = p.assistantIcon
		tv.HTML = p.markup.Render(t.Text)
	}
	return tv
}

// ChatPage 构造聊天页面的数据。配置了渲染窗口时只输出最后若干条消息，存储的列表不受影响。
func (p *Presenter) ChatPage(view *model.ChatView) ChatPage {
	turns := view.Turns
	hidden := 0
	if p.window > 0 && len(turns) > p.window {
		hidden = len(turns) - p.window
		turns = turns[hidden:]
	}
	page := ChatPage{
		Title:         p.title,
		ViewID:        view.ID,
		SessionID:     view.Session.SessionID,
		SessionName:   view.Session.SessionName,
		LoggedIn:      view.LoggedIn(),
		Turns:         make([]TurnView, 0, len(turns)),
		HiddenTurns:   hidden,
		Waiting:       view.Waiting,
		LoadingText:   p.loadingText,
		AssistantIcon: p.assistantIcon,
		Revision:      view.Revision(),
	}
	for _, t := range turns {
		page.Turns = append(page.Turns, p.Turn(t))
	}
	return page
}

// RenderTurn 渲染单条消息的 HTML 片段，用于 websocket 推送。
func (p *Presenter) RenderTurn(t model.ChatTurn) (string, error) {
	var buf bytes.Buffer
	if err := p.templates.ExecuteTemplate(&buf, "turn", p.Turn(t)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderTurns 渲染完整消息列表的 HTML 片段。
func (p *Presenter) RenderTurns(view *model.ChatView) (string, error) {
	var buf bytes.Buffer
	if err := p.templates.ExecuteTemplate(&buf, "turns", p.ChatPage(view)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
