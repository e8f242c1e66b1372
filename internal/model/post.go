package model

import (
	"errors"
	"time"
)

// ErrInvalidPostType 表示分类不在 buy/sell/exchange 之内。
var ErrInvalidPostType = errors.New("invalid post type")

// PostType 是帖子的分类。
type PostType string

const (
	PostTypeBuy      PostType = "buy"
	PostTypeSell     PostType = "sell"
	PostTypeExchange PostType = "exchange"
)

// PostTypes 按表单中的展示顺序列出所有分类。
var PostTypes = []PostType{PostTypeBuy, PostTypeSell, PostTypeExchange}

// ParsePostType 校验并转换分类字符串。
func ParsePostType(s string) (PostType, bool) {
	switch PostType(s) {
	case PostTypeBuy, PostTypeSell, PostTypeExchange:
		return PostType(s), true
	}
	return "", false
}

// Label 返回分类在表单中显示的名称。
func (p PostType) Label() string {
	switch p {
	case PostTypeBuy:
		return "구매 게시판"
	case PostTypeSell:
		return "판매 게시판"
	case PostTypeExchange:
		return "품앗이 게시판"
	}
	return string(p)
}

// ImageRef 指向对象存储中暂存的草稿图片。
type ImageRef struct {
	ObjectKey   string `json:"objectKey"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// PostDraft 是尚未提交的帖子。提交失败时保留，成功后丢弃。
type PostDraft struct {
	ID       string    `json:"id"`
	ClientID string    `json:"clientId"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	Category PostType  `json:"category"`
	Image    *ImageRef `json:"image,omitempty"`
	// AppliedQueryType 记录最近一次已应用的 post_type 查询参数，
	// 同一个参数值只应用一次，不会覆盖用户之后的手动选择。
	AppliedQueryType PostType  `json:"appliedQueryType,omitempty"`
	ReturnTo         string    `json:"returnTo,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// NewPostDraft 创建一个默认分类为 buy 的空草稿。
func NewPostDraft(id, clientID string) *PostDraft {
	return &PostDraft{ID: id, ClientID: clientID, Category: PostTypeBuy}
}

// ApplyQueryType 应用 post_type 查询参数。只有合法且与上次应用的值不同时才会修改分类，返回是否修改。
func (d *PostDraft) ApplyQueryType(raw string) bool {
	pt, ok := ParsePostType(raw)
	if !ok || pt == d.AppliedQueryType {
		return false
	}
	d.AppliedQueryType = pt
	d.Category = pt
	return true
}

// SetCategory 由用户的单选输入修改分类。
func (d *PostDraft) SetCategory(raw string) error {
	pt, ok := ParsePostType(raw)
	if !ok {
		return ErrInvalidPostType
	}
	d.Category = pt
	return nil
}

// CreatedPost 是社区服务创建帖子后的响应。
type CreatedPost struct {
	ID string `json:"id"`
}
