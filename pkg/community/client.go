// Package community 是远端社区服务（发帖接口）的 HTTP 客户端。
package community

import (
	"agrichat-web/internal/config"
	"agrichat-web/internal/model"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

// ErrMissingPostID 表示创建成功的响应中没有帖子 ID。
var ErrMissingPostID = errors.New("community api response has no post id")

// Credentials 是从浏览器请求中转发给社区服务的凭据。
type Credentials struct {
	CSRFToken string
	Cookies   []*http.Cookie
}

// Image 是随帖子上传的单个图片。
type Image struct {
	FileName    string
	ContentType string
	Reader      io.Reader
}

// CreatePostRequest 是一次发帖的全部字段。Image 为 nil 时不发送 image 部分。
type CreatePostRequest struct {
	Title    string
	Content  string
	PostType model.PostType
	Image    *Image
}

// Client 定义了社区服务的发帖操作。
type Client interface {
	CreatePost(ctx context.Context, req CreatePostRequest, cred Credentials) (*model.CreatedPost, error)
}

// StatusError 表示社区服务返回了非 2xx 状态码。
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("community api returned status %d: %s", e.StatusCode, e.Body)
}

type httpClient struct {
	cfg    config.CommunityAPIConfig
	client *http.Client
}

// NewClient 根据配置创建社区服务客户端。
func NewClient(cfg config.CommunityAPIConfig) Client {
	return &httpClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout()},
	}
}

func (c *httpClient) CreatePost(ctx context.Context, postReq CreatePostRequest, cred Credentials) (*model.CreatedPost, error) {
	body, contentType, err := EncodeMultipart(postReq)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + c.cfg.CreatePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create post request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if cred.CSRFToken != "" {
		req.Header.Set(c.cfg.CSRFHeader, cred.CSRFToken)
	}
	for _, ck := range cred.Cookies {
		req.AddCookie(ck)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call community api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read community api response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return decodeCreated(respBody)
}

// EncodeMultipart 按 title、content、post_type、image 的顺序编码表单。
func EncodeMultipart(req CreatePostRequest) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	fields := [][2]string{
		{"title", req.Title},
		{"content", req.Content},
		{"post_type", string(req.PostType)},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}

	if req.Image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, escapeQuotes(req.Image.FileName)))
		ct := req.Image.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create image part: %w", err)
		}
		if _, err := io.Copy(part, req.Image.Reader); err != nil {
			return nil, "", fmt.Errorf("failed to write image part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// decodeCreated 接受数字或字符串形式的 id。
func decodeCreated(body []byte) (*model.CreatedPost, error) {
	var raw struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode community api response: %w", err)
	}
	raw.ID = bytes.TrimSpace(raw.ID)
	if len(raw.ID) == 0 {
		return nil, ErrMissingPostID
	}

	var id string
	switch raw.ID[0] {
	case '"':
		if err := json.Unmarshal(raw.ID, &id); err != nil {
			return nil, fmt.Errorf("failed to decode post id: %w", err)
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw.ID, &n); err != nil {
			return nil, fmt.Errorf("failed to decode post id: %w", err)
		}
		id = n.String()
	case 'n':
		return nil, ErrMissingPostID
	default:
		return nil, fmt.Errorf("unsupported post id %s: %w", raw.ID, ErrMissingPostID)
	}
	if id == "" {
		return nil, ErrMissingPostID
	}
	return &model.CreatedPost{ID: id}, nil
}
