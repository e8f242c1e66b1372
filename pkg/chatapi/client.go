// Package chatapi 是远端问答服务（聊天与历史记录接口）的 HTTP 客户端。
package chatapi

import (
	"agrichat-web/internal/config"
	"agrichat-web/internal/model"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Client 定义了问答服务的两个操作。
type Client interface {
	// FetchHistory 按时间顺序返回会话的历史问答。
	FetchHistory(ctx context.Context, sessionID string) ([]model.HistoryRecord, error)
	// Send 发送一个问题并返回回答。
	Send(ctx context.Context, req model.SendRequest) (*model.SendResponse, error)
}

// StatusError 表示问答服务返回了非 2xx 状态码。
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat api returned status %d: %s", e.StatusCode, e.Body)
}

type httpClient struct {
	cfg    config.ChatAPIConfig
	client *http.Client
}

// NewClient 根据配置创建问答服务客户端。
func NewClient(cfg config.ChatAPIConfig) Client {
	return &httpClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout()},
	}
}

func (c *httpClient) endpoint(path, sessionID string) string {
	path = strings.ReplaceAll(path, "{session_id}", url.PathEscape(sessionID))
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

func (c *httpClient) FetchHistory(ctx context.Context, sessionID string) ([]model.HistoryRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(c.cfg.HistoryPath, sessionID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create history request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	records, err := decodeHistory(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return records, nil
}

func (c *httpClient) Send(ctx context.Context, sendReq model.SendRequest) (*model.SendResponse, error) {
	reqBytes, err := json.Marshal(sendReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.cfg.SendPath, sendReq.SessionID), bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var resp model.SendResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	return &resp, nil
}

func (c *httpClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call chat api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat api response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// decodeHistory 同时兼容裸数组和 {"data": [...]} 两种响应格式。
func decodeHistory(body []byte) ([]model.HistoryRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []model.HistoryRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return records, nil
	}
	var wrapped struct {
		Data []model.HistoryRecord `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Data, nil
}
