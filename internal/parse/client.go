// Package parse talks to the REST API of a Parse server.
package parse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/imroc/req/v3"

	"resource-linker/internal/config"
	"resource-linker/internal/models"
)

// Parse REST headers.
const (
	HeaderApplicationID = "X-Parse-Application-Id"
	HeaderRESTAPIKey    = "X-Parse-REST-API-Key"
)

// DefaultQuerySize is the page size of ListResources when no limit is given.
const DefaultQuerySize = 20

var (
	// ErrTransport 表示请求未能得到任何 HTTP 响应（连接被拒绝、DNS 失败、超时等）。
	ErrTransport = errors.New("parse: transport failure")
	// ErrInvalidJSON 表示响应体不是合法的 JSON。
	ErrInvalidJSON = errors.New("parse: response body is not valid JSON")
	// ErrInvalidSortColumn 表示排序字段不属于 Resource 表。
	ErrInvalidSortColumn = errors.New("parse: invalid sort column")
)

// sortableColumns 是 Resource 表中可以用于排序的列。
var sortableColumns = map[string]bool{
	models.ColumnObjectID:           true,
	models.ColumnCreatedAt:          true,
	models.ColumnUpdatedAt:          true,
	models.ColumnFilename:           true,
	models.ColumnThumbnailURLString: true,
	models.ColumnFileURLString:      true,
}

// APIError is the error body Parse returns, e.g. {"code":101,"error":"Object not found."}.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("parse: status %d code %d: %s", e.Status, e.Code, e.Message)
}

// Response is the parsed reply to a create request.
// Non-2xx replies with a JSON body are returned as a Response, not as an error.
type Response struct {
	StatusCode int
	Body       json.RawMessage
	ObjectID   string
}

// OK reports whether the server accepted the record.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ListOptions 对应原始分页查询：按 SortBy 倒序，跳过 Skip 条，最多返回 Limit 条。
type ListOptions struct {
	SortBy string
	Skip   int
	Limit  int
}

// Client 使用一个共享的 req.Client（带连接池）发送所有请求。
type Client struct {
	http      *req.Client
	classPath string
}

// NewClient creates a Parse REST client from the parse configuration.
func NewClient(cfg config.ParseConfig) (*Client, error) {
	if cfg.ApplicationID == "" {
		return nil, config.ErrMissingApplicationID
	}
	if cfg.Host == "" {
		return nil, config.ErrMissingHost
	}

	// req 默认把日志和 dump 写到 stdout，这里改为标准日志输出，stdout 只留给响应
	c := req.C().
		SetBaseURL(cfg.BaseURL()).
		SetLogger(req.NewLogger(log.Writer(), "", log.LstdFlags)).
		SetCommonHeader(HeaderApplicationID, cfg.ApplicationID)
	if cfg.RESTAPIKey != "" {
		c.SetCommonHeader(HeaderRESTAPIKey, cfg.RESTAPIKey)
	}
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}
	if cfg.Debug {
		c.EnableDumpAllTo(log.Writer()).EnableDebugLog()
	}

	return &Client{http: c, classPath: cfg.ClassPath()}, nil
}

// CreateResource POSTs rec to the class endpoint and parses the JSON reply.
// The status code is not checked: any reply whose body is JSON is returned.
func (c *Client) CreateResource(ctx context.Context, rec models.UploadRecord) (*Response, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("编码资源 %s 失败: %w", rec.Filename, err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBodyBytes(body).
		Post(c.classPath)
	if err != nil {
		return nil, fmt.Errorf("%w: POST %s: %v", ErrTransport, c.classPath, err)
	}

	raw := resp.Bytes()
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: status %d, %d bytes", ErrInvalidJSON, resp.StatusCode, len(raw))
	}

	out := &Response{StatusCode: resp.StatusCode, Body: compact(raw)}
	var created struct {
		ObjectID string `json:"objectId"`
	}
	// 非对象的 JSON（例如数组）同样合法，只是没有 objectId
	if json.Unmarshal(raw, &created) == nil {
		out.ObjectID = created.ObjectID
	}
	return out, nil
}

// ListResources runs a find query on the class sorted descending by opts.SortBy.
func (c *Client) ListResources(ctx context.Context, opts ListOptions) ([]models.Resource, error) {
	if opts.SortBy != "" && !sortableColumns[opts.SortBy] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSortColumn, opts.SortBy)
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultQuerySize
	}
	if opts.Skip < 0 {
		opts.Skip = 0
	}

	r := c.http.R().
		SetContext(ctx).
		SetQueryParam("skip", strconv.Itoa(opts.Skip)).
		SetQueryParam("limit", strconv.Itoa(opts.Limit))
	if opts.SortBy != "" {
		r.SetQueryParam("order", "-"+opts.SortBy)
	}

	resp, err := r.Get(c.classPath)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrTransport, c.classPath, err)
	}

	raw := resp.Bytes()
	if !resp.IsSuccessState() {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(raw, apiErr) != nil {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, apiErr
	}

	var result struct {
		Results []models.Resource `json:"results"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return result.Results, nil
}

func compact(raw []byte) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return json.RawMessage(raw)
	}
	return json.RawMessage(buf.Bytes())
}
