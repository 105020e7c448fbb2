package ecs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	types "github.com/edubridge/campusconnect/internal/domain"
	ccerrors "github.com/edubridge/campusconnect/internal/pkg/errors"
	"github.com/edubridge/campusconnect/internal/pkg/httpx"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

// Client is the broker transport consumed by the reconciliation core.
type Client interface {
	ListResourceIDs(ctx context.Context, kind types.ResourceKind) ([]int64, error)
	// GetResource decodes the resource body into out. It returns
	// (false, nil) when the resource is gone on the broker side.
	GetResource(ctx context.Context, kind types.ResourceKind, id int64, out any) (bool, error)
	GetResourceMeta(ctx context.Context, kind types.ResourceKind, id int64) (*TransferMeta, error)
	AddResource(ctx context.Context, kind types.ResourceKind, body any, communities, members []int) (int64, error)
	UpdateResource(ctx context.Context, kind types.ResourceKind, id int64, body any, communities, members []int) error
	DeleteResource(ctx context.Context, kind types.ResourceKind, id int64) error
	// ReadEventFifo drains up to max pending change notifications.
	// With del set the broker removes the returned entries.
	ReadEventFifo(ctx context.Context, max int, del bool) ([]Event, error)
	GetMemberships(ctx context.Context) ([]Community, error)
	AddAuthToken(ctx context.Context, payload AuthTokenPayload, targetMID int) (string, error)
}

type restClient struct {
	log     *logger.Logger
	http    *http.Client
	baseURL string
	token   string
	secret  string
}

type Options struct {
	BaseURL     string
	AuthToken   string
	TokenSecret string
	Timeout     time.Duration
}

func NewClient(log *logger.Logger, opts Options) (Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("%w: broker base url required", ccerrors.ErrInvalidArgument)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &restClient{
		log:     log.With("client", "ECSClient"),
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.AuthToken,
		secret:  opts.TokenSecret,
	}, nil
}

type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.url, e.code)
}
func (e *statusError) HTTPStatusCode() int { return e.code }

func (c *restClient) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ccerrors.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s: %v", ccerrors.ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &statusError{code: resp.StatusCode, url: path}
		if httpx.IsRetryableHTTPStatus(resp.StatusCode) {
			return resp.StatusCode, fmt.Errorf("%w: %v", ccerrors.ErrTransport, serr)
		}
		return resp.StatusCode, fmt.Errorf("%w: %v", ccerrors.ErrProtocol, serr)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: decode %s %s: %v", ccerrors.ErrProtocol, method, path, err)
		}
	}
	return resp.StatusCode, nil
}

func resourcePath(kind types.ResourceKind) string {
	// "campusconnect/courses" -> "/campusconnect/courses"
	return "/" + string(kind)
}

type resourceRef struct {
	ID int64 `json:"id"`
}

func (c *restClient) ListResourceIDs(ctx context.Context, kind types.ResourceKind) ([]int64, error) {
	var refs []resourceRef
	if _, err := c.do(ctx, http.MethodGet, resourcePath(kind), nil, &refs); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	return ids, nil
}

func (c *restClient) GetResource(ctx context.Context, kind types.ResourceKind, id int64, out any) (bool, error) {
	raw := json.RawMessage{}
	code, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/%d", resourcePath(kind), id), nil, &raw)
	if err != nil {
		return false, err
	}
	if code == http.StatusNotFound || len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return false, fmt.Errorf("%w: decode %s/%d body: %v", ccerrors.ErrProtocol, kind, id, err)
		}
	}
	return true, nil
}

func (c *restClient) GetResourceMeta(ctx context.Context, kind types.ResourceKind, id int64) (*TransferMeta, error) {
	// The broker exposes sender/receiver details next to the body.
	var details struct {
		Senders []struct {
			MID int `json:"mid"`
		} `json:"senders"`
		Receivers []struct {
			MID int `json:"mid"`
		} `json:"receivers"`
		Owner struct {
			MID int `json:"mid"`
		} `json:"owner"`
	}
	code, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/%d/details", resourcePath(kind), id), nil, &details)
	if err != nil {
		return nil, err
	}
	if code == http.StatusNotFound {
		return nil, nil
	}

	meta := &TransferMeta{OwnerMID: details.Owner.MID}
	if len(details.Senders) > 0 {
		meta.SenderMID = details.Senders[0].MID
	}
	for _, recv := range details.Receivers {
		meta.Receivers = append(meta.Receivers, recv.MID)
	}
	return meta, nil
}

func targetQuery(communities, members []int) string {
	parts := make([]string, 0, 2)
	if len(communities) > 0 {
		parts = append(parts, "communities="+joinInts(communities))
	}
	if len(members) > 0 {
		parts = append(parts, "mids="+joinInts(members))
	}
	if len(parts) == 0 {
		return ""
	}
	return "?" + strings.Join(parts, "&")
}

func joinInts(vals []int) string {
	strs := make([]string, len(vals))
	for i, v := range vals {
		strs[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(strs, ",")
}

func (c *restClient) AddResource(ctx context.Context, kind types.ResourceKind, body any, communities, members []int) (int64, error) {
	var created struct {
		ID int64 `json:"id"`
	}
	path := resourcePath(kind) + targetQuery(communities, members)
	if _, err := c.do(ctx, http.MethodPost, path, body, &created); err != nil {
		return 0, err
	}
	if created.ID == 0 {
		return 0, fmt.Errorf("%w: broker did not return a resource id for %s", ccerrors.ErrProtocol, kind)
	}
	return created.ID, nil
}

func (c *restClient) UpdateResource(ctx context.Context, kind types.ResourceKind, id int64, body any, communities, members []int) error {
	path := fmt.Sprintf("%s/%d%s", resourcePath(kind), id, targetQuery(communities, members))
	_, err := c.do(ctx, http.MethodPut, path, body, nil)
	return err
}

func (c *restClient) DeleteResource(ctx context.Context, kind types.ResourceKind, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", resourcePath(kind), id), nil, nil)
	return err
}

func (c *restClient) ReadEventFifo(ctx context.Context, max int, del bool) ([]Event, error) {
	if max <= 0 {
		max = 64
	}
	path := fmt.Sprintf("/sys/events/fifo?max=%d", max)
	var events []Event
	if del {
		// POST acknowledges and removes the returned entries.
		if _, err := c.do(ctx, http.MethodPost, path, nil, &events); err != nil {
			return nil, err
		}
		return events, nil
	}
	if _, err := c.do(ctx, http.MethodGet, path, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *restClient) GetMemberships(ctx context.Context) ([]Community, error) {
	var communities []Community
	if _, err := c.do(ctx, http.MethodGet, "/sys/memberships", nil, &communities); err != nil {
		return nil, err
	}
	return communities, nil
}

func (c *restClient) AddAuthToken(ctx context.Context, payload AuthTokenPayload, targetMID int) (string, error) {
	signed, err := signAuthToken(payload, c.secret)
	if err != nil {
		return "", err
	}
	body := struct {
		Token string `json:"token"`
	}{Token: signed}
	var created struct {
		Hash string `json:"hash"`
	}
	path := fmt.Sprintf("/sys/auths?mid=%d", targetMID)
	if _, err := c.do(ctx, http.MethodPost, path, body, &created); err != nil {
		return "", err
	}
	if created.Hash == "" {
		return "", fmt.Errorf("%w: broker did not return an auth hash", ccerrors.ErrProtocol)
	}
	return created.Hash, nil
}
