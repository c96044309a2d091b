// Package mediainfo publishes probe reports as pages on a telegra.ph-style
// paste host. The links decorate the stats reply; every failure here is
// non-fatal and only costs the links.
package mediainfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/jmylchreest/compressr/internal/config"
	"github.com/jmylchreest/compressr/internal/httpclient"
)

// ErrDisabled is returned when no paste host is configured.
var ErrDisabled = errors.New("paste host disabled")

// responseCap bounds how much of a paste-host response is read.
const responseCap = 1 << 20

// Publisher posts pages to the paste host. The API token is created lazily
// on first use and reused for the life of the process.
type Publisher struct {
	baseURL   string
	shortName string
	client    *httpclient.Client
	logger    *slog.Logger

	mu         sync.Mutex
	token      string
	authorName string
	authorURL  string
}

// NewPublisher creates a publisher for the configured paste host.
func NewPublisher(cfg config.TelegraphConfig, client *httpclient.Client, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		shortName:  cfg.ShortName,
		authorName: cfg.AuthorName,
		client:     client,
		logger:     logger.With(slog.String("component", "mediainfo")),
	}
}

// SetAuthor attributes future pages to the connected bot identity.
func (p *Publisher) SetAuthor(name, url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if name != "" {
		p.authorName = name
	}
	p.authorURL = url
}

// Publish creates one page and returns its URL.
func (p *Publisher) Publish(ctx context.Context, title string, content []any) (string, error) {
	if p.baseURL == "" {
		return "", ErrDisabled
	}

	token, err := p.ensureToken(ctx)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("encoding page content: %w", err)
	}

	p.mu.Lock()
	form := url.Values{
		"access_token": {token},
		"title":        {title},
		"author_name":  {p.authorName},
		"author_url":   {p.authorURL},
		"content":      {string(payload)},
	}
	p.mu.Unlock()

	var page struct {
		URL string `json:"url"`
	}
	if err := p.call(ctx, "createPage", form, &page); err != nil {
		return "", err
	}

	p.logger.Debug("page published", slog.String("url", page.URL))
	return page.URL, nil
}

// ensureToken creates the API account once.
func (p *Publisher) ensureToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" {
		return p.token, nil
	}

	form := url.Values{
		"short_name":  {p.shortName},
		"author_name": {p.authorName},
	}
	var account struct {
		AccessToken string `json:"access_token"`
	}
	if err := p.call(ctx, "createAccount", form, &account); err != nil {
		return "", fmt.Errorf("creating paste host account: %w", err)
	}
	if account.AccessToken == "" {
		return "", errors.New("paste host returned an empty token")
	}

	p.token = account.AccessToken
	p.logger.Info("paste host account created", slog.String("short_name", p.shortName))
	return p.token, nil
}

// call posts one API method and decodes the result envelope.
func (p *Publisher) call(ctx context.Context, method string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseCap))
	if err != nil {
		return fmt.Errorf("reading %s response: %w", method, err)
	}

	var envelope struct {
		OK     bool            `json:"ok"`
		Error  string          `json:"error"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("%s rejected: %s", method, envelope.Error)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decoding %s result: %w", method, err)
		}
	}
	return nil
}
