package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"reimbursement-service/internal/util"
)

// Report processing statuses returned by the provider
const (
	ReportStatusInQueue    = "IN_QUEUE"
	ReportStatusInProgress = "IN_PROGRESS"
	ReportStatusDone       = "DONE"
	ReportStatusFatal      = "FATAL"
	ReportStatusCancelled  = "CANCELLED"
)

// ReportStatus is the polled state of a requested report.
type ReportStatus struct {
	Status           string `json:"processingStatus"`
	ReportDocumentID string `json:"reportDocumentId,omitempty"`
}

// Provider is the wire boundary to the warehouse provider's reporting API.
type Provider interface {
	CreateReport(ctx context.Context, reportType string, start, end time.Time) (string, error)
	GetReportStatus(ctx context.Context, reportID string) (*ReportStatus, error)
	DownloadReport(ctx context.Context, documentID string) (string, error)
}

// Credentials holds the OAuth client config for the provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Marketplace  string
}

// Client talks to the provider's reporting API over HTTP.
type Client struct {
	endpoint string
	creds    Credentials
	http     *http.Client
	logger   *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a provider client. Returns a configuration error when
// credentials are incomplete so the caller can fail fast at startup.
func NewClient(endpoint string, creds Credentials) (*Client, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RefreshToken == "" {
		return nil, newError(ErrKindConfiguration, "init", fmt.Errorf("incomplete provider credentials"))
	}

	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		creds:    creds,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   util.GetLogger(),
	}, nil
}

type createReportRequest struct {
	ReportType     string   `json:"reportType"`
	MarketplaceIDs []string `json:"marketplaceIds"`
	DataStartTime  string   `json:"dataStartTime"`
	DataEndTime    string   `json:"dataEndTime"`
}

type createReportResponse struct {
	ReportID string `json:"reportId"`
}

// CreateReport requests report generation for a half-open time window and
// returns the provider-assigned report id.
func (c *Client) CreateReport(ctx context.Context, reportType string, start, end time.Time) (string, error) {
	body, err := json.Marshal(createReportRequest{
		ReportType:     reportType,
		MarketplaceIDs: []string{c.creds.Marketplace},
		DataStartTime:  start.UTC().Format(time.RFC3339),
		DataEndTime:    end.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", newError(ErrKindResponse, "createReport", err)
	}

	raw, err := c.call(ctx, http.MethodPost, "/reports/2021-06-30/reports", body)
	if err != nil {
		return "", err
	}

	var resp createReportResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", newError(ErrKindResponse, "createReport", err)
	}
	if resp.ReportID == "" {
		return "", newError(ErrKindResponse, "createReport", fmt.Errorf("provider returned no report id"))
	}

	c.logger.Info("Report requested",
		zap.String("report_type", reportType),
		zap.String("report_id", resp.ReportID))
	return resp.ReportID, nil
}

// GetReportStatus fetches the current processing status of a report.
func (c *Client) GetReportStatus(ctx context.Context, reportID string) (*ReportStatus, error) {
	raw, err := c.call(ctx, http.MethodGet, "/reports/2021-06-30/reports/"+url.PathEscape(reportID), nil)
	if err != nil {
		return nil, err
	}

	var status ReportStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, newError(ErrKindResponse, "getReportStatus", err)
	}
	if status.Status == "" {
		return nil, newError(ErrKindResponse, "getReportStatus", fmt.Errorf("provider returned no processing status"))
	}
	return &status, nil
}

type reportDocumentResponse struct {
	URL string `json:"url"`
}

// DownloadReport resolves a report document id to its download URL and
// returns the raw tab-separated report body.
func (c *Client) DownloadReport(ctx context.Context, documentID string) (string, error) {
	raw, err := c.call(ctx, http.MethodGet, "/reports/2021-06-30/documents/"+url.PathEscape(documentID), nil)
	if err != nil {
		return "", err
	}

	var doc reportDocumentResponse
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", newError(ErrKindResponse, "downloadReport", err)
	}
	if doc.URL == "" {
		return "", newError(ErrKindResponse, "downloadReport", fmt.Errorf("report document has no url"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, doc.URL, nil)
	if err != nil {
		return "", newError(ErrKindTransient, "downloadReport", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", newError(ErrKindTransient, "downloadReport", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newError(ErrKindTransient, "downloadReport",
			fmt.Errorf("document fetch returned %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newError(ErrKindTransient, "downloadReport", err)
	}
	return string(data), nil
}

// call performs an authenticated API request and returns the response body.
func (c *Client) call(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return nil, newError(ErrKindTransient, path, err)
	}
	req.Header.Set("x-amz-access-token", token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, newError(ErrKindTransient, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(ErrKindTransient, path, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, newError(ErrKindConfiguration, path, fmt.Errorf("provider rejected credentials: %d", resp.StatusCode))
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, newError(ErrKindTransient, path, fmt.Errorf("provider returned %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, newError(ErrKindResponse, path, fmt.Errorf("provider returned %d: %s", resp.StatusCode, data))
	}

	return data, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a cached access token, refreshing it when close to expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.creds.RefreshToken},
		"client_id":     {c.creds.ClientID},
		"client_secret": {c.creds.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://api.amazon.com/auth/o2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", newError(ErrKindTransient, "token", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", newError(ErrKindTransient, "token", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		return "", newError(ErrKindConfiguration, "token", fmt.Errorf("token endpoint returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return "", newError(ErrKindTransient, "token", fmt.Errorf("token endpoint returned %d", resp.StatusCode))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", newError(ErrKindResponse, "token", err)
	}
	if tok.AccessToken == "" {
		return "", newError(ErrKindResponse, "token", fmt.Errorf("empty access token"))
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.accessToken, nil
}
