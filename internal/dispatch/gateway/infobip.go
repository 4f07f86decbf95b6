package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Wire structures for the provider's advanced-textual send API and the
// message-logs API used for batched status queries.

type sendRequestBody struct {
	Messages []sendMessage `json:"messages"`
}

type sendMessage struct {
	From              string            `json:"from,omitempty"`
	Destinations      []sendDestination `json:"destinations"`
	Text              string            `json:"text"`
	NotifyURL         string            `json:"notifyUrl,omitempty"`
	Notify            bool              `json:"notify,omitempty"`
	NotifyContentType string            `json:"notifyContentType,omitempty"`
}

type sendDestination struct {
	To string `json:"to"`
}

type statusInfo struct {
	GroupID     int    `json:"groupId"`
	GroupName   string `json:"groupName,omitempty"`
	ID          int    `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

type sendResponseBody struct {
	Messages []sendResponseDetail `json:"messages"`
}

type sendResponseDetail struct {
	To        string     `json:"to"`
	MessageID string     `json:"messageId"`
	Status    statusInfo `json:"status"`
}

type logsResponseBody struct {
	Results []logResult `json:"results"`
}

type logResult struct {
	MessageID string     `json:"messageId"`
	To        string     `json:"to,omitempty"`
	Status    statusInfo `json:"status"`
}

// SubmitRequest carries the data for one single-destination send.
type SubmitRequest struct {
	From      string
	To        string
	Text      string
	NotifyURL string
}

// StatusReport is one entry of a batched status-query response.
type StatusReport struct {
	ExternalID string
	GroupCode  int
}

// SendClient submits messages through the provider's send API.
type SendClient struct {
	apiURL     string
	cred       Credential
	httpClient *http.Client
	logger     *slog.Logger
}

func newSendClient(apiURL string, cred Credential, httpClient *http.Client, logger *slog.Logger) *SendClient {
	return &SendClient{
		apiURL:     apiURL,
		cred:       cred,
		httpClient: httpClient,
		logger:     logger.With("client", "gateway_send"),
	}
}

// Submit posts one single-destination message with asynchronous delivery
// notification requested to notifyURL. On acceptance it returns the
// provider-assigned message id and the raw status group code; interpretation
// of the code is left to the caller.
func (c *SendClient) Submit(ctx context.Context, req SubmitRequest) (string, int, error) {
	body := sendRequestBody{
		Messages: []sendMessage{
			{
				From:              req.From,
				Destinations:      []sendDestination{{To: req.To}},
				Text:              req.Text,
				NotifyURL:         req.NotifyURL,
				Notify:            req.NotifyURL != "",
				NotifyContentType: "application/json",
			},
		},
	}

	reqBytes, err := json.Marshal(body)
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal send request: %w", err)
	}

	endpoint := strings.TrimRight(c.apiURL, "/") + "/sms/2/text/advanced"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(reqBytes))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create send request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.cred.SystemID, c.cred.Password)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", 0, &TransportError{Op: "send", Err: err}
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", 0, &TransportError{Op: "send", Err: err}
	}

	if err := classifyHTTPStatus(httpResp.StatusCode, respBytes); err != nil {
		c.logger.WarnContext(ctx, "Gateway send rejected", "status_code", httpResp.StatusCode, "recipient", req.To)
		return "", 0, err
	}

	var resp sendResponseBody
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return "", 0, &ProviderRejection{StatusCode: httpResp.StatusCode, Message: "unparseable send response"}
	}
	if len(resp.Messages) == 0 {
		return "", 0, &ProviderRejection{StatusCode: httpResp.StatusCode, Message: "send response contained no message details"}
	}

	detail := resp.Messages[0]
	c.logger.DebugContext(ctx, "Gateway accepted message",
		"external_id", detail.MessageID, "group_code", detail.Status.GroupID, "recipient", req.To)
	return detail.MessageID, detail.Status.GroupID, nil
}

// ReportClient queries message delivery status through the provider's logs API.
type ReportClient struct {
	apiURL     string
	cred       Credential
	httpClient *http.Client
	logger     *slog.Logger
}

func newReportClient(apiURL string, cred Credential, httpClient *http.Client, logger *slog.Logger) *ReportClient {
	return &ReportClient{
		apiURL:     apiURL,
		cred:       cred,
		httpClient: httpClient,
		logger:     logger.With("client", "gateway_report"),
	}
}

// QueryBatch issues one logs call for the given external message ids and
// returns whatever reports the provider has. Ids with no report yet are simply
// absent from the result; that is not an error.
func (c *ReportClient) QueryBatch(ctx context.Context, externalIDs []string) ([]StatusReport, error) {
	endpoint := strings.TrimRight(c.apiURL, "/") + "/sms/1/logs"
	query := url.Values{}
	query.Set("messageId", strings.Join(externalIDs, ","))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create logs request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(c.cred.SystemID, c.cred.Password)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: "query_status", Err: err}
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransportError{Op: "query_status", Err: err}
	}

	if err := classifyHTTPStatus(httpResp.StatusCode, respBytes); err != nil {
		c.logger.WarnContext(ctx, "Gateway status query rejected",
			"status_code", httpResp.StatusCode, "requested_ids", len(externalIDs))
		return nil, err
	}

	var resp logsResponseBody
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, &ProviderRejection{StatusCode: httpResp.StatusCode, Message: "unparseable logs response"}
	}

	reports := make([]StatusReport, 0, len(resp.Results))
	for _, result := range resp.Results {
		reports = append(reports, StatusReport{
			ExternalID: result.MessageID,
			GroupCode:  result.Status.GroupID,
		})
	}
	c.logger.DebugContext(ctx, "Gateway status query completed",
		"requested_ids", len(externalIDs), "reports", len(reports))
	return reports, nil
}

// classifyHTTPStatus translates a non-2xx provider response into the gateway
// error taxonomy.
func classifyHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return &AuthenticationError{StatusCode: statusCode}
	}
	message := ""
	if len(body) > 0 && len(body) < 512 {
		message = string(body)
	}
	return &ProviderRejection{StatusCode: statusCode, Message: message}
}
