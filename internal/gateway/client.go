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
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/models"
)

const (
	maxResponseBytes = 1 << 20
	maxReasonLength  = 500

	defaultFileName = "document"
)

// Target is the resolved gateway destination for one campaign run.
// Credentials are read once per run and reused for every recipient.
type Target struct {
	APIURL   string
	APIKey   string
	Instance string
	Provider Provider
}

// NewTarget resolves the gateway destination for instance using its secrets
func NewTarget(providers Providers, instance *models.Instance, secrets *models.InstanceSecrets) Target {
	provider := providers.Lookup(instance.ProviderType)
	return Target{
		APIURL:   strings.TrimRight(secrets.APIURL, "/"),
		APIKey:   secrets.APIKey,
		Instance: provider.InstanceIdentifier(instance),
		Provider: provider,
	}
}

// Outcome is the normalized result of one send attempt
type Outcome struct {
	OK                bool
	ProviderMessageID string
	Reason            string
}

// Sender sends one campaign message to one phone number
type Sender interface {
	Send(ctx context.Context, target Target, phone string, msg models.Message) Outcome
}

// Client sends messages through the gateway's HTTP API. It never retries.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a gateway client with the given request timeout
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type textPayload struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type mediaPayload struct {
	Number    string `json:"number"`
	MediaType string `json:"mediatype"`
	Media     string `json:"media"`
	Caption   string `json:"caption"`
	FileName  string `json:"fileName,omitempty"`
}

// Send posts msg to phone and interprets the gateway's answer
func (c *Client) Send(ctx context.Context, target Target, phone string, msg models.Message) Outcome {
	endpoint, payload := buildRequest(target, phone, msg)

	body, err := json.Marshal(payload)
	if err != nil {
		return Outcome{Reason: fmt.Sprintf("failed to encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Outcome{Reason: fmt.Sprintf("failed to build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	target.Provider.Authorize(req, target.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("gateway request failed",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return Outcome{Reason: networkReason(err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Outcome{Reason: networkReason(err)}
	}

	return interpretResponse(resp.StatusCode, raw)
}

// buildRequest selects the endpoint and payload for the message kind
func buildRequest(target Target, phone string, msg models.Message) (string, any) {
	instance := url.PathEscape(target.Instance)

	switch msg.Kind.Normalize() {
	case models.MessageKindImage:
		return fmt.Sprintf("%s/message/sendMedia/%s", target.APIURL, instance), mediaPayload{
			Number:    phone,
			MediaType: string(models.MessageKindImage),
			Media:     msg.MediaURL,
			Caption:   msg.Text,
		}

	case models.MessageKindDocument:
		return fmt.Sprintf("%s/message/sendMedia/%s", target.APIURL, instance), mediaPayload{
			Number:    phone,
			MediaType: string(models.MessageKindDocument),
			Media:     msg.MediaURL,
			Caption:   msg.Text,
			FileName:  documentFileName(msg.MediaURL),
		}

	default:
		return fmt.Sprintf("%s/message/sendText/%s", target.APIURL, instance), textPayload{
			Number: phone,
			Text:   msg.Text,
		}
	}
}

// documentFileName derives the attachment name from the media URL
func documentFileName(mediaURL string) string {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return defaultFileName
	}

	name := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	if name == "" || name == "." || name == "/" {
		return defaultFileName
	}
	return name
}

// interpretResponse treats a send as successful only when the status is 2xx
// and the body carries the message key
func interpretResponse(status int, raw []byte) Outcome {
	ok := status >= 200 && status < 300

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		if ok {
			return Outcome{Reason: "invalid response from gateway"}
		}
		return Outcome{Reason: truncate(fmt.Sprintf("HTTP %d: %s", status, strings.TrimSpace(string(raw))))}
	}

	if ok {
		if key, present := body["key"]; present && key != nil {
			return Outcome{OK: true, ProviderMessageID: messageID(key)}
		}
	}

	return Outcome{Reason: truncate(errorReason(body))}
}

// messageID extracts key.id when the key is an object
func messageID(key any) string {
	switch k := key.(type) {
	case map[string]any:
		if id, ok := k["id"].(string); ok {
			return id
		}
		encoded, _ := json.Marshal(k)
		return string(encoded)
	case string:
		return k
	default:
		return fmt.Sprint(k)
	}
}

func errorReason(body map[string]any) string {
	if reason := textOf(body["message"]); reason != "" {
		return reason
	}
	if reason := textOf(body["error"]); reason != "" {
		return reason
	}
	if response, ok := body["response"].(map[string]any); ok {
		if reason := textOf(response["message"]); reason != "" {
			return reason
		}
	}
	return "Unknown error"
}

func textOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := textOf(item); s != "" {
				parts = append(parts, s)
			} else if item != nil {
				encoded, _ := json.Marshal(item)
				parts = append(parts, string(encoded))
			}
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}

func networkReason(err error) string {
	if err == nil || err.Error() == "" {
		return "Network error"
	}
	return truncate(err.Error())
}

// truncate caps s at maxReasonLength bytes without splitting a rune
func truncate(s string) string {
	if len(s) <= maxReasonLength {
		return s
	}
	n := maxReasonLength
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
