package mirror

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/shared"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "certanchor"

	// anchor messages are at most 1 KiB; pages of them stay far below this
	maxResponseSize = 4 << 20
)

type Config struct {
	// Network selects the public mirror node when BaseURL is empty.
	Network    string
	BaseURL    string
	HTTPClient *http.Client
	APIKey     string
	UserAgent  string
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	userAgent  string
}

// NewClient creates a new Client.
func NewClient(config Config) (*Client, error) {
	raw := strings.TrimSpace(config.BaseURL)
	if raw == "" {
		networkURL, err := shared.MirrorBaseURL(config.Network)
		if err != nil {
			return nil, err
		}
		raw = networkURL
	}

	base, err := url.Parse(strings.TrimRight(raw, "/"))
	switch {
	case err != nil:
		return nil, fmt.Errorf("invalid mirror base URL: %w", err)
	case base.Scheme != "http" && base.Scheme != "https":
		return nil, fmt.Errorf("invalid mirror base URL %q: scheme must be http or https", raw)
	case base.Host == "":
		return nil, fmt.Errorf("invalid mirror base URL %q: host is required", raw)
	}

	client := &Client{
		baseURL:    strings.TrimRight(base.String(), "/"),
		httpClient: config.HTTPClient,
		apiKey:     strings.TrimSpace(config.APIKey),
		userAgent:  strings.TrimSpace(config.UserAgent),
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if client.userAgent == "" {
		client.userAgent = defaultUserAgent
	}
	return client, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetTopicInfo returns the topic entity, including its memo.
func (c *Client) GetTopicInfo(ctx context.Context, topicID string) (TopicInfo, error) {
	topicPath, err := topicPath(topicID)
	if err != nil {
		return TopicInfo{}, err
	}

	var info TopicInfo
	err = c.get(ctx, topicPath, &info)
	return info, err
}

// GetTopicMessages follows pagination links until the node reports no next
// page or Limit messages were collected.
func (c *Client) GetTopicMessages(
	ctx context.Context,
	topicID string,
	options MessageQueryOptions,
) ([]TopicMessage, error) {
	topicPath, err := topicPath(topicID)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	if options.SequenceNumber != "" {
		query.Set("sequencenumber", options.SequenceNumber)
	}
	if options.Limit > 0 {
		query.Set("limit", strconv.Itoa(options.Limit))
	}
	if options.Order != "" {
		query.Set("order", options.Order)
	}

	next := topicPath + "/messages"
	if len(query) > 0 {
		next += "?" + query.Encode()
	}

	var messages []TopicMessage
	for next != "" {
		var page topicMessagesResponse
		if err := c.get(ctx, next, &page); err != nil {
			return nil, err
		}

		messages = append(messages, page.Messages...)
		if options.Limit > 0 && len(messages) >= options.Limit {
			return messages[:options.Limit], nil
		}
		next = page.Links.Next
	}
	return messages, nil
}

// GetTopicMessageBySequence returns the message with the given sequence
// number, or nil when the node does not have it yet.
func (c *Client) GetTopicMessageBySequence(
	ctx context.Context,
	topicID string,
	sequence int64,
) (*TopicMessage, error) {
	if sequence <= 0 {
		return nil, fmt.Errorf("sequence must be positive, got %d", sequence)
	}
	topicPath, err := topicPath(topicID)
	if err != nil {
		return nil, err
	}

	var message TopicMessage
	err = c.get(ctx, fmt.Sprintf("%s/messages/%d", topicPath, sequence), &message)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// DecodeMessageData returns the raw submitted bytes of message.
func DecodeMessageData(message TopicMessage) ([]byte, error) {
	if strings.TrimSpace(message.Message) == "" {
		return nil, fmt.Errorf("message %d has no payload", message.SequenceNumber)
	}
	return base64.StdEncoding.DecodeString(message.Message)
}

// ParseConsensusTimestamp parses the mirror node "seconds.nanos" form.
func ParseConsensusTimestamp(value string) (time.Time, error) {
	secondsPart, nanosPart, _ := strings.Cut(strings.TrimSpace(value), ".")
	seconds, err := strconv.ParseInt(secondsPart, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid consensus timestamp %q: %w", value, err)
	}

	var nanos int64
	if nanosPart != "" {
		if len(nanosPart) > 9 {
			return time.Time{}, fmt.Errorf("invalid consensus timestamp %q: too many fractional digits", value)
		}
		nanosPart += strings.Repeat("0", 9-len(nanosPart))
		nanos, err = strconv.ParseInt(nanosPart, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid consensus timestamp %q: %w", value, err)
		}
	}

	return time.Unix(seconds, nanos).UTC(), nil
}

func topicPath(topicID string) (string, error) {
	topicID = strings.TrimSpace(topicID)
	if topicID == "" {
		return "", fmt.Errorf("topic ID is required")
	}
	return "/api/v1/topics/" + url.PathEscape(topicID), nil
}

// get fetches ref, a path below the base URL or an absolute pagination link,
// and decodes the JSON body into target.
func (c *Client) get(ctx context.Context, ref string, target any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(ref), nil)
	if err != nil {
		return fmt.Errorf("failed to create mirror node request: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("mirror node request failed: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read mirror node response: %w", err)
	}
	if response.StatusCode/100 != 2 {
		return &StatusError{StatusCode: response.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, target); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

func (c *Client) resolve(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return c.baseURL + ref
}
