package channel

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sahmacademy/sahmbot/internal/bus"
	"github.com/sahmacademy/sahmbot/internal/config"
)

const messengerChannelName = "messenger"

const (
	messengerDefaultPort       = 9890
	messengerDefaultGraphURL   = "https://graph.facebook.com/v19.0"
	messengerMaxMessageLen     = 2000
	messengerMaxQuickReplies   = 13
	messengerSendMaxRetries    = 3
	messengerMsgCacheTTL       = 5 * time.Minute
	messengerMsgCacheScanEvery = 1 * time.Minute
)

type MessengerClient interface {
	SendMessage(ctx context.Context, recipientID string, msg bus.OutboundMessage) error
	Close()
}

type MessengerClientFactory func(cfg config.MessengerConfig) MessengerClient

type defaultMessengerClient struct {
	graphURL   string
	pageToken  string
	httpClient *http.Client
}

type messengerAPIError struct {
	Code    int
	Subcode int
	Msg     string
}

func (e *messengerAPIError) Error() string {
	return fmt.Sprintf("messenger send error: %d.%d %s", e.Code, e.Subcode, e.Msg)
}

// Code 1200 is a temporary send failure, 613 is a rate limit hit.
func (e *messengerAPIError) IsRetryable() bool {
	return e.Code == 1200 || e.Code == 613
}

type messengerHTTPStatusError struct {
	Code int
	Body string
}

func (e *messengerHTTPStatusError) Error() string {
	return fmt.Sprintf("messenger graph api status %d: %s", e.Code, e.Body)
}

func newDefaultMessengerClient(cfg config.MessengerConfig) MessengerClient {
	graphURL := strings.TrimRight(strings.TrimSpace(cfg.GraphURL), "/")
	if graphURL == "" {
		graphURL = messengerDefaultGraphURL
	}
	return &defaultMessengerClient{
		graphURL:   graphURL,
		pageToken:  cfg.PageToken,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *defaultMessengerClient) Close() {}

func (c *defaultMessengerClient) SendMessage(ctx context.Context, recipientID string, msg bus.OutboundMessage) error {
	if strings.TrimSpace(recipientID) == "" {
		return fmt.Errorf("messenger recipient id is required")
	}

	chunks := chunkByRunes(msg.Content, messengerMaxMessageLen)
	for i, chunk := range chunks {
		payload := map[string]any{
			"recipient":      map[string]string{"id": recipientID},
			"messaging_type": "RESPONSE",
		}

		message := map[string]any{"text": chunk}
		// Quick replies only make sense on the final chunk.
		if i == len(chunks)-1 {
			if replies := buildQuickReplies(msg.Suggestions); len(replies) > 0 {
				message["quick_replies"] = replies
			}
		}
		payload["message"] = message

		if err := c.sendWithRetry(ctx, payload); err != nil {
			return err
		}
	}

	return nil
}

func buildQuickReplies(suggestions []bus.Suggestion) []map[string]string {
	if len(suggestions) == 0 {
		return nil
	}
	if len(suggestions) > messengerMaxQuickReplies {
		suggestions = suggestions[:messengerMaxQuickReplies]
	}

	replies := make([]map[string]string, 0, len(suggestions))
	for _, s := range suggestions {
		label := strings.TrimSpace(s.Label)
		text := strings.TrimSpace(s.Text)
		if label == "" || text == "" {
			continue
		}
		replies = append(replies, map[string]string{
			"content_type": "text",
			"title":        label,
			"payload":      text,
		})
	}
	return replies
}

func chunkByRunes(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

func (c *defaultMessengerClient) sendWithRetry(ctx context.Context, payload map[string]any) error {
	var lastErr error
	for attempt := 1; attempt <= messengerSendMaxRetries; attempt++ {
		err := c.sendOnce(ctx, payload)
		if err == nil {
			return nil
		}

		lastErr = err
		if !c.shouldRetry(err) || attempt == messengerSendMaxRetries {
			return err
		}

		backoff := time.Duration(attempt*attempt) * 100 * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return lastErr
}

func (c *defaultMessengerClient) shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *messengerAPIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}

	var statusErr *messengerHTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500
	}

	return true
}

func (c *defaultMessengerClient) sendOnce(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal messenger payload: %w", err)
	}

	url := fmt.Sprintf("%s/me/messages?access_token=%s", c.graphURL, c.pageToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create messenger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send messenger message: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	var result struct {
		Error *struct {
			Code    int    `json:"code"`
			Subcode int    `json:"error_subcode"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &result); err == nil && result.Error != nil {
		return &messengerAPIError{
			Code:    result.Error.Code,
			Subcode: result.Error.Subcode,
			Msg:     result.Error.Message,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &messengerHTTPStatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(raw)),
		}
	}

	return nil
}

type messengerMsgCache struct {
	mu     sync.Mutex
	items  map[string]time.Time
	ttl    time.Duration
	lastGC time.Time
}

func newMessengerMsgCache(ttl time.Duration) *messengerMsgCache {
	if ttl <= 0 {
		ttl = messengerMsgCacheTTL
	}
	return &messengerMsgCache{
		items: make(map[string]time.Time),
		ttl:   ttl,
	}
}

func (c *messengerMsgCache) Seen(key string) bool {
	if key == "" {
		return false
	}

	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if exp, ok := c.items[key]; ok {
		if now.Before(exp) {
			return true
		}
		delete(c.items, key)
	}

	c.items[key] = now.Add(c.ttl)
	c.gcLocked(now)

	return false
}

func (c *messengerMsgCache) gcLocked(now time.Time) {
	if c.lastGC.IsZero() || now.Sub(c.lastGC) >= messengerMsgCacheScanEvery {
		for messageID, exp := range c.items {
			if now.After(exp) {
				delete(c.items, messageID)
			}
		}
		c.lastGC = now
	}
}

type MessengerChannel struct {
	BaseChannel
	cfg           config.MessengerConfig
	server        *http.Server
	cancel        context.CancelFunc
	client        MessengerClient
	clientFactory MessengerClientFactory
	msgCache      *messengerMsgCache
}

var defaultMessengerClientFactory MessengerClientFactory = func(cfg config.MessengerConfig) MessengerClient {
	return newDefaultMessengerClient(cfg)
}

func NewMessengerChannel(cfg config.MessengerConfig, b *bus.MessageBus) (*MessengerChannel, error) {
	return NewMessengerChannelWithFactory(cfg, b, defaultMessengerClientFactory)
}

func NewMessengerChannelWithFactory(cfg config.MessengerConfig, b *bus.MessageBus, factory MessengerClientFactory) (*MessengerChannel, error) {
	if strings.TrimSpace(cfg.PageToken) == "" {
		return nil, fmt.Errorf("messenger page token is required")
	}
	if strings.TrimSpace(cfg.VerifyToken) == "" {
		return nil, fmt.Errorf("messenger verify token is required")
	}
	if strings.TrimSpace(cfg.AppSecret) == "" {
		return nil, fmt.Errorf("messenger app secret is required")
	}

	if factory == nil {
		factory = defaultMessengerClientFactory
	}

	return &MessengerChannel{
		BaseChannel:   NewBaseChannel(messengerChannelName, b, cfg.AllowFrom),
		cfg:           cfg,
		clientFactory: factory,
		msgCache:      newMessengerMsgCache(messengerMsgCacheTTL),
	}, nil
}

func (m *MessengerChannel) Start(ctx context.Context) error {
	ctx, m.cancel = context.WithCancel(ctx)
	m.client = m.clientFactory(m.cfg)

	port := m.cfg.Port
	if port == 0 {
		port = messengerDefaultPort
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/messenger/webhook", m.handleWebhook)

	m.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		log.Printf("[messenger] webhook server listening on :%d", port)
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[messenger] server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		_ = m.server.Close()
	}()

	return nil
}

func (m *MessengerChannel) Stop() error {
	if m.cancel != nil {
		m.cancel()
	}
	if m.server != nil {
		_ = m.server.Close()
	}
	if m.client != nil {
		m.client.Close()
	}
	log.Printf("[messenger] stopped")
	return nil
}

func (m *MessengerChannel) Send(msg bus.OutboundMessage) error {
	if m.client == nil {
		return fmt.Errorf("messenger client not initialized")
	}

	recipientID := strings.TrimSpace(msg.ChatID)
	if recipientID == "" {
		return fmt.Errorf("messenger chat id is required")
	}

	return m.client.SendMessage(context.Background(), recipientID, msg)
}

type messengerEvent struct {
	Object string           `json:"object"`
	Entry  []messengerEntry `json:"entry"`
}

type messengerEntry struct {
	ID        string               `json:"id"`
	Messaging []messengerMessaging `json:"messaging"`
}

type messengerMessaging struct {
	Sender    messengerParticipant `json:"sender"`
	Recipient messengerParticipant `json:"recipient"`
	Timestamp int64                `json:"timestamp"`
	Message   *messengerMessage    `json:"message"`
	Postback  *messengerPostback   `json:"postback"`
}

type messengerParticipant struct {
	ID string `json:"id"`
}

type messengerMessage struct {
	MID        string `json:"mid"`
	Text       string `json:"text"`
	IsEcho     bool   `json:"is_echo"`
	QuickReply *struct {
		Payload string `json:"payload"`
	} `json:"quick_reply"`
}

type messengerPostback struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

func (m *MessengerChannel) handleWebhook(resp http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		m.verifyWebhook(resp, req)
	case http.MethodPost:
		m.handleEvent(resp, req)
	default:
		http.Error(resp, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// verifyWebhook answers the platform's subscription handshake by echoing
// hub.challenge when hub.verify_token matches.
func (m *MessengerChannel) verifyWebhook(resp http.ResponseWriter, req *http.Request) {
	mode := req.URL.Query().Get("hub.mode")
	token := req.URL.Query().Get("hub.verify_token")
	challenge := req.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token != m.cfg.VerifyToken {
		http.Error(resp, "verification failed", http.StatusForbidden)
		return
	}

	resp.WriteHeader(http.StatusOK)
	_, _ = resp.Write([]byte(challenge))
}

func (m *MessengerChannel) handleEvent(resp http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(resp, req.Body, 1<<20) // 1MB limit
	body, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(resp, "read body failed", http.StatusBadRequest)
		return
	}

	if !m.validSignature(req.Header.Get("X-Hub-Signature-256"), body) {
		http.Error(resp, "invalid signature", http.StatusForbidden)
		return
	}

	var event messengerEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(resp, "invalid json", http.StatusBadRequest)
		return
	}

	// The platform retries deliveries that do not get a fast 200.
	resp.WriteHeader(http.StatusOK)
	_, _ = resp.Write([]byte("EVENT_RECEIVED"))

	go m.processEvent(event)
}

func (m *MessengerChannel) validSignature(header string, body []byte) bool {
	sig := strings.TrimPrefix(strings.TrimSpace(header), "sha256=")
	if sig == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(m.cfg.AppSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(sig), []byte(expected))
}

func (m *MessengerChannel) processEvent(event messengerEvent) {
	if !strings.EqualFold(event.Object, "page") {
		return
	}

	for _, entry := range event.Entry {
		for _, messaging := range entry.Messaging {
			m.processMessaging(entry.ID, messaging)
		}
	}
}

func (m *MessengerChannel) processMessaging(pageID string, messaging messengerMessaging) {
	senderID := strings.TrimSpace(messaging.Sender.ID)
	if senderID == "" {
		return
	}

	if !m.IsAllowed(senderID) {
		log.Printf("[messenger] rejected message from %s", senderID)
		return
	}

	content, messageID := extractMessengerContent(messaging)
	if content == "" {
		return
	}

	if messageID != "" && m.msgCache.Seen(messageID) {
		log.Printf("[messenger] duplicate message dropped: %s", messageID)
		return
	}

	timestamp := time.Now()
	if messaging.Timestamp > 0 {
		timestamp = time.UnixMilli(messaging.Timestamp)
	}

	m.bus.Inbound <- bus.InboundMessage{
		Channel:   messengerChannelName,
		SenderID:  senderID,
		ChatID:    senderID,
		Content:   content,
		Timestamp: timestamp,
		Metadata: map[string]any{
			"message_id": messageID,
			"page_id":    pageID,
		},
	}
}

// extractMessengerContent prefers the quick-reply payload over the button
// title, so tapped suggestions round-trip as the text they carry.
func extractMessengerContent(messaging messengerMessaging) (string, string) {
	if msg := messaging.Message; msg != nil {
		if msg.IsEcho {
			return "", ""
		}
		if msg.QuickReply != nil {
			if payload := strings.TrimSpace(msg.QuickReply.Payload); payload != "" {
				return payload, msg.MID
			}
		}
		return strings.TrimSpace(msg.Text), msg.MID
	}

	if pb := messaging.Postback; pb != nil {
		if payload := strings.TrimSpace(pb.Payload); payload != "" {
			return payload, ""
		}
		return strings.TrimSpace(pb.Title), ""
	}

	return "", ""
}

// SetClient is a test hook.
func (m *MessengerChannel) SetClient(client MessengerClient) {
	m.client = client
}
