package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sahmacademy/sahmbot/internal/bus"
	"github.com/sahmacademy/sahmbot/internal/config"
)

type mockMessengerSend struct {
	RecipientID string
	Message     bus.OutboundMessage
}

type mockMessengerClient struct {
	sent []mockMessengerSend
	err  error
}

func (m *mockMessengerClient) SendMessage(ctx context.Context, recipientID string, msg bus.OutboundMessage) error {
	m.sent = append(m.sent, mockMessengerSend{RecipientID: recipientID, Message: msg})
	return m.err
}

func (m *mockMessengerClient) Close() {}

func newTestMessengerChannel(t *testing.T, cfg config.MessengerConfig) (*MessengerChannel, *mockMessengerClient) {
	t.Helper()
	if cfg.PageToken == "" {
		cfg.PageToken = "page-token"
	}
	if cfg.VerifyToken == "" {
		cfg.VerifyToken = "verify-token"
	}
	if cfg.AppSecret == "" {
		cfg.AppSecret = "app-secret"
	}

	client := &mockMessengerClient{}
	b := bus.NewMessageBus(10)
	ch, err := NewMessengerChannelWithFactory(cfg, b, func(config.MessengerConfig) MessengerClient {
		return client
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ch.SetClient(client)
	return ch, client
}

func signMessengerBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestNewMessengerChannel_MissingRequiredConfig(t *testing.T) {
	b := bus.NewMessageBus(10)
	_, err := NewMessengerChannel(config.MessengerConfig{}, b)
	if err == nil {
		t.Fatal("expected error for empty config")
	}
}

func TestMessengerWebhook_Verify_OK(t *testing.T) {
	ch, _ := newTestMessengerChannel(t, config.MessengerConfig{})

	req := httptest.NewRequest(http.MethodGet,
		"/messenger/webhook?hub.mode=subscribe&hub.verify_token=verify-token&hub.challenge=challenge-42", nil)
	w := httptest.NewRecorder()
	ch.handleWebhook(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "challenge-42" {
		t.Fatalf("body = %q, want challenge-42", w.Body.String())
	}
}

func TestMessengerWebhook_Verify_BadToken(t *testing.T) {
	ch, _ := newTestMessengerChannel(t, config.MessengerConfig{})

	req := httptest.NewRequest(http.MethodGet,
		"/messenger/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=challenge-42", nil)
	w := httptest.NewRecorder()
	ch.handleWebhook(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestMessengerWebhook_Event_BadSignature(t *testing.T) {
	ch, _ := newTestMessengerChannel(t, config.MessengerConfig{})

	body := `{"object":"page","entry":[]}`
	req := httptest.NewRequest(http.MethodPost, "/messenger/webhook", strings.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	w := httptest.NewRecorder()
	ch.handleWebhook(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestMessengerWebhook_Event_PublishesInbound(t *testing.T) {
	ch, _ := newTestMessengerChannel(t, config.MessengerConfig{})

	body := []byte(`{"object":"page","entry":[{"id":"page-1","messaging":[` +
		`{"sender":{"id":"user-9"},"recipient":{"id":"page-1"},"timestamp":1739000000000,` +
		`"message":{"mid":"mid.1","text":"كم سعر البيتكوين؟"}}]}]}`)

	req := httptest.NewRequest(http.MethodPost, "/messenger/webhook", strings.NewReader(string(body)))
	req.Header.Set("X-Hub-Signature-256", signMessengerBody("app-secret", body))
	w := httptest.NewRecorder()
	ch.handleWebhook(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	select {
	case msg := <-ch.bus.Inbound:
		if msg.Channel != "messenger" {
			t.Errorf("Channel = %q, want messenger", msg.Channel)
		}
		if msg.SenderID != "user-9" {
			t.Errorf("SenderID = %q, want user-9", msg.SenderID)
		}
		if msg.Content != "كم سعر البيتكوين؟" {
			t.Errorf("Content = %q", msg.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("no inbound message published")
	}
}

func TestMessengerWebhook_DuplicateMessageDropped(t *testing.T) {
	ch, _ := newTestMessengerChannel(t, config.MessengerConfig{})

	body := []byte(`{"object":"page","entry":[{"id":"page-1","messaging":[` +
		`{"sender":{"id":"user-9"},"message":{"mid":"mid.dup","text":"hello"}}]}]}`)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/messenger/webhook", strings.NewReader(string(body)))
		req.Header.Set("X-Hub-Signature-256", signMessengerBody("app-secret", body))
		w := httptest.NewRecorder()
		ch.handleWebhook(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("attempt %d status = %d, want 200", i, w.Code)
		}
	}

	received := 0
	deadline := time.After(500 * time.Millisecond)
	for {
		select {
		case <-ch.bus.Inbound:
			received++
		case <-deadline:
			if received != 1 {
				t.Fatalf("received %d inbound messages, want 1", received)
			}
			return
		}
	}
}

func TestMessengerWebhook_EchoIgnored(t *testing.T) {
	ch, _ := newTestMessengerChannel(t, config.MessengerConfig{})

	body := []byte(`{"object":"page","entry":[{"id":"page-1","messaging":[` +
		`{"sender":{"id":"page-1"},"message":{"mid":"mid.2","text":"bot said this","is_echo":true}}]}]}`)

	req := httptest.NewRequest(http.MethodPost, "/messenger/webhook", strings.NewReader(string(body)))
	req.Header.Set("X-Hub-Signature-256", signMessengerBody("app-secret", body))
	w := httptest.NewRecorder()
	ch.handleWebhook(w, req)

	select {
	case msg := <-ch.bus.Inbound:
		t.Fatalf("echo message should be ignored, got %+v", msg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestMessengerWebhook_QuickReplyPayloadWins(t *testing.T) {
	ch, _ := newTestMessengerChannel(t, config.MessengerConfig{})

	body := []byte(`{"object":"page","entry":[{"id":"page-1","messaging":[` +
		`{"sender":{"id":"user-9"},"message":{"mid":"mid.3","text":"Retry",` +
		`"quick_reply":{"payload":"what is the BTC price"}}}]}]}`)

	req := httptest.NewRequest(http.MethodPost, "/messenger/webhook", strings.NewReader(string(body)))
	req.Header.Set("X-Hub-Signature-256", signMessengerBody("app-secret", body))
	w := httptest.NewRecorder()
	ch.handleWebhook(w, req)

	select {
	case msg := <-ch.bus.Inbound:
		if msg.Content != "what is the BTC price" {
			t.Errorf("Content = %q, want quick-reply payload", msg.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("no inbound message published")
	}
}

func TestMessengerSend_RoutesToClient(t *testing.T) {
	ch, client := newTestMessengerChannel(t, config.MessengerConfig{})

	err := ch.Send(bus.OutboundMessage{
		ChatID:  "user-9",
		Content: "According to Binance, BTC is 64,250.50.",
		Suggestions: []bus.Suggestion{
			{Label: "Retry", Text: "what is the BTC price"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(client.sent))
	}
	if client.sent[0].RecipientID != "user-9" {
		t.Errorf("RecipientID = %q, want user-9", client.sent[0].RecipientID)
	}
}

func TestMessengerSend_EmptyChatID(t *testing.T) {
	ch, _ := newTestMessengerChannel(t, config.MessengerConfig{})

	if err := ch.Send(bus.OutboundMessage{Content: "hello"}); err == nil {
		t.Fatal("expected error for empty chat id")
	}
}

func TestBuildQuickReplies_CapsAndSkipsBlank(t *testing.T) {
	suggestions := make([]bus.Suggestion, 0, 15)
	for i := 0; i < 15; i++ {
		suggestions = append(suggestions, bus.Suggestion{
			Label: fmt.Sprintf("s%d", i),
			Text:  fmt.Sprintf("text %d", i),
		})
	}
	if got := buildQuickReplies(suggestions); len(got) != messengerMaxQuickReplies {
		t.Errorf("len = %d, want %d", len(got), messengerMaxQuickReplies)
	}

	if got := buildQuickReplies([]bus.Suggestion{{Label: " ", Text: "x"}}); len(got) != 0 {
		t.Errorf("blank label should be skipped, got %d entries", len(got))
	}
}

func TestChunkByRunes(t *testing.T) {
	short := chunkByRunes("hello", 10)
	if len(short) != 1 || short[0] != "hello" {
		t.Fatalf("short text should be a single chunk, got %v", short)
	}

	long := strings.Repeat("a", 7) + "\n" + strings.Repeat("b", 7)
	chunks := chunkByRunes(long, 10)
	if len(chunks) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(chunks), chunks)
	}
	if chunks[0] != strings.Repeat("a", 7) {
		t.Errorf("first chunk = %q, want split at newline", chunks[0])
	}
}
