package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/sahmacademy/sahmbot/internal/bus"
	"github.com/sahmacademy/sahmbot/internal/config"
	"github.com/sahmacademy/sahmbot/internal/engine"
)

const (
	webChannelName = "web"
	empChannelName = "web-emp"
)

// Responder answers one chat turn synchronously; the REST endpoints need the
// reply in the response body instead of on the bus.
type Responder interface {
	HandleText(ctx context.Context, channel, userID, role, text string) engine.Reply
}

type chatRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

type chatResponse struct {
	Reply       string           `json:"reply"`
	Suggestions []bus.Suggestion `json:"suggestions,omitempty"`
}

type wsMessage struct {
	Type        string           `json:"type"`
	Content     string           `json:"content,omitempty"`
	Suggestions []bus.Suggestion `json:"suggestions,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	id   string
}

type WebChannel struct {
	BaseChannel
	port      int
	responder Responder
	server    *http.Server
	origins   []string
	clients   sync.Map
	nextID    atomic.Int64
}

func NewWebChannel(cfg config.WebConfig, gwCfg config.GatewayConfig, b *bus.MessageBus, responder Responder) (*WebChannel, error) {
	port := gwCfg.Port
	if port == 0 {
		port = config.DefaultPort
	}

	return &WebChannel{
		BaseChannel: NewBaseChannel(webChannelName, b, cfg.AllowFrom),
		port:        port,
		responder:   responder,
		origins:     cfg.AllowOrigins,
	}, nil
}

func (w *WebChannel) Start(ctx context.Context) error {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	origins := w.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Employee-ID"},
	}))

	r.Get("/api/health", func(wr http.ResponseWriter, _ *http.Request) {
		wr.WriteHeader(http.StatusOK)
		wr.Write([]byte(`{"status":"ok"}`))
	})
	r.Post("/api/chat", w.handleChat)
	r.Post("/api/emp/chat", w.handleEmpChat)
	r.Get("/ws", w.handleWS)

	w.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", w.port),
		Handler: r,
	}

	go func() {
		log.Printf("[web] listening on :%d", w.port)
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[web] server error: %v", err)
		}
	}()

	return nil
}

func (w *WebChannel) handleChat(wr http.ResponseWriter, r *http.Request) {
	w.serveChat(wr, r, webChannelName, "")
}

// handleEmpChat serves the employee console. The sender must be on the
// channel allow-list; staff role unlocks analytics.
func (w *WebChannel) handleEmpChat(wr http.ResponseWriter, r *http.Request) {
	empID := r.Header.Get("X-Employee-ID")
	if empID == "" || !w.IsAllowed(empID) {
		http.Error(wr, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	w.serveChat(wr, r, empChannelName, engine.RoleStaff)
}

func (w *WebChannel) serveChat(wr http.ResponseWriter, r *http.Request, channel, role string) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(wr, `{"error":"bad request"}`, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(wr, `{"error":"empty message"}`, http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		req.UserID = uuid.NewString()
	}

	reply := w.responder.HandleText(r.Context(), channel, req.UserID, role, req.Message)

	wr.Header().Set("Content-Type", "application/json")
	json.NewEncoder(wr).Encode(chatResponse{
		Reply:       reply.Text,
		Suggestions: reply.Suggestions,
	})
}

func (w *WebChannel) handleWS(wr http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(wr, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("[web] websocket accept error: %v", err)
		return
	}

	clientID := fmt.Sprintf("web-%d", w.nextID.Add(1))
	client := &wsClient{conn: conn, id: clientID}
	w.clients.Store(clientID, client)
	log.Printf("[web] client connected: %s", clientID)

	defer func() {
		w.clients.Delete(clientID)
		conn.CloseNow()
		log.Printf("[web] client disconnected: %s", clientID)
	}()

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type != "message" || msg.Content == "" {
			continue
		}

		w.bus.Inbound <- bus.InboundMessage{
			Channel:   webChannelName,
			SenderID:  clientID,
			ChatID:    clientID,
			Content:   msg.Content,
			Timestamp: time.Now(),
		}
	}
}

func (w *WebChannel) Send(msg bus.OutboundMessage) error {
	data, err := json.Marshal(wsMessage{
		Type:        "message",
		Content:     msg.Content,
		Suggestions: msg.Suggestions,
	})
	if err != nil {
		return err
	}

	client, ok := w.clients.Load(msg.ChatID)
	if !ok {
		return nil
	}

	c := client.(*wsClient)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (w *WebChannel) Stop() error {
	if w.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.server.Shutdown(ctx); err != nil {
			log.Printf("[web] shutdown error: %v", err)
		}
	}
	w.clients.Range(func(key, value any) bool {
		c := value.(*wsClient)
		c.conn.CloseNow()
		return true
	})
	log.Printf("[web] stopped")
	return nil
}
