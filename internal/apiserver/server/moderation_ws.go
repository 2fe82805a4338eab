package server
import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"automarket/internal/apiserver/auth"
	"automarket/internal/shared/eventbus"
	"automarket/internal/shared/model"
	"automarket/pkg/logging"
)

const (
	// DefaultPingInterval 心跳间隔
	DefaultPingInterval = 30 * time.Second

	// DefaultBacklog 新连接回放的最近事件数
	DefaultBacklog = 20

	writeWait = 10 * time.Second
	pongWait  = 70 * time.Second

	resubscribeMin = 500 * time.Millisecond
	resubscribeMax = 30 * time.Second
)

var moderationUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// 消息类型
const (
	MessageEvent   = "moderation_event"
	MessageBacklog = "moderation_backlog"
)

// ModerationMessage WebSocket 消息
type ModerationMessage struct {
	Type      string                 `json:"type"` // moderation_event | moderation_backlog
	Data      *model.ModerationEvent `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// ModerationHub 审核事件 WebSocket 网关
type ModerationHub struct {
	bus          eventbus.ModerationSubscriber
	authCfg      auth.Config
	metrics      *Metrics
	logger       *logging.Logger
	pingInterval time.Duration
	backlog      int
	retryMin     time.Duration
	retryMax     time.Duration

	clients map[*websocket.Conn]bool
	mu      sync.Mutex
}

// NewModerationHub 创建网关；bus 为 nil 时只保持连接不推送
func NewModerationHub(bus eventbus.ModerationSubscriber, authCfg auth.Config, metrics *Metrics, logger *logging.Logger) *ModerationHub {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ModerationHub{
		bus:          bus,
		authCfg:      authCfg,
		metrics:      metrics,
		logger:       logger,
		pingInterval: DefaultPingInterval,
		backlog:      DefaultBacklog,
		retryMin:     resubscribeMin,
		retryMax:     resubscribeMax,
		clients:      make(map[*websocket.Conn]bool),
	}
}

// Run 订阅事件总线并广播，阻塞直到 ctx 取消
//
// 订阅失败或 channel 被关闭时按指数退避重新订阅。
func (m *ModerationHub) Run(ctx context.Context) {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()
	defer m.closeAll()

	var (
		events <-chan *model.ModerationEvent
		retry  <-chan time.Time
		delay  = m.retryMin
	)
	backoff := func() {
		retry = time.After(delay)
		delay *= 2
		if delay > m.retryMax {
			delay = m.retryMax
		}
	}
	subscribe := func() {
		ch, err := m.bus.SubscribeModerationEvents(ctx)
		if err != nil {
			m.logger.Warnw("moderation event subscription failed", "error", err, "retry_in", delay)
			backoff()
			return
		}
		events = ch
	}
	if m.bus != nil {
		subscribe()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				events = nil
				if ctx.Err() != nil {
					return
				}
				m.logger.Warnw("moderation event subscription closed, resubscribing", "retry_in", delay)
				backoff()
				continue
			}
			delay = m.retryMin
			m.broadcast(ModerationMessage{Type: MessageEvent, Data: e, Timestamp: time.Now().UTC()})
		case <-retry:
			retry = nil
			subscribe()
		case <-ticker.C:
			m.ping()
		}
	}
}

// HandleWebSocket 处理 WebSocket 连接（仅管理员）
//
// 路由: GET /ws/moderation，令牌通过 ?token= 或 Authorization 头传入
func (m *ModerationHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = bearerToken(r)
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}
	user, err := auth.ParseAccessToken(m.authCfg, token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	if user.Role != model.UserRoleAdmin {
		writeError(w, http.StatusForbidden, "admin access required")
		return
	}

	backlog := m.recent(r.Context())
	conn, err := moderationUpgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}

	m.mu.Lock()
	for i := len(backlog) - 1; i >= 0; i-- {
		msg := ModerationMessage{Type: MessageBacklog, Data: backlog[i], Timestamp: time.Now().UTC()}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			m.mu.Unlock()
			m.logger.Warnw("write moderation backlog failed", "error", err)
			conn.Close()
			return
		}
	}
	m.clients[conn] = true
	count := len(m.clients)
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.WSConnectionOpened()
	}
	m.logger.Infow("moderation stream client connected", "admin_id", user.ID, "clients", count)

	go m.readPump(conn)
}

// recent 读取回放事件（新 → 旧）；总线不支持回放时返回 nil
func (m *ModerationHub) recent(ctx context.Context) []*model.ModerationEvent {
	history, ok := m.bus.(eventbus.ModerationHistory)
	if !ok || m.backlog <= 0 {
		return nil
	}
	events, err := history.RecentModerationEvents(ctx, int64(m.backlog))
	if err != nil {
		m.logger.Warnw("read moderation backlog failed", "error", err)
		return nil
	}
	return events
}

// ClientCount 当前连接数
func (m *ModerationHub) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

func (m *ModerationHub) readPump(conn *websocket.Conn) {
	defer m.remove(conn)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Debugw("websocket read error", "error", err)
			}
			return
		}
	}
}

// remove 移除并关闭连接（可重复调用）
func (m *ModerationHub) remove(conn *websocket.Conn) {
	m.mu.Lock()
	_, ok := m.clients[conn]
	delete(m.clients, conn)
	m.mu.Unlock()
	if !ok {
		return
	}
	conn.Close()
	if m.metrics != nil {
		m.metrics.WSConnectionClosed()
	}
}

func (m *ModerationHub) broadcast(msg ModerationMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		m.logger.Errorw("marshal moderation message failed", "error", err)
		return
	}

	var failed []*websocket.Conn
	m.mu.Lock()
	for conn := range m.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			failed = append(failed, conn)
			continue
		}
		if m.metrics != nil {
			m.metrics.RecordWSMessage("out", msg.Type)
		}
	}
	m.mu.Unlock()

	for _, conn := range failed {
		m.remove(conn)
	}
}

func (m *ModerationHub) ping() {
	var failed []*websocket.Conn
	m.mu.Lock()
	for conn := range m.clients {
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
			failed = append(failed, conn)
		}
	}
	m.mu.Unlock()

	for _, conn := range failed {
		m.remove(conn)
	}
}

func (m *ModerationHub) closeAll() {
	m.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(m.clients))
	for conn := range m.clients {
		conns = append(conns, conn)
	}
	m.mu.Unlock()

	for _, conn := range conns {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		m.remove(conn)
	}
}
