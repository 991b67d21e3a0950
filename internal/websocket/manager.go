package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type ClientMessage struct {
	Client  *Client
	Message []byte
}

type ManagerConfig struct {
	MaxConnPerTopic int
	// EchoToSender also delivers a frame back to the connection that sent it.
	EchoToSender   bool
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

// Manager is the relay hub. It groups connections into topic rooms and fans
// every frame out to the room it was sent in.
type Manager struct {
	clients      map[string]*Client
	topicIndex   map[string]map[string]bool
	clientsMutex sync.RWMutex
	Register     chan *Client
	Unregister   chan *Client
	Broadcast    chan *ClientMessage
	done         chan struct{}
	cfg          ManagerConfig
	logger       *slog.Logger
}

func NewManager(cfg ManagerConfig, logger *slog.Logger) *Manager {
	if cfg.MaxConnPerTopic <= 0 {
		cfg.MaxConnPerTopic = 32
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 1 << 20
	}
	return &Manager{
		clients:    make(map[string]*Client),
		topicIndex: make(map[string]map[string]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan *ClientMessage),
		done:       make(chan struct{}),
		cfg:        cfg,
		logger:     logger.With("component", "relay"),
	}
}

func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			close(m.done)
			return

		case client := <-m.Register:
			m.registerClient(client)

		case client := <-m.Unregister:
			m.unregisterClient(client)

		case clientMsg := <-m.Broadcast:
			m.processMessage(clientMsg)
		}
	}
}

// Done is closed once Run has returned. Sends on Register, Unregister and
// Broadcast must also select on it.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Join hands client to the running manager. It reports false when the
// manager has stopped.
func (m *Manager) Join(client *Client) bool {
	select {
	case m.Register <- client:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if m.topicIndex[client.Topic] == nil {
		m.topicIndex[client.Topic] = make(map[string]bool)
	}

	if len(m.topicIndex[client.Topic]) >= m.cfg.MaxConnPerTopic {
		m.logger.Warn("max connections reached for topic", "topic", client.Topic)
		close(client.Send)
		return
	}

	m.clients[client.ID] = client
	m.topicIndex[client.Topic][client.ID] = true

	m.logger.Info("client registered", "client_id", client.ID, "device_id", client.DeviceID, "topic", client.Topic)
}

func (m *Manager) unregisterClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()
	m.removeLocked(client)
}

func (m *Manager) removeLocked(client *Client) {
	if _, ok := m.clients[client.ID]; !ok {
		return
	}
	delete(m.clients, client.ID)
	delete(m.topicIndex[client.Topic], client.ID)
	if len(m.topicIndex[client.Topic]) == 0 {
		delete(m.topicIndex, client.Topic)
	}
	close(client.Send)
	m.logger.Info("client unregistered", "client_id", client.ID, "device_id", client.DeviceID)
}

func (m *Manager) processMessage(clientMsg *ClientMessage) {
	frame, err := ParseFrame(clientMsg.Message)
	if err != nil {
		m.logger.Warn("dropping frame", "client_id", clientMsg.Client.ID, "error", err)
		return
	}
	if frame.Sender != clientMsg.Client.DeviceID {
		m.logger.Warn("dropping frame with forged sender",
			"client_id", clientMsg.Client.ID, "device_id", clientMsg.Client.DeviceID, "sender", frame.Sender)
		return
	}

	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	for clientID := range m.topicIndex[clientMsg.Client.Topic] {
		client := m.clients[clientID]
		if client == clientMsg.Client && !m.cfg.EchoToSender {
			continue
		}
		select {
		case client.Send <- clientMsg.Message:
		default:
			m.logger.Warn("client send buffer full, closing connection", "client_id", clientID)
			m.removeLocked(client)
		}
	}
}

func (m *Manager) closeAll() {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()
	for _, client := range m.clients {
		m.removeLocked(client)
	}
}

func (m *Manager) TopicConnections(topic string) int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()
	return len(m.topicIndex[topic])
}
