package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teamchat-dev/teamchat/internal/auth"
	"github.com/teamchat-dev/teamchat/internal/stats"
	"github.com/teamchat-dev/teamchat/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// Client is one realtime connection. identity is nil for anonymous
// connections and immutable for the connection's life: anonymous connections
// receive broadcasts for rooms they join, but their write events are silently
// ignored. Events from a single connection are handled in the order received
// (the read pump is sequential).
type Client struct {
	id         string
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	stats      stats.StatsProvider
	identity   *auth.Identity
	send       chan *ServerEvent
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(id string, identity *auth.Identity, conn *websocket.Conn, cs *ChatServer, l *log.Logger, sp stats.StatsProvider) *Client {
	return &Client{
		id:         id,
		conn:       conn,
		chatServer: cs,
		log:        l,
		stats:      sp,
		identity:   identity,
		send:       make(chan *ServerEvent, 256),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(ev)
			if err != nil {
				c.log.Println("failed to serialize event:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var ev ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.log.Println("error parsing event:", err)
			c.queueMessage(ErrorEvent("invalid event format"))
			continue
		}

		c.handleEvent(&ev)
	}
}

func (c *Client) handleEvent(ev *ClientEvent) {
	switch ev.Type {
	case EventJoin:
		c.chatServer.joinRoom(c, ev.ChannelId)
	case EventLeave:
		c.chatServer.leaveRoom(c, ev.ChannelId)
	case EventMessageCreate:
		c.publish(ev)
	case EventTyping:
		c.typing(ev)
	default:
		c.queueMessage(ErrorEvent("unknown event type"))
	}
}

// publish persists the message and only then hands the broadcast to the chat
// server: a message is never announced before the append commits. Store
// failures are reported to this connection only. Writes from anonymous
// connections are dropped without a reply.
func (c *Client) publish(ev *ClientEvent) {
	if c.identity == nil {
		return
	}

	if ev.ChannelId == "" {
		c.queueMessage(ErrorEvent("channelId required"))
		return
	}

	msg, err := c.chatServer.db.CreateMessage(ev.ChannelId, c.identity.Id, ev.Text)
	if err != nil {
		c.log.Println("create message:", err)
		c.queueMessage(ErrorEvent("failed to send message"))
		return
	}

	c.stats.Incr(StatMessagesSent)

	out := types.Message{
		Id:        msg.Id,
		Text:      msg.Text,
		ChannelId: msg.ChannelId,
		CreatedAt: msg.CreatedAt,
		Sender: types.User{
			Id:   c.identity.Id,
			Name: c.identity.Name,
		},
	}

	if !c.chatServer.broadcast(ev.ChannelId, NewMessageEvent(out)) {
		c.queueMessage(ErrorEvent("service unavailable"))
	}
}

func (c *Client) typing(ev *ClientEvent) {
	if c.identity == nil {
		return
	}

	user := types.User{
		Id:    c.identity.Id,
		Name:  c.identity.Name,
		Email: c.identity.Email,
	}

	if !c.chatServer.broadcast(ev.ChannelId, TypingEvent(ev.ChannelId, user, ev.IsTyping)) {
		c.queueMessage(ErrorEvent("service unavailable"))
	}
}

func (c *Client) queueMessage(ev *ServerEvent) bool {
	select {
	case c.send <- ev:
	default:
		c.log.Println("failed to send event to client, channel is full")
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.chatServer.deregisterChan <- c
}
