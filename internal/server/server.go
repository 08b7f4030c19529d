package server

import (
	"context"
	"log"

	"github.com/teamchat-dev/teamchat/internal/database"
	"github.com/teamchat-dev/teamchat/internal/stats"
	"github.com/teamchat-dev/teamchat/internal/types"
)

const (
	StatActiveConnections = "ActiveConnections"
	StatOnlineUsers       = "OnlineUsers"
	StatActiveRooms       = "ActiveRooms"
	StatMessagesSent      = "MessagesSent"
)

type roomRequest struct {
	client    *Client
	channelId string
}

type broadcastRequest struct {
	roomId string
	event  *ServerEvent
}

type stopRequest struct {
	done chan struct{}
}

// ChatServer is the realtime gateway. Its run loop is the single owner of the
// presence tracker and room router: all connection registration, room
// membership changes and presence recomputation are serialized through it, so
// no two mutations of the same room's member set or the same identity's
// connection set can interleave. Store I/O never runs inside the loop; it
// happens on the calling goroutine (a client's read pump or an HTTP handler)
// before a broadcast is enqueued.
type ChatServer struct {
	log      *log.Logger
	db       database.TeamChatRepository
	stats    stats.StatsProvider
	clients  map[*Client]struct{}
	presence *presenceTracker
	router   *roomRouter

	registerChan   chan *Client
	deregisterChan chan *Client
	joinChan       chan roomRequest
	leaveChan      chan roomRequest
	broadcastChan  chan broadcastRequest
	stop           chan stopRequest
}

func NewChatServer(logger *log.Logger, db database.TeamChatRepository, sp stats.StatsProvider) (*ChatServer, error) {
	sp.RegisterMetric(StatActiveConnections)
	sp.RegisterMetric(StatOnlineUsers)
	sp.RegisterMetric(StatActiveRooms)
	sp.RegisterMetric(StatMessagesSent)

	return &ChatServer{
		log:            logger,
		db:             db,
		stats:          sp,
		clients:        make(map[*Client]struct{}),
		presence:       newPresenceTracker(),
		router:         newRoomRouter(),
		registerChan:   make(chan *Client),
		deregisterChan: make(chan *Client, 256),
		joinChan:       make(chan roomRequest, 256),
		leaveChan:      make(chan roomRequest, 256),
		broadcastChan:  make(chan broadcastRequest, 256),
		stop:           make(chan stopRequest),
	}, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case c := <-cs.registerChan:
			cs.handleRegister(c)
		case c := <-cs.deregisterChan:
			cs.handleDeregister(c)
		case req := <-cs.joinChan:
			cs.handleJoin(req)
		case req := <-cs.leaveChan:
			cs.handleLeave(req)
		case req := <-cs.broadcastChan:
			cs.router.broadcast(req.roomId, req.event)
		case req := <-cs.stop:
			cs.log.Println("stopping clients")
			for c := range cs.clients {
				c.stopClient()
			}
			close(req.done)
			return
		}
	}
}

func (cs *ChatServer) handleRegister(c *Client) {
	cs.clients[c] = struct{}{}
	cs.stats.Incr(StatActiveConnections)

	if c.identity == nil {
		cs.log.Printf("registered anonymous connection %s", c.id)
		return
	}

	cs.log.Printf("registered connection %s for %q", c.id, c.identity.Name)
	if cs.presence.connectionOpened(types.User{
		Id:    c.identity.Id,
		Name:  c.identity.Name,
		Email: c.identity.Email,
	}, c.id) {
		cs.stats.Incr(StatOnlineUsers)
	}
	cs.broadcastPresence()
}

func (cs *ChatServer) handleDeregister(c *Client) {
	if _, ok := cs.clients[c]; !ok {
		return
	}
	delete(cs.clients, c)
	cs.stats.Decr(StatActiveConnections)

	for i := 0; i < cs.router.dropConnection(c); i++ {
		cs.stats.Decr(StatActiveRooms)
	}

	if c.identity != nil {
		if cs.presence.connectionClosed(c.identity.Id, c.id) {
			cs.stats.Decr(StatOnlineUsers)
		}
		cs.broadcastPresence()
	}

	c.stopClient()
}

func (cs *ChatServer) handleJoin(req roomRequest) {
	if cs.router.join(req.client, req.channelId) {
		cs.stats.Incr(StatActiveRooms)
	}

	// Room-scoped presence is refreshed on join only; connections that joined
	// earlier keep a stale list until the next join in the room.
	if req.client.identity != nil {
		cs.router.broadcast(req.channelId, PresenceUpdateEvent(cs.presence.onlineUsers()))
	}
}

func (cs *ChatServer) handleLeave(req roomRequest) {
	if cs.router.leave(req.client, req.channelId) {
		cs.stats.Decr(StatActiveRooms)
	}
}

// broadcastPresence sends the full online list to every connection, anonymous
// ones included.
func (cs *ChatServer) broadcastPresence() {
	ev := PresenceUpdateEvent(cs.presence.onlineUsers())
	for c := range cs.clients {
		c.queueMessage(ev)
	}
}

func (cs *ChatServer) RegisterClient(c *Client) {
	cs.registerChan <- c
}

func (cs *ChatServer) joinRoom(c *Client, channelId string) {
	select {
	case cs.joinChan <- roomRequest{client: c, channelId: channelId}:
	default:
		cs.log.Println("join channel full")
		c.queueMessage(ErrorEvent("service unavailable"))
	}
}

func (cs *ChatServer) leaveRoom(c *Client, channelId string) {
	select {
	case cs.leaveChan <- roomRequest{client: c, channelId: channelId}:
	default:
		cs.log.Println("leave channel full")
		c.queueMessage(ErrorEvent("service unavailable"))
	}
}

// broadcast enqueues an event for fan-out to a room. It reports false when
// the gateway is saturated and the event was dropped.
func (cs *ChatServer) broadcast(roomId string, ev *ServerEvent) bool {
	select {
	case cs.broadcastChan <- broadcastRequest{roomId: roomId, event: ev}:
		return true
	default:
		cs.log.Printf("broadcast channel full, dropping event for room %q", roomId)
		return false
	}
}

// NotifyMessageDeleted broadcasts a message-deleted event to the channel's
// room. Callers must only invoke it after the store delete succeeded.
func (cs *ChatServer) NotifyMessageDeleted(messageId, channelId string) {
	cs.broadcast(channelId, MessageDeletedEvent(messageId, channelId))
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")

	req := stopRequest{done: make(chan struct{})}
	select {
	case cs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
