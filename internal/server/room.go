package server

// roomRouter maps each room id (= channel id) to the set of connections that
// joined it, plus the inverse mapping used for cleanup on disconnect. Room
// membership here is a realtime fan-out construct only; it is independent of
// durable channel membership, so a connection must join explicitly even when
// the user already holds a membership row. The router is owned by the
// ChatServer run loop and must not be touched from other goroutines.
type roomRouter struct {
	rooms   map[string]map[*Client]struct{}
	members map[*Client]map[string]struct{}
}

func newRoomRouter() *roomRouter {
	return &roomRouter{
		rooms:   make(map[string]map[*Client]struct{}),
		members: make(map[*Client]map[string]struct{}),
	}
}

// join adds the connection to the room. Joining twice is idempotent. It
// reports whether the room was created by this join.
func (rr *roomRouter) join(c *Client, roomId string) bool {
	created := false
	room, ok := rr.rooms[roomId]
	if !ok {
		room = make(map[*Client]struct{})
		rr.rooms[roomId] = room
		created = true
	}
	room[c] = struct{}{}

	if rr.members[c] == nil {
		rr.members[c] = make(map[string]struct{})
	}
	rr.members[c][roomId] = struct{}{}

	return created
}

// leave removes the connection from the room and reports whether the room
// became empty and was dropped.
func (rr *roomRouter) leave(c *Client, roomId string) bool {
	room, ok := rr.rooms[roomId]
	if !ok {
		return false
	}

	delete(room, c)
	if joined, ok := rr.members[c]; ok {
		delete(joined, roomId)
		if len(joined) == 0 {
			delete(rr.members, c)
		}
	}

	if len(room) == 0 {
		delete(rr.rooms, roomId)
		return true
	}

	return false
}

// broadcast delivers the event to every connection currently in the room and
// to no connection outside it.
func (rr *roomRouter) broadcast(roomId string, ev *ServerEvent) {
	for c := range rr.rooms[roomId] {
		c.queueMessage(ev)
	}
}

// dropConnection removes the connection from every room it joined and reports
// how many rooms were dropped because they became empty.
func (rr *roomRouter) dropConnection(c *Client) int {
	dropped := 0
	for roomId := range rr.members[c] {
		if rr.leave(c, roomId) {
			dropped++
		}
	}
	delete(rr.members, c)

	return dropped
}
