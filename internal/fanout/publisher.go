package fanout

// snapshotConns resolves a set of connection ids into their current
// *Connection pointers. Callers take this snapshot under r.mu and then
// send after releasing it, so a connection removed mid-iteration is
// simply a failed send on a dead pointer, never a panic or a stale map
// access.
func snapshotConns(byID map[string]*Connection, ids map[string]struct{}) []*Connection {
	conns := make([]*Connection, 0, len(ids))
	for id := range ids {
		if c, ok := byID[id]; ok {
			conns = append(conns, c)
		}
	}
	return conns
}

func (r *Registry) sendAndCount(conns []*Connection, msg Message) int {
	count := 0
	for _, conn := range conns {
		if err := conn.Send(msg); err != nil {
			continue
		}
		count++
	}
	return count
}

// SendToConnection delivers msg to a single connection by id. Returns
// 1 on success, 0 if the id is unknown, and surfaces an encoding or
// transport-write error to the caller — the only targeting operation
// that does, since there is no ambiguity about which send failed.
func (r *Registry) SendToConnection(id string, msg Message) (int, error) {
	r.mu.RLock()
	conn, ok := r.connections[id]
	r.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	if err := conn.Send(msg); err != nil {
		return 0, err
	}
	return 1, nil
}

// SendToUser delivers msg to every live connection registered under
// userID and returns the count actually delivered.
func (r *Registry) SendToUser(userID string, msg Message) int {
	r.mu.RLock()
	conns := snapshotConns(r.connections, r.byUser[userID])
	r.mu.RUnlock()
	return r.sendAndCount(conns, msg)
}

// SendToChannel delivers msg to every live connection subscribed to
// channel and returns the count actually delivered.
func (r *Registry) SendToChannel(channel string, msg Message) int {
	r.mu.RLock()
	conns := snapshotConns(r.connections, r.byChannel[channel])
	r.mu.RUnlock()
	count := r.sendAndCount(conns, msg)
	r.mirrorFrame(mirrorKindChannel, channel, msg)
	return count
}

// Broadcast delivers msg to every live connection and returns the
// count actually delivered.
func (r *Registry) Broadcast(msg Message) int {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.connections))
	for _, c := range r.connections {
		conns = append(conns, c)
	}
	r.mu.RUnlock()
	count := r.sendAndCount(conns, msg)
	r.mirrorFrame(mirrorKindBroadcast, "", msg)
	return count
}

type mirrorKind int

const (
	mirrorKindBroadcast mirrorKind = iota
	mirrorKindChannel
)

// mirrorFrame best-effort republishes a successfully-sent broadcast or
// channel message to the optional NATS mirror. Encoding is done once,
// in the canonical WS envelope shape, independent of what transport any
// individual recipient happened to use.
func (r *Registry) mirrorFrame(kind mirrorKind, channel string, msg Message) {
	if r.mirror == nil {
		return
	}
	data, err := EncodeWS(msg)
	if err != nil {
		return
	}
	switch kind {
	case mirrorKindBroadcast:
		r.mirror.MirrorBroadcast(data)
	case mirrorKindChannel:
		r.mirror.MirrorChannel(channel, data)
	}
}
