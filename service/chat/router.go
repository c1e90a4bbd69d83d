package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"mchat/logger"
	"mchat/service/storage"
	"mchat/tools/errs"
)

// Router is the central dispatcher: inbound events come from each
// connection's read loop, get validated, hit the persistence gateway where
// required, and fan out to the right recipient set. Failures local to one
// connection's event never touch other connections.
type Router struct {
	cfg     RouterConfig
	presence *PresenceDirectory
	rooms    *RoomTracker
	conns    *ConnManager
	store    storage.Gateway
	mirror   *storage.PresenceMirror // nil-safe, best-effort

	roomSeq lockTable
}

type RouterConfig struct {
	CheckMembership bool
	StorageTimeout  time.Duration
}

func NewRouter(cfg RouterConfig, store storage.Gateway, mirror *storage.PresenceMirror) *Router {
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = 5 * time.Second
	}
	return &Router{
		cfg:      cfg,
		presence: NewPresenceDirectory(),
		rooms:    NewRoomTracker(),
		conns:    NewConnManager(),
		store:    store,
		mirror:   mirror,
		roomSeq:  lockTable{locks: make(map[string]*sync.Mutex)},
	}
}

func (r *Router) Presence() *PresenceDirectory { return r.presence }
func (r *Router) Rooms() *RoomTracker          { return r.rooms }
func (r *Router) Conns() *ConnManager          { return r.conns }

// lockTable hands out one mutex per room so persistence+broadcast of
// messages is serialized within a room but rooms never block each other.
// Entries live for the process lifetime; bounded by the number of distinct
// rooms seen.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (t *lockTable) get(key string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l := t.locks[key]
	if l == nil {
		l = &sync.Mutex{}
		t.locks[key] = l
	}
	return l
}

// storageCtx is deliberately detached from the connection: a disconnect
// mid-flight must not cancel a pending persistence call.
func (r *Router) storageCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.cfg.StorageTimeout)
}

// HandleConnect runs once per connection, after authentication. Presence
// registration gates the broadcast: only the offline->online transition is
// announced, then the newcomer alone receives the full online snapshot.
func (r *Router) HandleConnect(c *Client) {
	r.conns.Add(c)
	first := r.presence.Register(c.UserID, c.ConnID)
	if first {
		ctx, cancel := r.storageCtx()
		if err := r.mirror.Online(ctx, c.UserID); err != nil {
			logger.Warnf("[router] presence mirror online failed user=%s err=%v", c.UserID, err)
		}
		cancel()
		r.broadcastAll(mustFrame(EvtPresence, PresenceEvent{UserID: c.UserID, Online: true}))
	}
	c.Enqueue(mustFrame(EvtOnlineList, OnlineListEvent{Users: r.presence.Snapshot()}))
	logger.Infof("[router] connected user=%s conn=%s online=%d", c.UserID, c.ConnID, r.conns.Count())
}

// HandleDisconnect is the terminal transition. Side-effect order matters:
// presence first, then best-effort last-seen persistence, then the offline
// broadcast. Room subscriptions vanish without any broadcast.
func (r *Router) HandleDisconnect(c *Client) {
	r.conns.Remove(c.ConnID)
	r.rooms.LeaveAll(c.ConnID)

	last, lastSeen := r.presence.Unregister(c.UserID, c.ConnID)
	if last {
		ctx, cancel := r.storageCtx()
		if err := r.store.SetUserLastSeen(ctx, c.UserID, lastSeen); err != nil {
			logger.Warnf("[router] last-seen update failed user=%s err=%v", c.UserID, err)
		}
		if err := r.mirror.Offline(ctx, c.UserID, lastSeen); err != nil {
			logger.Warnf("[router] presence mirror offline failed user=%s err=%v", c.UserID, err)
		}
		cancel()

		ls := lastSeen
		r.broadcastAll(mustFrame(EvtPresence, PresenceEvent{UserID: c.UserID, Online: false, LastSeen: &ls}))
	}
	c.Close()
	logger.Infof("[router] disconnected user=%s conn=%s last=%v", c.UserID, c.ConnID, last)
}

// HandleFrame routes one inbound frame. A non-nil return is a protocol
// violation and the caller must close the connection; validation failures
// are swallowed here (event dropped, connection survives).
func (r *Router) HandleFrame(c *Client, raw []byte) error {
	f, err := ParseFrame(raw)
	if err != nil {
		return err
	}

	switch f.Event {
	case EvtJoin:
		r.handleJoin(c, f)
	case EvtTypingStart, EvtTypingStop:
		r.handleTyping(c, f)
	case EvtMessageNew:
		r.handleMessageNew(c, f)
	case EvtMessageRead:
		r.handleMessageRead(c, f)
	default:
		// closed event set: anything else is dropped
		logger.Debugf("[router] unknown event %q conn=%s", f.Event, c.ConnID)
	}
	return nil
}

func (r *Router) handleJoin(c *Client, f *Frame) {
	body, err := decodeBody[JoinBody](f.Data)
	if err != nil {
		r.dropInvalid(c, f.Event, err)
		return
	}

	if r.cfg.CheckMembership {
		ctx, cancel := r.storageCtx()
		ok, err := r.store.IsConversationMember(ctx, body.ConversationID, c.UserID)
		cancel()
		if err != nil {
			// hardening is best-effort: fail open rather than lock users out
			logger.Warnf("[router] membership check failed room=%s user=%s err=%v",
				body.ConversationID, c.UserID, err)
		} else if !ok {
			r.sendError(c, errs.ErrForbidden, uuid.NewString())
			return
		}
	}

	r.rooms.Join(c.ConnID, body.ConversationID)
	logger.Debugf("[router] join room=%s user=%s conn=%s", body.ConversationID, c.UserID, c.ConnID)
}

// Typing is ephemeral: no persistence, at-most-once, sender excluded.
// A frame lost to a full queue is not an error.
func (r *Router) handleTyping(c *Client, f *Frame) {
	body, err := decodeBody[TypingBody](f.Data)
	if err != nil {
		r.dropInvalid(c, f.Event, err)
		return
	}
	payload := mustFrame(f.Event, TypingEvent{ConversationID: body.ConversationID, UserID: c.UserID})
	r.broadcastRoom(body.ConversationID, payload, c.ConnID, false)
}

// handleMessageNew is the critical path: persist, touch, then broadcast the
// canonical record — in that order, serialized per room so broadcast order
// always matches durable append order. On any persistence failure nothing
// is broadcast and only the sender hears about it; retry is the client's.
func (r *Router) handleMessageNew(c *Client, f *Frame) {
	body, err := decodeBody[MessageNewBody](f.Data)
	if err != nil {
		r.dropInvalid(c, f.Event, err)
		return
	}
	trace := uuid.NewString()

	mu := r.roomSeq.get(body.ConversationID)
	mu.Lock()
	defer mu.Unlock()

	ctx, cancel := r.storageCtx()
	defer cancel()

	rec, err := r.store.AppendMessage(ctx, body.ConversationID, c.UserID, body.Text)
	if err != nil {
		logger.Errorf("[router] append failed room=%s user=%s trace=%s err=%v",
			body.ConversationID, c.UserID, trace, err)
		r.sendError(c, errs.ErrStorage, trace)
		return
	}
	if err := r.store.TouchConversation(ctx, body.ConversationID, rec.CreatedAt); err != nil {
		logger.Errorf("[router] touch failed room=%s trace=%s err=%v", body.ConversationID, trace, err)
		r.sendError(c, errs.ErrStorage, trace)
		return
	}

	// sender included: the UI reflects the server-confirmed record, not a
	// local echo
	r.broadcastRoom(body.ConversationID, mustFrame(EvtMessageNew, rec), "", true)
}

func (r *Router) handleMessageRead(c *Client, f *Frame) {
	body, err := decodeBody[MessageReadBody](f.Data)
	if err != nil {
		r.dropInvalid(c, f.Event, err)
		return
	}
	trace := uuid.NewString()

	ctx, cancel := r.storageCtx()
	defer cancel()

	if err := r.store.MarkMessageRead(ctx, body.ConversationID, body.MessageID, c.UserID); err != nil {
		logger.Errorf("[router] mark read failed msg=%s user=%s trace=%s err=%v",
			body.MessageID, c.UserID, trace, err)
		r.sendError(c, errs.ErrStorage, trace)
		return
	}

	payload := mustFrame(EvtMessageRead, ReadEvent{
		ConversationID: body.ConversationID,
		MessageID:      body.MessageID,
		UserID:         c.UserID,
	})
	r.broadcastRoom(body.ConversationID, payload, c.ConnID, true)
}

// ---- fan-out ----

// broadcastRoom enqueues to every connection in the room except exclude.
// critical events close a slow consumer whose queue is full; ephemeral ones
// just drop.
func (r *Router) broadcastRoom(roomID string, payload []byte, exclude string, critical bool) {
	for _, connID := range r.rooms.RecipientsOf(roomID) {
		if connID == exclude {
			continue
		}
		cl, ok := r.conns.Get(connID)
		if !ok {
			continue
		}
		if !cl.Enqueue(payload) && critical {
			logger.Warnf("[router] send queue full, closing slow consumer conn=%s user=%s",
				cl.ConnID, cl.UserID)
			cl.Close()
		}
	}
}

func (r *Router) broadcastAll(payload []byte) {
	for _, cl := range r.conns.ListAll() {
		if !cl.Enqueue(payload) {
			logger.Warnf("[router] send queue full, closing slow consumer conn=%s user=%s",
				cl.ConnID, cl.UserID)
			cl.Close()
		}
	}
}

func (r *Router) sendError(c *Client, ce *errs.CodeError, trace string) {
	c.Enqueue(mustFrame(EvtError, ErrorEvent{Code: ce.Code, Message: ce.Msg, TraceID: trace}))
}

func (r *Router) dropInvalid(c *Client, event string, err error) {
	logger.Debugf("[router] dropped %s conn=%s err=%v", event, c.ConnID, err)
}
