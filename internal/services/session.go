package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/logging"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/dasiyes/ivmchat/configs/config"
	"github.com/dasiyes/ivmchat/pkg/gopool"
	"github.com/dasiyes/ivmchat/tools"
	"github.com/dasiyes/ivmchat/tools/metrics"
)

// Session lives over the entire relay's life-cycle and manages the incoming
// clients' websocket connections: the connection registry, the room
// memberships, the busy tracker and the two rate limiters. All shared state
// is owned here and injected where needed, never package-global, so tests
// can run isolated instances.
type Session struct {
	mu      sync.Mutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client

	active     *activeSessions
	reqLimiter *RateLimiter
	msgLimiter *RateLimiter

	pool *gopool.Pool
	cfg  *config.ServiceConfig
	slgr *log.Logger
	clgr *logging.Logger
}

// NewSession creates the relay session at the time the websocket handler is
// constructed.
func NewSession(pool *gopool.Pool, cfg *config.ServiceConfig, slgr *log.Logger) *Session {

	s := Session{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		active:     newActiveSessions(),
		reqLimiter: NewRateLimiter(cfg.GetRequestRateLimit(), time.Duration(cfg.GetRequestWindowSec())*time.Second),
		msgLimiter: NewRateLimiter(cfg.GetMessageRateLimit(), time.Duration(cfg.GetMessageWindowSec())*time.Second),
		pool:       pool,
		cfg:        cfg,
		slgr:       slgr,
	}

	if cfg.CloudLoggingEnabled {
		s.clgr = initCloudLogger(cfg.GetProjectID(), "ivmchat-cnn")
	}

	return &s
}

// Register takes an upgraded websocket connection and runs it as a client of
// the session. The returned client is already being served from the
// goroutine pool.
func (s *Session) Register(conn *websocket.Conn, ip string) *Client {

	client := &Client{
		id:      uuid.NewString(),
		rooms:   make(map[string]struct{}),
		IP:      ip,
		wsc:     conn,
		lgr:     s.slgr,
		session: s,
		msgwt:   make(chan outEnvelope, 20),
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[client.id] = client
	s.mu.Unlock()

	tools.IPCount.Add(ip)
	metrics.ChNewConnection <- 1

	s.slgr.Infof("[Register] client from [%v] registered as [%v]", ip, client.id)

	if s.clgr != nil {
		s.clgr.Log(logging.Entry{
			Severity: logging.Notice,
			Payload:  fmt.Sprintf(`{"client":"%s", "IP":"%s", "active_clients":%d, "ts":%d}`, client.id, ip, s.ClientsLen(), time.Now().Unix()),
		})
	}

	s.TuneClientConn(client)

	s.pool.Schedule(client.writePump)
	s.pool.Schedule(func() {
		defer s.Remove(client)

		if err := client.ReceiveMsg(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.slgr.Debugf("[handleClient] client %s closed the connection: %v", client.id, err)
			} else {
				s.slgr.Errorf("[handleClient] client %s read loop error: %v", client.id, err)
			}
		}
	})

	return client
}

// Remove runs the complete disconnect cleanup for the client. It must have
// finished before the connection identifier can be reused: busy entries
// owned by the connection are dropped, chat peers notified, room
// memberships, limiter counters and the registry entry removed.
func (s *Session) Remove(client *Client) {

	if client == nil {
		return
	}

	s.mu.Lock()
	if _, ok := s.clients[client.id]; !ok {
		// already removed - the read loop and a shutdown can both get here
		s.mu.Unlock()
		return
	}
	delete(s.clients, client.id)
	for room := range client.rooms {
		s.dropMember(room, client.id)
	}
	s.mu.Unlock()

	// the owner vanished mid-chat - release its busy records and tell the
	// rooms the chat is over
	for _, cs := range s.active.ReleaseConn(client.id) {
		s.slgr.Infof("[Remove] cleared busy record in room %s for disconnected client %s", cs.RoomID, client.id)
		s.broadcast(cs.RoomID, EventChatTerminated, nil, client.id)
	}

	s.reqLimiter.Forget(client.id)
	s.msgLimiter.Forget(client.id)

	if client.IP != "" {
		tools.IPCount.Remove(client.IP)
	}
	ip, max := tools.IPCount.TopIP()
	if ip != "" {
		metrics.ChTopDemandingIP <- map[string]int{ip: max}
	}

	close(client.done)
	if client.wsc != nil {
		if err := client.wsc.Close(); err != nil {
			s.slgr.Debugf("[Remove] closing client %s ws connection: %v", client.id, err)
		}
	}

	s.slgr.Infof("[Remove] client %s from [%s] removed from the session", client.id, client.IP)
}

// TuneClientConn tunes the client connection parameters. Read deadlines are
// disabled - idle policing belongs to the infrastructure in front of the
// relay - but the read limit caps a single inbound frame.
func (s *Session) TuneClientConn(client *Client) {
	var t time.Time

	if err := client.wsc.SetReadDeadline(t); err != nil {
		s.slgr.Errorf("[TuneClientConn] client %s (set-read-deadline): %v", client.id, err)
	}

	client.wsc.SetReadLimit(s.cfg.GetMaxMessageSize())

	if err := client.wsc.SetWriteDeadline(t); err != nil {
		s.slgr.Errorf("[TuneClientConn] client %s (set-write-deadline): %v", client.id, err)
	}

	client.wsc.SetCloseHandler(func(code int, text string) error {
		s.slgr.Debugf("[TuneClientConn] client %s sent close control message. Code:%d, Msg:%s", client.id, code, text)
		return nil
	})

	client.wsc.SetPingHandler(func(appData string) error {
		err := client.wsc.WriteControl(websocket.PongMessage, []byte(`"pong"`), time.Now().Add(time.Second*2))
		if err != nil {
			s.slgr.Errorf("[TuneClientConn] client %s: error sending pong: %v", client.id, err)
		}
		return err
	})
}

// --- event handlers ---

// JoinRoom joins the sender to the named room. The first joined room that
// is the presence announcement records the connection's username - the
// relay tracks connection->username explicitly instead of inferring it from
// the room list later.
func (s *Session) JoinRoom(c *Client, d JoinRoomData) error {
	if d.Room == "" {
		return fmt.Errorf("room name is required")
	}

	c.setUsername(d.Room)
	s.joinRoom(c, d.Room)

	s.slgr.Infof("[join_room] client %s announced presence in room %q", c.id, d.Room)
	return nil
}

// RequestChat asks to reach the owner named in To. The request-rate limiter
// and the busy tracker gate the request; only when both pass is the request
// forwarded to the owner's username room, carrying the requester's
// connection id.
func (s *Session) RequestChat(c *Client, d RequestChatData) error {
	if d.To == "" {
		return fmt.Errorf("target username is required")
	}

	if !s.reqLimiter.Allow(c.id) {
		metrics.ChRateLimited <- 1
		c.writeNotice(EventRateLimited, "Too many chat requests. Please wait before trying again.")
		return nil
	}

	if s.active.IsBusy(d.To) {
		metrics.ChChatBusy <- 1
		c.writeNotice(EventChatBusy, "The owner is currently in another chat. Please try again later.")
		return nil
	}

	n := s.broadcast(d.To, EventRequestChat, IncomingRequestData{From: d.From, SocketID: c.id}, c.id)
	if n == 0 {
		s.slgr.Debugf("[request_chat] no connection present in username room %q", d.To)
	}

	metrics.ChChatRequest <- 1
	return nil
}

// AcceptChat pairs the accepting owner with the requester identified by the
// connection id in To. The busy record is written before any room join or
// emission - the gap this closes is a second requester being accepted while
// the first accept is still in flight.
func (s *Session) AcceptChat(c *Client, d AcceptChatData) error {
	if d.RoomID == "" || d.To == "" {
		return fmt.Errorf("requester id and room id are required")
	}

	owner := c.Username()
	if owner == "" {
		// the owner never announced presence; the chat still proceeds but
		// busy tracking is skipped
		s.slgr.Warnf("[accept_chat] client %s has no announced username, busy tracking skipped", c.id)
	} else if !s.active.Mark(owner, d.RoomID, c.id) {
		c.writeNotice(EventError, "You already have an active chat.")
		return nil
	}

	requester := s.client(d.To)
	if requester == nil {
		// requester disconnected between request and accept - roll back
		// the busy record, join nothing
		if owner != "" {
			s.active.Release(owner)
		}
		s.slgr.Errorf("[accept_chat] requester connection %s no longer exists", d.To)
		return nil
	}

	s.joinRoom(c, d.RoomID)
	s.joinRoom(requester, d.RoomID)
	requester.write(EventChatAccepted, ChatAcceptedData{From: d.From, RoomID: d.RoomID})

	metrics.ChChatAccepted <- 1
	s.slgr.Infof("[accept_chat] requester %s and owner %s joined room %s", requester.id, c.id, d.RoomID)
	return nil
}

// DeclineChat notifies the requester, when still connected, that the owner
// declined. No session state was created, so there is nothing to roll back.
func (s *Session) DeclineChat(c *Client, d DeclineChatData) error {
	requester := s.client(d.To)
	if requester == nil {
		s.slgr.Debugf("[decline_chat] requester connection %s no longer exists", d.To)
		return nil
	}

	requester.write(EventChatDeclined, nil)
	metrics.ChChatDeclined <- 1
	return nil
}

// JoinChatRoom joins the sender to an accepted chat room.
func (s *Session) JoinChatRoom(c *Client, d JoinChatRoomData) error {
	if d.RoomID == "" {
		return fmt.Errorf("room id is required")
	}
	s.joinRoom(c, d.RoomID)
	return nil
}

// SendMessage relays a chat message to every other member of the room. The
// message-rate limiter, the validation and the content filter each stop the
// message with a notice to the sender only - the room never sees a rejected
// message.
func (s *Session) SendMessage(c *Client, d SendMessageData) error {
	if d.RoomID == "" {
		return fmt.Errorf("room id is required")
	}

	if !s.msgLimiter.Allow(c.id) {
		metrics.ChRateLimited <- 1
		c.writeNotice(EventRateLimited, "You're sending messages too quickly. Please slow down.")
		return nil
	}

	sanitized, err := ValidateMessage(d.Message)
	if err != nil {
		metrics.ChMessageBlocked <- 1
		c.writeNotice(EventMessageError, err.Error())
		return nil
	}

	if reason, allowed := FilterMessage(sanitized); !allowed {
		metrics.ChMessageBlocked <- 1
		c.writeNotice(EventMessageBlocked, reason)
		return nil
	}

	s.broadcast(d.RoomID, EventReceiveMessage, ReceiveMessageData{Message: sanitized, From: d.From}, c.id)
	metrics.ChMessageRelayed <- 1
	return nil
}

// TerminateChat ends the live chat in the room: the peers are notified, the
// matching busy record removed and the sender leaves the room.
func (s *Session) TerminateChat(c *Client, d TerminateChatData) error {
	if d.RoomID == "" {
		return fmt.Errorf("room id is required")
	}

	s.broadcast(d.RoomID, EventChatTerminated, nil, c.id)

	if owner, ok := s.active.ReleaseRoom(d.RoomID); ok {
		s.slgr.Infof("[terminate_chat] cleared busy record for %s (room %s)", owner, d.RoomID)
	}

	s.mu.Lock()
	s.dropMember(d.RoomID, c.id)
	delete(c.rooms, d.RoomID)
	s.mu.Unlock()

	metrics.ChChatTerminated <- 1
	return nil
}

// --- registry / rooms ---

// IsBusy reports whether the owner username is currently in a live chat.
func (s *Session) IsBusy(username string) bool {
	return s.active.IsBusy(username)
}

// ClientsLen returns the number of registered connections.
func (s *Session) ClientsLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// RoomLen returns the number of connections joined to the room.
func (s *Session) RoomLen(room string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms[room])
}

func (s *Session) client(id string) *Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients[id]
}

func (s *Session) joinRoom(c *Client, room string) {
	s.mu.Lock()
	members, ok := s.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		s.rooms[room] = members
	}
	members[c.id] = c
	c.rooms[room] = struct{}{}
	s.mu.Unlock()
}

// dropMember removes the connection from the room and the room itself once
// empty. Callers hold s.mu.
func (s *Session) dropMember(room, id string) {
	members, ok := s.rooms[room]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(s.rooms, room)
	}
}

// broadcast emits the event to every room member except the excluded
// connection and returns the number of receivers.
func (s *Session) broadcast(room, event string, data interface{}, exceptID string) int {
	s.mu.Lock()
	receivers := make([]*Client, 0, len(s.rooms[room]))
	for id, member := range s.rooms[room] {
		if id == exceptID {
			continue
		}
		receivers = append(receivers, member)
	}
	s.mu.Unlock()

	for _, member := range receivers {
		member.write(event, data)
	}
	return len(receivers)
}

// Close tears down every registered client - graceful shutdown.
func (s *Session) Close() {
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		s.Remove(c)
	}
}

// initCloudLogger initiates the GCP cloud logger for connection events.
func initCloudLogger(projectID, logName string) *logging.Logger {
	ctx := context.Background()
	client, err := logging.NewClient(ctx, projectID)
	if err != nil {
		log.Errorf("[cloud-logger] unable to initialize cloud logging: %v", err)
		return nil
	}
	client.OnError = func(err error) {
		log.Errorf("[cloud-logger] error [%v] raised while logging to cloud logger", err)
	}
	return client.Logger(logName)
}
