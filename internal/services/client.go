package services

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Client represents one websocket connection registered in the session.
// The id is the transport-level identity (the socket id of the protocol),
// the username is recorded when the client announces its presence by
// joining its username room.
type Client struct {
	mu       sync.Mutex
	id       string
	username string
	rooms    map[string]struct{}

	IP      string
	wsc     *websocket.Conn
	lgr     *log.Logger
	session *Session
	msgwt   chan outEnvelope
	done    chan struct{}
}

func (c *Client) ID() string {
	return c.id
}

// Username returns the username announced by this connection, or the empty
// string before the presence announcement.
func (c *Client) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

func (c *Client) setUsername(username string) {
	c.mu.Lock()
	if c.username == "" {
		c.username = username
	}
	c.mu.Unlock()
}

// ReceiveMsg is the client's read loop. It returns when the connection
// errors or closes; every inbound frame is dispatched to the event handler
// and a bad frame never takes the loop down.
func (c *Client) ReceiveMsg() error {
	for {
		_, payload, err := c.wsc.ReadMessage()
		if err != nil {
			return err
		}
		c.dispatch(payload)
	}
}

// dispatch routes one inbound frame by its event name. Malformed or
// unexpected payloads are converted to an `error` event to the sender -
// one connection's bad input must never crash the relay.
func (c *Client) dispatch(payload []byte) {

	defer func() {
		if r := recover(); r != nil {
			c.lgr.Errorf("[dispatch] client %s: recovered from handler panic: %v", c.id, r)
			c.writeNotice(EventError, "An error occurred. Please try again.")
		}
	}()

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		c.lgr.Debugf("[dispatch] client %s sent a malformed frame: %v", c.id, err)
		c.writeNotice(EventError, "An error occurred. Please try again.")
		return
	}

	var err error
	switch env.Event {
	case EventJoinRoom:
		var d JoinRoomData
		if err = decodeData(env.Data, &d); err == nil {
			err = c.session.JoinRoom(c, d)
		}
	case EventRequestChat:
		var d RequestChatData
		if err = decodeData(env.Data, &d); err == nil {
			err = c.session.RequestChat(c, d)
		}
	case EventAcceptChat:
		var d AcceptChatData
		if err = decodeData(env.Data, &d); err == nil {
			err = c.session.AcceptChat(c, d)
		}
	case EventDeclineChat:
		var d DeclineChatData
		if err = decodeData(env.Data, &d); err == nil {
			err = c.session.DeclineChat(c, d)
		}
	case EventJoinChatRoom:
		var d JoinChatRoomData
		if err = decodeData(env.Data, &d); err == nil {
			err = c.session.JoinChatRoom(c, d)
		}
	case EventSendMessage:
		var d SendMessageData
		if err = decodeData(env.Data, &d); err == nil {
			err = c.session.SendMessage(c, d)
		}
	case EventTerminateChat:
		var d TerminateChatData
		if err = decodeData(env.Data, &d); err == nil {
			err = c.session.TerminateChat(c, d)
		}
	default:
		err = fmt.Errorf("unknown event %q", env.Event)
	}

	if err != nil {
		c.lgr.Errorf("[dispatch] client %s, event %q: %v", c.id, env.Event, err)
		c.writeNotice(EventError, "An error occurred. Please try again.")
	}
}

func decodeData(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing event data")
	}
	return json.Unmarshal(raw, v)
}

// write queues an outbound event for the write pump. A slow consumer whose
// buffer is full loses the frame - best-effort delivery only.
func (c *Client) write(event string, data interface{}) {
	select {
	case c.msgwt <- outEnvelope{Event: event, Data: data}:
	case <-c.done:
	default:
		c.lgr.Warnf("[write] client %s: outbound buffer full, dropping %q", c.id, event)
	}
}

func (c *Client) writeNotice(event, message string) {
	c.write(event, NoticeData{Message: message})
}

// writePump is the single writer on the websocket connection.
func (c *Client) writePump() {
	for {
		select {
		case ev := <-c.msgwt:
			if err := c.wsc.WriteJSON(ev); err != nil {
				c.lgr.Debugf("[writePump] client %s: %v", c.id, err)
				return
			}
		case <-c.done:
			return
		}
	}
}
