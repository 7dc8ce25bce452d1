package services

import (
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/dasiyes/ivmchat/configs/config"
	"github.com/dasiyes/ivmchat/pkg/gopool"
)

func newTestSession() *Session {
	lgr := log.New()
	lgr.SetOutput(io.Discard)

	cfg := &config.ServiceConfig{
		RequestRateLimit: 3,
		RequestWindowSec: 60,
		MessageRateLimit: 10,
		MessageWindowSec: 10,
	}
	return NewSession(gopool.NewPool(4, 1, 1), cfg, lgr)
}

// addTestClient registers a synthetic client without a live websocket
// connection; outbound events pile up in its buffer for inspection.
func addTestClient(s *Session) *Client {
	c := &Client{
		id:      uuid.NewString(),
		rooms:   make(map[string]struct{}),
		lgr:     s.slgr,
		session: s,
		msgwt:   make(chan outEnvelope, 20),
		done:    make(chan struct{}),
	}
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	return c
}

func nextEvent(c *Client) (outEnvelope, bool) {
	select {
	case ev := <-c.msgwt:
		return ev, true
	default:
		return outEnvelope{}, false
	}
}

func TestJoinRoomRecordsUsername(t *testing.T) {

	s := newTestSession()
	c := addTestClient(s)

	if err := s.JoinRoom(c, JoinRoomData{Room: "alice"}); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if c.Username() != "alice" {
		t.Errorf("username = %q, want alice", c.Username())
	}

	// a later room join must not overwrite the announced identity
	if err := s.JoinRoom(c, JoinRoomData{Room: "another"}); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if c.Username() != "alice" {
		t.Errorf("username overwritten to %q", c.Username())
	}

	if err := s.JoinRoom(c, JoinRoomData{Room: ""}); err == nil {
		t.Error("JoinRoom accepted an empty room name")
	}
}

func TestRequestChatForwardsToOwnerRoom(t *testing.T) {

	s := newTestSession()
	owner := addTestClient(s)
	requester := addTestClient(s)

	_ = s.JoinRoom(owner, JoinRoomData{Room: "alice"})

	if err := s.RequestChat(requester, RequestChatData{To: "alice", From: "anon1"}); err != nil {
		t.Fatalf("RequestChat: %v", err)
	}

	ev, ok := nextEvent(owner)
	if !ok || ev.Event != EventRequestChat {
		t.Fatalf("owner did not receive request_chat, got %+v", ev)
	}
	data, ok := ev.Data.(IncomingRequestData)
	if !ok {
		t.Fatalf("unexpected payload type %T", ev.Data)
	}
	if data.From != "anon1" || data.SocketID != requester.id {
		t.Errorf("payload = %+v, want from anon1 and the requester's connection id", data)
	}

	if ev, ok := nextEvent(requester); ok {
		t.Errorf("requester received unexpected event %q", ev.Event)
	}
}

func TestRequestChatBusyOwner(t *testing.T) {

	s := newTestSession()
	owner := addTestClient(s)
	requester := addTestClient(s)

	_ = s.JoinRoom(owner, JoinRoomData{Room: "alice"})
	s.active.Mark("alice", "chat_1", owner.id)

	if err := s.RequestChat(requester, RequestChatData{To: "alice", From: "anon1"}); err != nil {
		t.Fatalf("RequestChat: %v", err)
	}

	ev, ok := nextEvent(requester)
	if !ok || ev.Event != EventChatBusy {
		t.Fatalf("requester did not receive chat_busy, got %+v", ev)
	}

	// nothing must have been forwarded to the busy owner
	if ev, ok := nextEvent(owner); ok {
		t.Errorf("busy owner received %q", ev.Event)
	}
}

func TestRequestChatRateLimited(t *testing.T) {

	s := newTestSession()
	requester := addTestClient(s)

	for i := 0; i < 3; i++ {
		if err := s.RequestChat(requester, RequestChatData{To: "alice", From: "anon1"}); err != nil {
			t.Fatalf("RequestChat %d: %v", i+1, err)
		}
		if ev, ok := nextEvent(requester); ok {
			t.Fatalf("request %d bounced with %q", i+1, ev.Event)
		}
	}

	if err := s.RequestChat(requester, RequestChatData{To: "alice", From: "anon1"}); err != nil {
		t.Fatalf("RequestChat: %v", err)
	}
	ev, ok := nextEvent(requester)
	if !ok || ev.Event != EventRateLimited {
		t.Fatalf("4th request within the window did not yield rate_limited, got %+v", ev)
	}
}

func TestAcceptChatPairsBothParties(t *testing.T) {

	s := newTestSession()
	owner := addTestClient(s)
	requester := addTestClient(s)

	_ = s.JoinRoom(owner, JoinRoomData{Room: "alice"})

	if err := s.AcceptChat(owner, AcceptChatData{To: requester.id, From: "Owner", RoomID: "chat_123"}); err != nil {
		t.Fatalf("AcceptChat: %v", err)
	}

	if !s.IsBusy("alice") {
		t.Error("alice not marked busy after accept")
	}

	ev, ok := nextEvent(requester)
	if !ok || ev.Event != EventChatAccepted {
		t.Fatalf("requester did not receive chat_accepted, got %+v", ev)
	}
	data := ev.Data.(ChatAcceptedData)
	if data.From != "Owner" || data.RoomID != "chat_123" {
		t.Errorf("chat_accepted payload = %+v", data)
	}

	s.mu.Lock()
	members := len(s.rooms["chat_123"])
	s.mu.Unlock()
	if members != 2 {
		t.Errorf("room chat_123 has %d members, want 2", members)
	}
}

func TestAcceptChatRollsBackWhenRequesterGone(t *testing.T) {

	s := newTestSession()
	owner := addTestClient(s)

	_ = s.JoinRoom(owner, JoinRoomData{Room: "alice"})

	if err := s.AcceptChat(owner, AcceptChatData{To: "gone", From: "Owner", RoomID: "chat_123"}); err != nil {
		t.Fatalf("AcceptChat: %v", err)
	}

	if s.IsBusy("alice") {
		t.Error("busy record not rolled back after the requester disappeared")
	}

	s.mu.Lock()
	_, roomExists := s.rooms["chat_123"]
	s.mu.Unlock()
	if roomExists {
		t.Error("owner joined the chat room despite the rollback")
	}
}

func TestAcceptChatSecondAcceptRejected(t *testing.T) {

	s := newTestSession()
	owner := addTestClient(s)
	first := addTestClient(s)
	second := addTestClient(s)

	_ = s.JoinRoom(owner, JoinRoomData{Room: "alice"})

	_ = s.AcceptChat(owner, AcceptChatData{To: first.id, From: "Owner", RoomID: "chat_1"})
	_, _ = nextEvent(first)

	if err := s.AcceptChat(owner, AcceptChatData{To: second.id, From: "Owner", RoomID: "chat_2"}); err != nil {
		t.Fatalf("AcceptChat: %v", err)
	}

	if s.active.Len() != 1 {
		t.Errorf("busy tracker holds %d records for one owner, want 1", s.active.Len())
	}
	if ev, ok := nextEvent(second); ok {
		t.Errorf("second requester received %q despite the rejected accept", ev.Event)
	}
	if ev, ok := nextEvent(owner); !ok || ev.Event != EventError {
		t.Errorf("owner got %+v, want an error notice for the second accept", ev)
	}
}

func TestAcceptChatWithoutUsernameSkipsBusyTracking(t *testing.T) {

	s := newTestSession()
	owner := addTestClient(s)
	requester := addTestClient(s)

	// owner never announced presence
	if err := s.AcceptChat(owner, AcceptChatData{To: requester.id, From: "Owner", RoomID: "chat_9"}); err != nil {
		t.Fatalf("AcceptChat: %v", err)
	}

	if ev, ok := nextEvent(requester); !ok || ev.Event != EventChatAccepted {
		t.Fatalf("requester did not receive chat_accepted, got %+v", ev)
	}
	if s.active.Len() != 0 {
		t.Error("busy record created without a resolved username")
	}
}

func TestDeclineChat(t *testing.T) {

	s := newTestSession()
	owner := addTestClient(s)
	requester := addTestClient(s)

	if err := s.DeclineChat(owner, DeclineChatData{To: requester.id}); err != nil {
		t.Fatalf("DeclineChat: %v", err)
	}
	if ev, ok := nextEvent(requester); !ok || ev.Event != EventChatDeclined {
		t.Fatalf("requester did not receive chat_declined, got %+v", ev)
	}

	// a gone requester is a no-op
	if err := s.DeclineChat(owner, DeclineChatData{To: "gone"}); err != nil {
		t.Errorf("DeclineChat for a gone requester errored: %v", err)
	}
}

func TestSendMessageRelaysToRoomMinusSender(t *testing.T) {

	s := newTestSession()
	owner := addTestClient(s)
	requester := addTestClient(s)

	_ = s.JoinChatRoom(owner, JoinChatRoomData{RoomID: "chat_123"})
	_ = s.JoinChatRoom(requester, JoinChatRoomData{RoomID: "chat_123"})

	if err := s.SendMessage(requester, SendMessageData{RoomID: "chat_123", Message: "hi", From: "Anonymous"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	ev, ok := nextEvent(owner)
	if !ok || ev.Event != EventReceiveMessage {
		t.Fatalf("owner did not receive the message, got %+v", ev)
	}
	data := ev.Data.(ReceiveMessageData)
	if data.Message != "hi" || data.From != "Anonymous" {
		t.Errorf("relayed payload = %+v", data)
	}

	// the sender must not receive its own message back
	if ev, ok := nextEvent(requester); ok {
		t.Errorf("sender received its own message back: %q", ev.Event)
	}
}

func TestSendMessageSanitizesMarkup(t *testing.T) {

	s := newTestSession()
	sender := addTestClient(s)
	peer := addTestClient(s)

	_ = s.JoinChatRoom(sender, JoinChatRoomData{RoomID: "chat_123"})
	_ = s.JoinChatRoom(peer, JoinChatRoomData{RoomID: "chat_123"})

	_ = s.SendMessage(sender, SendMessageData{RoomID: "chat_123", Message: "<script>alert(1)</script>hello", From: "Anonymous"})

	ev, ok := nextEvent(peer)
	if !ok || ev.Event != EventReceiveMessage {
		t.Fatalf("peer did not receive the message, got %+v", ev)
	}
	data := ev.Data.(ReceiveMessageData)
	if strings.ContainsAny(data.Message, "<>") {
		t.Errorf("relayed content still contains tags: %q", data.Message)
	}
	if data.Message != "hello" {
		t.Errorf("relayed content = %q, want hello", data.Message)
	}
}

func TestSendMessageRejectionsReachSenderOnly(t *testing.T) {

	s := newTestSession()
	sender := addTestClient(s)
	peer := addTestClient(s)

	_ = s.JoinChatRoom(sender, JoinChatRoomData{RoomID: "chat_123"})
	_ = s.JoinChatRoom(peer, JoinChatRoomData{RoomID: "chat_123"})

	// over-length
	long := strings.Repeat("x", ChatMessageMaxLength+1)
	_ = s.SendMessage(sender, SendMessageData{RoomID: "chat_123", Message: long, From: "Anonymous"})
	if ev, ok := nextEvent(sender); !ok || ev.Event != EventMessageError {
		t.Fatalf("sender got %+v, want message_error", ev)
	}

	// empty after stripping
	_ = s.SendMessage(sender, SendMessageData{RoomID: "chat_123", Message: "<b></b>", From: "Anonymous"})
	if ev, ok := nextEvent(sender); !ok || ev.Event != EventMessageError {
		t.Fatalf("sender got %+v, want message_error", ev)
	}

	// spam pattern
	_ = s.SendMessage(sender, SendMessageData{RoomID: "chat_123", Message: strings.Repeat("a", 30), From: "Anonymous"})
	if ev, ok := nextEvent(sender); !ok || ev.Event != EventMessageBlocked {
		t.Fatalf("sender got %+v, want message_blocked", ev)
	}

	if ev, ok := nextEvent(peer); ok {
		t.Errorf("peer received %q for a rejected message", ev.Event)
	}
}

func TestSendMessageRateLimited(t *testing.T) {

	s := newTestSession()
	sender := addTestClient(s)
	peer := addTestClient(s)

	_ = s.JoinChatRoom(sender, JoinChatRoomData{RoomID: "chat_123"})
	_ = s.JoinChatRoom(peer, JoinChatRoomData{RoomID: "chat_123"})

	for i := 0; i < 10; i++ {
		_ = s.SendMessage(sender, SendMessageData{RoomID: "chat_123", Message: "msg", From: "Anonymous"})
	}
	_ = s.SendMessage(sender, SendMessageData{RoomID: "chat_123", Message: "one too many", From: "Anonymous"})

	if ev, ok := nextEvent(sender); !ok || ev.Event != EventRateLimited {
		t.Fatalf("sender got %+v, want rate_limited", ev)
	}

	received := 0
	for {
		if _, ok := nextEvent(peer); !ok {
			break
		}
		received++
	}
	if received != 10 {
		t.Errorf("peer received %d messages, want exactly 10", received)
	}
}

func TestTerminateChatClearsBusyAndNotifiesPeer(t *testing.T) {

	s := newTestSession()
	owner := addTestClient(s)
	requester := addTestClient(s)

	_ = s.JoinRoom(owner, JoinRoomData{Room: "alice"})
	_ = s.AcceptChat(owner, AcceptChatData{To: requester.id, From: "Owner", RoomID: "chat_123"})
	_, _ = nextEvent(requester)

	if err := s.TerminateChat(owner, TerminateChatData{RoomID: "chat_123"}); err != nil {
		t.Fatalf("TerminateChat: %v", err)
	}

	if ev, ok := nextEvent(requester); !ok || ev.Event != EventChatTerminated {
		t.Fatalf("requester got %+v, want chat_terminated", ev)
	}
	if s.active.Len() != 0 {
		t.Errorf("busy tracker holds %d records after terminate, want 0", s.active.Len())
	}

	s.mu.Lock()
	_, ownerStill := s.rooms["chat_123"][owner.id]
	s.mu.Unlock()
	if ownerStill {
		t.Error("terminating client still member of the chat room")
	}
}

func TestDisconnectCleansOnlyOwnSessions(t *testing.T) {

	s := newTestSession()
	alice := addTestClient(s)
	aliceGuest := addTestClient(s)
	bob := addTestClient(s)
	bobGuest := addTestClient(s)

	_ = s.JoinRoom(alice, JoinRoomData{Room: "alice"})
	_ = s.JoinRoom(bob, JoinRoomData{Room: "bob"})
	_ = s.AcceptChat(alice, AcceptChatData{To: aliceGuest.id, From: "Owner", RoomID: "chat_a"})
	_ = s.AcceptChat(bob, AcceptChatData{To: bobGuest.id, From: "Owner", RoomID: "chat_b"})
	_, _ = nextEvent(aliceGuest)
	_, _ = nextEvent(bobGuest)

	s.Remove(alice)

	if s.IsBusy("alice") {
		t.Error("alice still busy after her connection disconnected")
	}
	if !s.IsBusy("bob") {
		t.Error("bob's busy record was removed by another owner's disconnect")
	}

	// the abandoned peer is told the chat is over
	if ev, ok := nextEvent(aliceGuest); !ok || ev.Event != EventChatTerminated {
		t.Fatalf("abandoned requester got %+v, want chat_terminated", ev)
	}
	if ev, ok := nextEvent(bobGuest); ok {
		t.Errorf("unrelated requester received %q", ev.Event)
	}

	if s.client(alice.id) != nil {
		t.Error("disconnected client still in the registry")
	}

	// a second Remove for the same client is a no-op
	s.Remove(alice)
}
