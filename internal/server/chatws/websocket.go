package chatws

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/dasiyes/ivmchat/configs/config"
	"github.com/dasiyes/ivmchat/internal/services"
	"github.com/dasiyes/ivmchat/tools"
)

// WSHandler takes care of the connection upgrade (incl. handshake), the
// connection-level guards and hands the accepted connection over to the
// chat session.
type WSHandler struct {
	lgr     *log.Logger
	session *services.Session
	cfg     *config.ServiceConfig
}

func NewWSHandler(lgr *log.Logger, session *services.Session, cfg *config.ServiceConfig) *WSHandler {
	return &WSHandler{
		lgr:     lgr,
		session: session,
		cfg:     cfg,
	}
}

func (h *WSHandler) Router() chi.Router {
	rtr := chi.NewRouter()

	rtr.Route("/", func(r chi.Router) {
		r.Get("/", h.connman)
	})

	return rtr
}

// connman upgrades the inbound request to a websocket connection and
// registers it in the chat session.
func (h *WSHandler) connman(w http.ResponseWriter, r *http.Request) {

	ip := tools.GetIP(r)

	// per-IP concurrent connection cap
	if tools.IPCount.IPConns(ip) >= h.cfg.GetMaxConnsPerIP() {
		h.lgr.Warnf("[connman] too many concurrent connections from %s", ip)
		http.Error(w, "Too many connections from this IP", http.StatusTooManyRequests)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		EnableCompression: true,
		CheckOrigin:       h.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.lgr.Errorf("[connman] error upgrading the connection to websocket protocol: %v", err)
		return
	}

	client := h.session.Register(conn, ip)
	h.lgr.Infof("[connman] client %s connected from [%s], Origin: [%s]", client.ID(), ip, r.Header.Get("Origin"))
}

// checkOrigin accepts same-host requests and the configured trusted
// origins. An empty trusted list leaves the relay open - the surrounding
// deployment is expected to pin it down in production.
func (h *WSHandler) checkOrigin(r *http.Request) bool {
	org := r.Header.Get("Origin")
	if org == "" {
		return true
	}

	trusted := h.cfg.GetTrustedOrigins()
	if len(trusted) == 0 {
		return true
	}

	for _, v := range trusted {
		if strings.Contains(org, v) || strings.Contains(r.Host, v) {
			return true
		}
	}
	return false
}
