package router

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/dasiyes/ivmchat/api"
	"github.com/dasiyes/ivmchat/configs/config"
	"github.com/dasiyes/ivmchat/internal/chat"
	"github.com/dasiyes/ivmchat/internal/server/chatws"
	"github.com/dasiyes/ivmchat/internal/services"
	"github.com/dasiyes/ivmchat/tools"
)

// Constructing web application dependencies in the format of handler
type srvHandler struct {
	lgr     *log.Logger
	lists   chat.ListRepo
	cfg     *config.ServiceConfig
	session *services.Session
	wlst    []string
	blst    []string
}

func (h *srvHandler) router() chi.Router {

	rtr := chi.NewRouter()

	// Building middleware chain
	rtr.Use(accessControl)
	rtr.Use(healthcheck)
	rtr.Use(denyBlackListed(&h.wlst, &h.blst))

	// Handle requests to the root URL "/" - live chat websocket connections
	rtr.Route("/", func(wr chi.Router) {
		ws := chatws.NewWSHandler(h.lgr, h.session, h.cfg)
		wr.Mount("/", ws.Router())
	})

	// Handle Prometheus metrics
	rtr.Handle("/metrics", promhttp.Handler())

	// Route the API calls to /v1/api/ ...
	rtr.Route("/v1", func(r chi.Router) {
		rh := api.NewAPIHandler(h.session)
		r.Mount("/api", rh.Router())
	})

	return rtr
}

// NewHandler composes the server endpoints into an http handler.
func NewHandler(lgr *log.Logger, lists chat.ListRepo, cfg *config.ServiceConfig, session *services.Session) http.Handler {

	e := srvHandler{
		lgr:     lgr,
		lists:   lists,
		cfg:     cfg,
		session: session,
	}
	lgr.Info("[router] ...initializing the http server handler...")

	if cfg.AccessListsEnabled {
		e.wlst = tools.GetWhiteListedIPs(lists)
		e.blst = tools.GetBlackListedIPs(lists)
		lgr.Debugf("[router] ...white list: %d, black list: %d entries...", len(e.wlst), len(e.blst))
	}

	return e.router()
}
