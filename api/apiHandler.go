package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/dasiyes/ivmchat/internal/services"
	"github.com/dasiyes/ivmchat/tools"
)

type ApiHandler struct {
	session *services.Session
}

func NewAPIHandler(session *services.Session) *ApiHandler {
	return &ApiHandler{session: session}
}

func (ah *ApiHandler) Router() chi.Router {
	rtr := chi.NewRouter()

	rtr.Route("/", func(r chi.Router) {
		r.Get("/", ah.welcome)
		r.Get("/status", ah.status)
		r.Get("/ipcount", ah.ipcount)
	})

	return rtr
}

func (ah *ApiHandler) welcome(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("{\"success\":\"Welcome to ivmchat api\"}"))
}

// status reports whether the owner is currently engaged in a live chat.
func (ah *ApiHandler) status(w http.ResponseWriter, r *http.Request) {

	username := r.URL.Query().Get("username")
	if username == "" {
		http.Error(w, "{\"error\":\"username is required\"}", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(fmt.Sprintf("{\"username\": %q, \"busy\": %t}", username, ah.session.IsBusy(username))))
}

func (ah *ApiHandler) ipcount(w http.ResponseWriter, r *http.Request) {
	ipcount := tools.GetIPCount()
	ip, max := tools.IPCount.TopIP()
	_, _ = w.Write([]byte(fmt.Sprintf("{\"Active_IP_Connections\": %v,\"Max_connections_from_[%s]\": %v}", ipcount, ip, max)))
}
