package tools

import (
	"net"
	"net/http"
	"strings"

	"github.com/dasiyes/ivmchat/internal/chat"
	log "github.com/sirupsen/logrus"
)

// GetIP resolves the client IP address from the request headers set by the
// load balancer in front of the relay, falling back to the remote address.
func GetIP(r *http.Request) string {
	var ip string

	ip = r.Header.Get("X-Real-IP")
	if ip == "" {
		xff := r.Header.Get("X-Forwarded-For")
		if xff != "" {
			xffs := strings.Split(xff, ",")
			ip = strings.TrimSpace(xffs[0])
		}
	}

	if ip == "" {
		ip, _, _ = net.SplitHostPort(r.RemoteAddr)
	}
	if ip == "" {
		ip = r.RemoteAddr
	}
	return ip
}

// GetIPCount returns the number of distinct IPs with active connections.
func GetIPCount() int {
	return IPCount.Len()
}

// GetWhiteListedIPs loads the white-listed IPs from the lists repository.
// Errors are logged, not fatal - an empty list only disables the bypass.
func GetWhiteListedIPs(lists chat.ListRepo) []string {
	if lists == nil {
		return nil
	}
	wl, err := lists.GetWLIPS()
	if err != nil {
		log.Errorf("[tools] unable to load the IP whitelist: %v", err)
		return nil
	}
	return wl
}

// GetBlackListedIPs loads the black-listed IPs from the lists repository.
func GetBlackListedIPs(lists chat.ListRepo) []string {
	if lists == nil {
		return nil
	}
	bl, err := lists.GetBLIPS()
	if err != nil {
		log.Errorf("[tools] unable to load the IP blacklist: %v", err)
		return nil
	}
	return bl
}

// Contains reports whether the list holds the exact value.
func Contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
