package tools

import "sync"

var (
	IPCount *ipCount
)

func init() {
	IPCount = NewIPCount()
}

// ipCount keeps per-IP connection accounting for the relay. The active map
// holds only currently connected clients, the total map accumulates every
// connection made since the process started.
type ipCount struct {
	active map[string]int
	total  map[string]int
	mutex  sync.Mutex
}

func NewIPCount() *ipCount {
	return &ipCount{
		active: make(map[string]int),
		total:  make(map[string]int),
	}
}

func (i *ipCount) Add(ip string) {
	i.mutex.Lock()
	i.active[ip]++
	i.total[ip]++
	i.mutex.Unlock()
}

// Remove decreases the active connections for the IP and drops the entry
// once the last connection is gone.
func (i *ipCount) Remove(ip string) {
	i.mutex.Lock()
	i.active[ip]--
	if i.active[ip] < 1 {
		delete(i.active, ip)
	}
	i.mutex.Unlock()
}

// Len returns the number of IP addresses with at least one live connection.
func (i *ipCount) Len() int {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return len(i.active)
}

// IPConns returns the active connections from the given IP.
func (i *ipCount) IPConns(ip string) int {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.active[ip]
}

// IPConnsTotal returns the connections made from the IP since service start.
func (i *ipCount) IPConnsTotal(ip string) int {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.total[ip]
}

// TopIP returns the client IP with the highest number of connections made.
func (i *ipCount) TopIP() (ip string, max int) {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	for k, v := range i.total {
		if v > max {
			max = v
			ip = k
		}
	}
	return ip, max
}
