package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChNewConnection  = make(chan int, 100)
	ChChatRequest    = make(chan int, 100)
	ChChatAccepted   = make(chan int, 50)
	ChChatDeclined   = make(chan int, 50)
	ChChatBusy       = make(chan int, 50)
	ChChatTerminated = make(chan int, 50)
	ChRateLimited    = make(chan int, 100)
	ChMessageRelayed = make(chan int, 100)
	ChMessageBlocked = make(chan int, 100)
	ChTopDemandingIP = make(chan map[string]int, 2)
)

// Defined application metrics to track
var (
	connsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ivmchat",
		Subsystem: "chat",
		Name:      "ivmchat_total_connections",
		Help:      "The total number of websocket connections accepted by the relay",
	})

	chatRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ivmchat",
		Subsystem: "chat",
		Name:      "ivmchat_total_chat_requests",
		Help:      "The total number of chat requests forwarded to owners",
	})

	chatAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ivmchat",
		Subsystem: "chat",
		Name:      "ivmchat_total_chats_accepted",
		Help:      "The total number of chat requests accepted by owners",
	})

	chatDeclined = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ivmchat",
		Subsystem: "chat",
		Name:      "ivmchat_total_chats_declined",
		Help:      "The total number of chat requests declined by owners",
	})

	chatBusyRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ivmchat",
		Subsystem: "chat",
		Name:      "ivmchat_total_busy_rejections",
		Help:      "The total number of chat requests dropped because the owner was busy",
	})

	chatTerminated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ivmchat",
		Subsystem: "chat",
		Name:      "ivmchat_total_chats_terminated",
		Help:      "The total number of live chats terminated",
	})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ivmchat",
		Subsystem: "chat",
		Name:      "ivmchat_total_rate_limited",
		Help:      "The total number of actions rejected by the rate limiters",
	})

	messagesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ivmchat",
		Subsystem: "chat",
		Name:      "ivmchat_total_messages_relayed",
		Help:      "The total number of chat messages relayed between the room members",
	})

	messagesBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ivmchat",
		Subsystem: "chat",
		Name:      "ivmchat_total_messages_blocked",
		Help:      "The total number of chat messages rejected by validation or the content filter",
	})

	connsTopDemandingIP = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ivmchat",
		Subsystem: "chat",
		Name:      "ivmchat_top_demanding_ip",
		Help:      "The top demanding IP on number of connections",
	},
		[]string{
			"ip",
		})
)

func init() {
	recordAppMetrics()
}

func recordAppMetrics() {

	// Worker for tracking accepted websocket connections
	go func() {
		for range ChNewConnection {
			connsAccepted.Inc()
		}
	}()

	// Worker to track forwarded chat requests
	go func() {
		for range ChChatRequest {
			chatRequests.Inc()
		}
	}()

	// Worker to track accepted chats
	go func() {
		for range ChChatAccepted {
			chatAccepted.Inc()
		}
	}()

	// Worker to track declined chats
	go func() {
		for range ChChatDeclined {
			chatDeclined.Inc()
		}
	}()

	// Worker to track busy rejections
	go func() {
		for range ChChatBusy {
			chatBusyRejected.Inc()
		}
	}()

	// Worker to track terminated chats
	go func() {
		for range ChChatTerminated {
			chatTerminated.Inc()
		}
	}()

	// Worker to track rate-limited drops
	go func() {
		for range ChRateLimited {
			rateLimited.Inc()
		}
	}()

	// Worker to track relayed messages
	go func() {
		for range ChMessageRelayed {
			messagesRelayed.Inc()
		}
	}()

	// Worker to track blocked messages
	go func() {
		for range ChMessageBlocked {
			messagesBlocked.Inc()
		}
	}()

	// Worker to track the most demanding IP address connecting to the relay
	go func() {
		for tdip := range ChTopDemandingIP {

			for ip, v := range tdip {
				connsTopDemandingIP.WithLabelValues(ip).Set(float64(v))
				break
			}
		}
	}()
}
