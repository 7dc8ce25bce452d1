package config

// ServiceConfig holds the runtime configuration of the ivmchat relay.
type ServiceConfig struct {
	Name                string   `yaml:"name"`
	Port                string   `yaml:"port"`
	PoolMaxWorkers      int      `yaml:"pool_max_workers"`
	PoolQueue           int      `yaml:"pool_queue"`
	MaxConnsPerIP       int      `yaml:"max_conns_per_ip"`
	MaxMessageSize      int64    `yaml:"max_message_size"`
	RequestRateLimit    int      `yaml:"request_rate_limit"`
	RequestWindowSec    int      `yaml:"request_window_sec"`
	MessageRateLimit    int      `yaml:"message_rate_limit"`
	MessageWindowSec    int      `yaml:"message_window_sec"`
	CloudLoggingEnabled bool     `yaml:"cloud_logging_enabled"`
	AccessListsEnabled  bool     `yaml:"access_lists_enabled"`
	TrustedOrigins      []string `yaml:"trusted_origins"`
	Firestore           *firestore
}

type firestore struct {
	ProjectID               string `yaml:"project_id"`
	WhiteListCollectionName string `yaml:"whitelist_collection_name"`
	BlackListCollectionName string `yaml:"blacklist_collection_name"`
}

func (s *ServiceConfig) GetProjectID() string {
	if s.Firestore == nil {
		return ""
	}
	return s.Firestore.ProjectID
}

func (s *ServiceConfig) GetWhiteListCollectionName() string {
	if s.Firestore == nil {
		return "ip-whitelist"
	}
	return s.Firestore.WhiteListCollectionName
}

func (s *ServiceConfig) GetBlackListCollectionName() string {
	if s.Firestore == nil {
		return "ip-blacklist"
	}
	return s.Firestore.BlackListCollectionName
}

func (s *ServiceConfig) GetTrustedOrigins() []string {
	return s.TrustedOrigins
}

// GetMaxConnsPerIP - concurrent websocket connections allowed from one IP.
func (s *ServiceConfig) GetMaxConnsPerIP() int {
	if s.MaxConnsPerIP < 1 {
		return 5
	}
	return s.MaxConnsPerIP
}

// GetMaxMessageSize - the read limit on a single inbound websocket frame.
func (s *ServiceConfig) GetMaxMessageSize() int64 {
	if s.MaxMessageSize < 1 {
		return 1 << 20
	}
	return s.MaxMessageSize
}

// GetRequestRateLimit - chat requests allowed per window per connection.
func (s *ServiceConfig) GetRequestRateLimit() int {
	if s.RequestRateLimit < 1 {
		return 3
	}
	return s.RequestRateLimit
}

// GetRequestWindowSec - the chat-request rate window in seconds.
func (s *ServiceConfig) GetRequestWindowSec() int {
	if s.RequestWindowSec < 1 {
		return 60
	}
	return s.RequestWindowSec
}

// GetMessageRateLimit - chat messages allowed per window per connection.
func (s *ServiceConfig) GetMessageRateLimit() int {
	if s.MessageRateLimit < 1 {
		return 10
	}
	return s.MessageRateLimit
}

// GetMessageWindowSec - the message rate window in seconds.
func (s *ServiceConfig) GetMessageWindowSec() int {
	if s.MessageWindowSec < 1 {
		return 10
	}
	return s.MessageWindowSec
}
