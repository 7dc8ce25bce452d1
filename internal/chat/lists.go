package chat

// WhiteList marks an IP address exempt from the connection guards.
type WhiteList struct {
	IP        string `json:"ip"`
	Note      string `json:"note"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// BlackList marks an IP address denied at the front door.
type BlackList struct {
	IP        string `json:"ip"`
	Reason    string `json:"reason"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// ListRepo is the repository holding the relay's IP access lists.
type ListRepo interface {
	StoreWhiteList(wl *WhiteList) error
	GetWhiteList(ip string) (*WhiteList, error)
	GetWLIPS() ([]string, error)
	StoreBlackList(bl *BlackList) error
	GetBlackList(ip string) (*BlackList, error)
	GetBLIPS() ([]string, error)
}
