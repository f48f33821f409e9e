package constant

import "time"

const (
	DefaultRowLimit = int32(100)

	SignerTimeout   = 60 * time.Second
	ExplorerTimeout = 10 * time.Second
	ProviderTimeout = 15 * time.Second
	AlertTimeout    = 5 * time.Second
	RedisTimeout    = 5 * time.Second
)
