package constants

import (
	"time"
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	// 1000 events is generous for the progress update rate of a handful of transfers
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// Transfer engine
const (
	// DefaultChunkSize - bytes moved between two state polls (256 KB)
	// The executor only observes pause/cancel requests at chunk boundaries,
	// so this bounds the reaction latency together with the transfer rate.
	DefaultChunkSize = 256 * 1000

	// DefaultPollInterval - sleep between two state polls while paused (100ms)
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultRateBytesPerSec - simulated throughput per transfer (4 MB/s)
	DefaultRateBytesPerSec = 4 * 1000 * 1000

	// UpdateChannelBuffer - buffer of the engine -> monitor update channel
	UpdateChannelBuffer = 256
)

// UI Updates
const (
	// ProgressUpdateInterval - interval for progress bar updates (250ms)
	// Balances responsiveness with performance
	ProgressUpdateInterval = 250 * time.Millisecond

	// MinRefreshInterval - lower bound accepted for the display refresh (50ms)
	MinRefreshInterval = 50 * time.Millisecond
)

// Simulation defaults
const (
	DefaultSimUploads   = 3
	DefaultSimDownloads = 2

	// DefaultSimMinSize / DefaultSimMaxSize bound the random file sizes (1 MB - 50 MB)
	DefaultSimMinSize = 1 * 1000 * 1000
	DefaultSimMaxSize = 50 * 1000 * 1000

	// DefaultLocale - message catalog used when none is configured
	DefaultLocale = "en"
)
