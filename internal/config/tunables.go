package config

import "time"

const (
	// Metadata
	RefreshInterval = 5 * time.Second
	CoverDebounce   = 300 * time.Millisecond
	ReconnectDelay  = time.Second

	// Placeholder, поки перший трек не отримано
	PlaceholderTitle  = "Loading..."
	PlaceholderArtist = "Connecting to stream..."
	UnknownTitle      = "Unknown Track"
	UnknownArtist     = "Unknown Artist"

	// Player
	DefaultVolume = 80
	VolumeStep    = 10

	// Chat
	MaxUsernameLength = 32
	MaxMessageLength  = 500

	// Polls
	MinPollOptions = 2
	MaxPollOptions = 10

	// Reports
	ReportHideThreshold = 100

	// Session
	AdminTokenTTL = 72 * time.Hour
)

var ReportWeights = map[string]int{
	"spam":      25,
	"offensive": 50,
	"illegal":   100,
}

// DefaultReportWeight застосовується до причин, яких немає в ReportWeights.
const DefaultReportWeight = 10
