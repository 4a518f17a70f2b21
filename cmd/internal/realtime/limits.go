package realtime

import "time"

// Security/performance limits.
const (
	// Max bytes per websocket frame read (hard limit).
	maxFrameBytes = 8 << 10 // 8 KiB

	// Max secret length accepted for a strength check (runes). Anything longer
	// is already invalid, so it is refused before validation.
	maxSecretChars = 1024
)

const (
	// Heartbeat defaults (overridable by env).
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Per-connection rate limits (events per window). A strength meter fires on
	// every keystroke, so this is looser than a chat would be.
	rateLimitEvents = 60
	rateLimitWindow = 5 * time.Second
)
