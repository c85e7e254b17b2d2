package model

import "time"

// HubStats is the diagnostics snapshot of the matching engine.
type HubStats struct {
	Connections int            `json:"connections"`
	Idle        int            `json:"idle"`
	Waiting     int            `json:"waiting"`
	Paired      int            `json:"paired"`
	QueueDepths map[Bucket]int `json:"queue_depths"`
	Uptime      time.Duration  `json:"uptime"`
}
