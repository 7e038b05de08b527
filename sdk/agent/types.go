package agent

// RegisterNodeRequest describes the node to add to the directory.
type RegisterNodeRequest struct {
	Name             string   `json:"name"`
	PublicIdentity   string   `json:"public_identity"`
	CountryCode      string   `json:"country_code"`
	City             string   `json:"city,omitempty"`
	BandwidthMbps    uint     `json:"bandwidth_mbps"`
	MaxConnections   uint     `json:"max_connections"`
	Protocols        []string `json:"protocols"`
	AllowedCountries []string `json:"allowed_countries,omitempty"`
	BlockedCountries []string `json:"blocked_countries,omitempty"`
	AllowStreaming   bool     `json:"allow_streaming"`
	AllowTorrents    bool     `json:"allow_torrents"`
	DailyByteCap     uint64   `json:"daily_byte_cap,omitempty"`
}

// RegisterNodeResult carries the registered node's identity and its API
// token. The token is returned exactly once; store it.
type RegisterNodeResult struct {
	NodeSID  string `json:"node_sid"`
	Name     string `json:"name"`
	Country  string `json:"country"`
	APIToken string `json:"api_token"`
}

// HeartbeatRequest refreshes the node's liveness window and quality counters.
type HeartbeatRequest struct {
	ReportedConnections uint     `json:"reported_connections"`
	UptimePercent       float64  `json:"uptime_percent"`
	LatencyMs           *float64 `json:"latency_ms,omitempty"`
	BandwidthMbps       *float64 `json:"bandwidth_mbps,omitempty"`
}

// HeartbeatResult is the broker's view of the node after the heartbeat.
type HeartbeatResult struct {
	NodeSID    string  `json:"node_sid"`
	Online     bool    `json:"online"`
	Reputation float64 `json:"reputation"`
	Recovered  bool    `json:"recovered"`
}

// TrafficReportResult acknowledges a cumulative byte report. Closed means a
// guard ended the session; the agent must tear the tunnel down.
type TrafficReportResult struct {
	SessionSID    string `json:"session_sid"`
	Accepted      bool   `json:"accepted"`
	Closed        bool   `json:"closed"`
	CloseReason   string `json:"close_reason,omitempty"`
	CreditsSpent  int64  `json:"credits_spent"`
	CreditsEarned int64  `json:"credits_earned"`
}

// OfflineResult confirms a graceful shutdown announcement.
type OfflineResult struct {
	NodeSID        string `json:"node_sid"`
	SessionsClosed int    `json:"sessions_closed"`
}

// apiResponse is the broker's uniform response envelope.
type apiResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
	Message string    `json:"message,omitempty"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
