// Package capability defines the declarative capability descriptor every
// adapter publishes at registration time. The dispatcher treats it as
// read-only truth for all gating decisions: no send or action operation is
// attempted unless the matching flag is true.
package capability

// Descriptor is the full capability matrix for one adapter.
// It is immutable after registration.
type Descriptor struct {
	Content  ContentFlags `json:"content"`
	Actions  ActionFlags  `json:"actions"`
	Features FeatureFlags `json:"features"`
	Limits   Limits       `json:"limits"`
}

// ContentFlags states which outbound content types the platform accepts.
type ContentFlags struct {
	Text        bool `json:"text"`
	Image       bool `json:"image"`
	Video       bool `json:"video"`
	Audio       bool `json:"audio"`
	Document    bool `json:"document"`
	Sticker     bool `json:"sticker"`
	Location    bool `json:"location"`
	Contact     bool `json:"contact"`
	Poll        bool `json:"poll"`
	Interactive bool `json:"interactive"`
}

// ActionFlags states which message actions the platform supports.
type ActionFlags struct {
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
	React  bool `json:"react"`
	Pin    bool `json:"pin"`
	Thread bool `json:"thread"`
	Typing bool `json:"typing"`
}

// FeatureFlags states platform-level features.
type FeatureFlags struct {
	Webhooks    bool `json:"webhooks"`
	LongPolling bool `json:"long_polling"`
	Commands    bool `json:"commands"`
	Mentions    bool `json:"mentions"`
	Groups      bool `json:"groups"`
	Channels    bool `json:"channels"`
	Users       bool `json:"users"`
	Files       bool `json:"files"`
}

// Limits holds numeric platform limits. Zero means unknown/unbounded.
type Limits struct {
	MaxMessageLength int   `json:"max_message_length"`
	MaxFileSize      int64 `json:"max_file_size"`
	MaxButtons       int   `json:"max_buttons"`
}
