package domain

// Platform identifies a streaming platform a search rule applies to.
type Platform string

const (
	PlatformTwitch Platform = "twitch"
	PlatformKick   Platform = "kick"
)

// Valid reports whether p is a known platform value.
func (p Platform) Valid() bool {
	return p == PlatformTwitch || p == PlatformKick
}

func (p Platform) String() string {
	return string(p)
}
