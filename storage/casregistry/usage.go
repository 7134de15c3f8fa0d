package casregistry

// Usage restricts which programs accept a backend.
type Usage uint8

const (
	// UsageCLI backends are offered by mpstctl.
	UsageCLI Usage = 1 << iota
	// UsageDaemon backends are offered by mpst-storaged.
	UsageDaemon
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }
