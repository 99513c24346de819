package status

// Indicator is the population level shown as a glyph in a channel name.
type Indicator int

const (
	Low Indicator = iota
	Medium
	High
)

func (i Indicator) String() string {
	switch i {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

func (i Indicator) Glyph() string {
	switch i {
	case Medium:
		return "🟡"
	case High:
		return "🟢"
	default:
		return "🔴"
	}
}

// Thresholds are inclusive upper bounds for Low (Yellow) and Medium (Green).
// Yellow < Green is expected but not enforced.
type Thresholds struct {
	Yellow int
	Green  int
}

// Ordered reports whether Yellow is strictly below Green.
func (t Thresholds) Ordered() bool { return t.Yellow < t.Green }

func Classify(players int, t Thresholds) Indicator {
	switch {
	case players <= t.Yellow:
		return Low
	case players <= t.Green:
		return Medium
	default:
		return High
	}
}
