package countdown

import (
	"fmt"
	"time"
)

// Direction tells which terminal label a finished countdown shows.
type Direction int

const (
	// Remaining counts down to the end of an auction.
	Remaining Direction = iota
	// UntilStart counts down to the start of an upcoming auction.
	UntilStart
)

const (
	LabelEnded   = "Завершён"
	LabelStarted = "Начался"
)

func (d Direction) String() string {
	if d == UntilStart {
		return "until_start"
	}
	return "remaining"
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "remaining":
		*d = Remaining
	case "until_start":
		*d = UntilStart
	default:
		return fmt.Errorf("unknown countdown direction %q", text)
	}
	return nil
}

// TerminalLabel is shown once the target instant has passed.
func (d Direction) TerminalLabel() string {
	if d == UntilStart {
		return LabelStarted
	}
	return LabelEnded
}

// Format renders the time left between reference and target as
// "{days}д. HH:MM:SS" or "HH:MM:SS", or the terminal label when target is not
// in the future.
func Format(target, reference time.Time, dir Direction) string {
	diff := target.Sub(reference)
	if diff <= 0 {
		return dir.TerminalLabel()
	}

	total := int64(diff / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if days > 0 {
		return fmt.Sprintf("%dд. %02d:%02d:%02d", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
