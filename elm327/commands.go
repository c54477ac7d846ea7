package elm327

import (
	"time"
)

// InitStep is an AT command sent when the adapter is opened, followed by
// a pause so the adapter can settle before the next command.
type InitStep struct {
	Command string
	Delay   time.Duration
}

// InitSequence resets the adapter, then turns off echo, linefeeds and
// spaces so responses arrive as bare hex.
var InitSequence = []InitStep{
	{Command: "ATZ", Delay: 2 * time.Second},
	{Command: "ATE0", Delay: 500 * time.Millisecond},
	{Command: "ATL0", Delay: 500 * time.Millisecond},
	{Command: "ATS0", Delay: 500 * time.Millisecond},
}

// Command is the Mode 01 request for a PID code.
func Command(code string) string {
	return "01" + code
}
