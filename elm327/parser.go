package elm327

import (
	"strings"

	"github.com/jd3nn1s/obdlink/telemetry"
	log "github.com/sirupsen/logrus"
)

// Outcome says what Decode did with a response.
type Outcome int

const (
	// Pending is returned by Feed while a response is still being assembled.
	Pending Outcome = iota
	Decoded
	NoData
	NotResponse
	TooShort
	UnknownPID
	BadHex
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Decoded:
		return "decoded"
	case NoData:
		return "no_data"
	case NotResponse:
		return "not_response"
	case TooShort:
		return "too_short"
	case UnknownPID:
		return "unknown_pid"
	case BadHex:
		return "bad_hex"
	}
	return "unknown"
}

const (
	responsePrefix = "41"
	minResponseLen = 6

	// longer lines are never valid single frame Mode 01 responses
	maxBufferLen = 64
)

// Parser assembles ELM327 output into responses and applies each Mode 01
// response to its working record. A Parser belongs to a single goroutine.
type Parser struct {
	// Strict rejects responses whose PID or data bytes contain non-hex
	// characters instead of reading them as zero.
	Strict bool

	// OnDecode, when set, is called after each field write with a copy of
	// the record.
	OnDecode func(pid PID, r telemetry.Record)

	record telemetry.Record
	buf    []byte
}

func NewParser() *Parser {
	return &Parser{
		buf: make([]byte, 0, maxBufferLen),
	}
}

func isTerminator(c byte) bool {
	return c == '\r' || c == '\n' || c == '>'
}

// Feed consumes one character from the adapter. When c ends a non-empty
// response the response is decoded and done is true.
func (p *Parser) Feed(c byte) (outcome Outcome, done bool) {
	if !isTerminator(c) {
		if len(p.buf) < maxBufferLen {
			p.buf = append(p.buf, c)
		}
		return Pending, false
	}
	if len(p.buf) == 0 {
		return Pending, false
	}
	response := string(p.buf)
	p.buf = p.buf[:0]
	return p.Decode(response), true
}

// Decode applies a single response to the record. Anything other than a
// known Mode 01 response leaves the record as it was.
func (p *Parser) Decode(response string) Outcome {
	trimmed := strings.TrimSpace(response)
	if trimmed == "NO DATA" || trimmed == "NODATA" {
		return NoData
	}
	compact := compactBytes(trimmed)

	if !strings.HasPrefix(compact, responsePrefix) {
		return NotResponse
	}
	if len(compact) < minResponseLen {
		return TooShort
	}

	code := compact[2:4]
	data := compact[4:]
	if p.Strict && !(isHex(code) && isHex(data)) {
		log.WithField("response", trimmed).Debug("rejecting response with non-hex characters")
		return BadHex
	}

	a, b := 0, 0
	if len(data) >= 2 {
		a = hexByte(data[0:2])
	}
	if len(data) >= 4 {
		b = hexByte(data[2:4])
	}

	pid, ok := Lookup(code)
	if !ok {
		return UnknownPID
	}
	v := pid.Apply(&p.record, a, b)
	log.WithField("pid", pid.Code).
		WithField(pid.Name, v).
		Debug("decoded response")

	if p.OnDecode != nil {
		p.OnDecode(pid, p.record)
	}
	return Decoded
}

// compactBytes drops the spaces an adapter with ATS1 puts between bytes.
// A space inside a byte leaves the response as it was, so it is rejected.
func compactBytes(s string) string {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return s
	}
	for _, f := range fields[:len(fields)-1] {
		if len(f)%2 != 0 {
			return s
		}
	}
	return strings.Join(fields, "")
}

// Record returns a copy of the working record.
func (p *Parser) Record() telemetry.Record {
	return p.record
}

// Seed replaces the working record, e.g. to carry values over a reconnect.
func (p *Parser) Seed(r telemetry.Record) {
	p.record = r
}

// Buffer returns the characters of the response still being assembled.
func (p *Parser) Buffer() string {
	return string(p.buf)
}

// Reset drops any partially assembled response, e.g. after the adapter was
// reset mid-line. The record is kept.
func (p *Parser) Reset() {
	p.buf = p.buf[:0]
}
