package step

import "strings"

// maskReplacement is what a masked value is replaced with.
const maskReplacement = "***"

// maxLookback bounds how much of a line the masker buffers waiting for a
// boundary, so a pathological stream (no newlines, ever) can't grow memory
// without bound; it must be at least as large as the longest secret.
const maxLookback = 64 * 1024

// Masker redacts registered secret values from step output, line by line,
// so a match split across two stream reads by the child process still gets
// caught instead of leaking half of it.
type Masker struct {
	values []string
	buf    strings.Builder
}

// NewMasker builds a Masker with no secrets registered yet.
func NewMasker() *Masker { return &Masker{} }

// Add registers a value to redact from here on. Empty values are ignored,
// since masking "" would redact every byte boundary.
func (m *Masker) Add(value string) {
	if value == "" {
		return
	}
	for _, v := range m.values {
		if v == value {
			return
		}
	}
	m.values = append(m.values, value)
}

// Write feeds a chunk of raw output through the masker, returning any
// complete (newline-terminated) masked lines ready to emit. Incomplete
// trailing data is buffered until the next Write or Flush.
func (m *Masker) Write(chunk []byte) []string {
	m.buf.Write(chunk)
	pending := m.buf.String()

	var lines []string
	for {
		idx := strings.IndexByte(pending, '\n')
		if idx < 0 {
			break
		}
		lines = append(lines, m.redact(pending[:idx+1]))
		pending = pending[idx+1:]
	}

	m.buf.Reset()
	if len(pending) > maxLookback {
		// No boundary within the lookback window: emit it anyway so a
		// single enormous unterminated line doesn't stall output forever.
		lines = append(lines, m.redact(pending))
		pending = ""
	}
	m.buf.WriteString(pending)
	return lines
}

// Flush returns the masked remainder of any buffered partial line, for use
// when the underlying stream has closed.
func (m *Masker) Flush() string {
	rest := m.buf.String()
	m.buf.Reset()
	if rest == "" {
		return ""
	}
	return m.redact(rest)
}

func (m *Masker) redact(line string) string {
	for _, v := range m.values {
		line = strings.ReplaceAll(line, v, maskReplacement)
	}
	return line
}
