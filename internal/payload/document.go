// Package payload renders engine results as JSON and copies them into
// fixed-capacity, NUL-terminated output buffers.
//
// Payloads are assembled in memory first. Truncation happens only when the
// rendered document is copied into the caller's buffer, and it always drops
// whole items so the truncated payload stays valid JSON.
package payload

import "unicode/utf8"

// MinBufferSize is the smallest output buffer an engine call writes a full
// result into.
const MinBufferSize = 100

// Document is a JSON value split at the boundaries it may be truncated on:
// a fixed head, a list of comma separated items and a fixed tail.
type Document struct {
	Head  string
	Items []string
	Tail  string
}

// Len returns the length of the complete rendering.
func (d Document) Len() int {
	n := len(d.Head) + len(d.Tail)
	for i, item := range d.Items {
		if i > 0 {
			n++
		}
		n += len(item)
	}
	return n
}

// Render returns the longest rendering of at most limit bytes that keeps
// whole items and the tail. When not even the head and tail fit, the head
// and tail are cut at limit. The boolean reports whether anything was left
// out.
func (d Document) Render(limit int) (string, bool) {
	if limit < 0 {
		limit = 0
	}
	used := len(d.Head) + len(d.Tail)
	if used > limit {
		return cut(d.Head+d.Tail, limit), true
	}

	keep := 0
	for i, item := range d.Items {
		next := len(item)
		if i > 0 {
			next++
		}
		if used+next > limit {
			break
		}
		used += next
		keep++
	}

	buf := make([]byte, 0, used)
	buf = append(buf, d.Head...)
	for i := 0; i < keep; i++ {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, d.Items[i]...)
	}
	buf = append(buf, d.Tail...)
	return string(buf), keep < len(d.Items)
}

// WriteTo copies the rendering of d into dst followed by a NUL byte. It never
// writes past len(dst). It returns the number of payload bytes written, not
// counting the terminator, and whether the payload was truncated.
func WriteTo(dst []byte, d Document) (int, bool) {
	if len(dst) == 0 {
		return 0, d.Len() > 0
	}
	s, truncated := d.Render(len(dst) - 1)
	n := copy(dst, s)
	dst[n] = 0
	return n, truncated
}

// String returns the complete rendering.
func (d Document) String() string {
	s, _ := d.Render(d.Len())
	return s
}

// cut shortens s to at most limit bytes without splitting a UTF-8 sequence.
func cut(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
