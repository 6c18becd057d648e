// Package dxf reads ASCII DXF drawings. A DXF file is a flat stream of
// (group code, value) pairs, one per line; group code 0 starts a new
// record. Only the sections and entity types needed for BOQ extraction
// are materialized, everything else is skipped.
package dxf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type tag struct {
	code  int
	value string
}

func (t tag) float() float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(t.value), 64)
	return f
}

func (t tag) int() int {
	n, _ := strconv.Atoi(strings.TrimSpace(t.value))
	return n
}

// isRecordStart reports whether the tag opens a new record (entity, table
// row, section marker).
func (t tag) isRecordStart() bool { return t.code == 0 }

// readTags consumes the whole stream into a tag slice. Drawings converted
// from DWG are a few megabytes of text at most, so buffering the pairs is
// cheaper than a pushback reader.
func readTags(r io.Reader) ([]tag, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var tags []tag
	line := 0
	for sc.Scan() {
		line++
		codeStr := strings.TrimSpace(sc.Text())
		if !sc.Scan() {
			return nil, fmt.Errorf("dxf: truncated pair at line %d", line)
		}
		line++
		code, err := strconv.Atoi(codeStr)
		if err != nil {
			return nil, fmt.Errorf("dxf: bad group code %q at line %d", codeStr, line-1)
		}
		// Values keep interior whitespace; only the trailing CR from
		// CRLF files is dropped.
		value := strings.TrimRight(sc.Text(), "\r")
		tags = append(tags, tag{code: code, value: value})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("dxf: read: %w", err)
	}
	return tags, nil
}

// cursor walks a tag slice with one-record lookahead.
type cursor struct {
	tags []tag
	pos  int
}

func (c *cursor) next() (tag, bool) {
	if c.pos >= len(c.tags) {
		return tag{}, false
	}
	t := c.tags[c.pos]
	c.pos++
	return t, true
}

func (c *cursor) peek() (tag, bool) {
	if c.pos >= len(c.tags) {
		return tag{}, false
	}
	return c.tags[c.pos], true
}

// record collects the tags of the current record: the leading 0-tag value
// plus every tag up to (not including) the next 0-tag.
func (c *cursor) record() (string, []tag, bool) {
	t, ok := c.next()
	if !ok {
		return "", nil, false
	}
	name := strings.TrimSpace(t.value)
	var body []tag
	for {
		p, ok := c.peek()
		if !ok || p.isRecordStart() {
			break
		}
		c.next()
		body = append(body, p)
	}
	return name, body, true
}

// skipToEndsec advances past the current section.
func (c *cursor) skipToEndsec() {
	for {
		name, _, ok := c.record()
		if !ok || name == "ENDSEC" {
			return
		}
	}
}
