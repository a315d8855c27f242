package bot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	DefaultHost = "glitch.me"

	fieldTime      = "t"
	fieldDelta     = "dt"
	fieldKeepAlive = "keepAlive"
)

// DefaultLegacyHosts are the project host's historical names, still accepted when reading.
var DefaultLegacyHosts = []string{"gomix.me", "hyperdev.space"}

// ErrUnknownPrefix is wrapped by DecodeError when a link does not start with any state prefix.
var ErrUnknownPrefix = errors.New("link is not a state token")

// ErrInvalidUTF8 is wrapped by DecodeError when percent-decoding yields bytes that are not UTF-8.
var ErrInvalidUTF8 = errors.New("state token is not valid UTF-8")

// DecodeError reports a state link that could not be turned back into a Snapshot.
type DecodeError struct {
	MessageID int64 // message that carried the link, 0 when unknown
	URL       string
	Err       error
}

func (e *DecodeError) Error() string {
	if e.MessageID != 0 {
		return fmt.Sprintf("decode state from message %d: %v", e.MessageID, e.Err)
	}
	return fmt.Sprintf("decode state %q: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Snapshot is one room's state. Fields holds the application's JSON object verbatim,
// minus the reserved t/dt keys which live in T and DT (epoch milliseconds).
type Snapshot struct {
	Fields map[string]json.RawMessage
	T      int64
	DT     int64

	// PreviousMessageID is the message that carried this snapshot. It is never encoded.
	PreviousMessageID int64
}

// KeepAlive reports whether the application asked for this room's snapshot to be refreshed.
func (s Snapshot) KeepAlive() bool {
	raw, ok := s.Fields[fieldKeepAlive]
	if !ok {
		return false
	}
	var v bool
	return json.Unmarshal(raw, &v) == nil && v
}

// Clone returns a copy whose Fields map can be modified independently.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Fields = make(map[string]json.RawMessage, len(s.Fields))
	for k, v := range s.Fields {
		out.Fields[k] = v
	}
	return out
}

// MarshalJSON writes Fields merged with t and dt, keys sorted.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	obj := make(map[string]json.RawMessage, len(s.Fields)+2)
	for k, v := range s.Fields {
		obj[k] = v
	}
	obj[fieldTime] = json.RawMessage(strconv.FormatInt(s.T, 10))
	obj[fieldDelta] = json.RawMessage(strconv.FormatInt(s.DT, 10))

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(obj); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON accepts any JSON object. Missing t/dt read as 0.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj == nil {
		return errors.New("state is not a JSON object")
	}
	t, err := millis(obj, fieldTime)
	if err != nil {
		return err
	}
	dt, err := millis(obj, fieldDelta)
	if err != nil {
		return err
	}
	delete(obj, fieldTime)
	delete(obj, fieldDelta)
	*s = Snapshot{Fields: obj, T: t, DT: dt}
	return nil
}

func millis(obj map[string]json.RawMessage, key string) (int64, error) {
	raw, ok := obj[key]
	if !ok || string(raw) == "null" {
		return 0, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("field %s: %w", key, err)
	}
	return int64(f), nil
}

// Codec turns snapshots into links under the project's host and back.
type Codec struct {
	prefixes []string // canonical first
}

// NewCodec builds the prefixes https://{project}.{host}/?_? for host and every legacy host.
// An empty host means DefaultHost.
func NewCodec(project, host string, legacyHosts ...string) *Codec {
	if host == "" {
		host = DefaultHost
	}
	c := &Codec{prefixes: []string{statePrefix(project, host)}}
	for _, h := range legacyHosts {
		h = strings.TrimSpace(h)
		if h == "" || h == host {
			continue
		}
		c.prefixes = append(c.prefixes, statePrefix(project, h))
	}
	return c
}

func statePrefix(project, host string) string {
	return "https://" + project + "." + host + "/?_?"
}

// Prefix is the canonical prefix used when encoding.
func (c *Codec) Prefix() string { return c.prefixes[0] }

// Prefixes lists every prefix accepted when decoding, canonical first.
func (c *Codec) Prefixes() []string {
	out := make([]string, len(c.prefixes))
	copy(out, c.prefixes)
	return out
}

// Encode returns the state link for s.
func (c *Codec) Encode(s Snapshot) (string, error) {
	raw, err := s.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}
	return c.Prefix() + escapeComponent(string(raw)), nil
}

// Decode parses a state link. The first prefix the link starts with is used.
// All failures are *DecodeError.
func (c *Codec) Decode(link string) (Snapshot, error) {
	rest, ok := c.trimPrefix(link)
	if !ok {
		return Snapshot{}, &DecodeError{URL: link, Err: ErrUnknownPrefix}
	}
	text, err := url.PathUnescape(rest)
	if err != nil {
		return Snapshot{}, &DecodeError{URL: link, Err: err}
	}
	if !utf8.ValidString(text) {
		return Snapshot{}, &DecodeError{URL: link, Err: ErrInvalidUTF8}
	}
	var s Snapshot
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return Snapshot{}, &DecodeError{URL: link, Err: err}
	}
	return s, nil
}

// Recognized reports whether link starts with any accepted prefix.
func (c *Codec) Recognized(link string) bool {
	_, ok := c.trimPrefix(link)
	return ok
}

func (c *Codec) trimPrefix(link string) (string, bool) {
	for _, p := range c.prefixes {
		if strings.HasPrefix(link, p) {
			return link[len(p):], true
		}
	}
	return "", false
}

// MessageBody formats the chat message carrying token, replying to previousID when it is known.
func MessageBody(previousID int64, token string) string {
	if previousID != 0 {
		return ":" + strconv.FormatInt(previousID, 10) + " !" + token
	}
	return "!" + token
}

// escapeComponent percent-encodes every byte except A-Z a-z 0-9 and -_.!~*'().
func escapeComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreservedComponent(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func unreservedComponent(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
