package oauth

import (
	"crypto/rand"
	"strconv"
	"time"
)

var timeNow = time.Now

const nonceCharacters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Noncer provides random nonce strings.
type Noncer interface {
	Nonce(length int) string
}

// Clock provides the current time. A Clock can be used in place of calling
// time.Now() directly.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to a Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// FixedClock returns a Clock frozen at the given Unix second.
func FixedClock(unix int64) Clock {
	t := time.Unix(unix, 0)
	return ClockFunc(func() time.Time { return t })
}

// AlphanumericNoncer draws [A-Za-z0-9] characters from crypto/rand.
type AlphanumericNoncer struct{}

// Nonce provides a random nonce string of the given length.
func (AlphanumericNoncer) Nonce(length int) string {
	if length <= 0 {
		return ""
	}
	out := make([]byte, 0, length)
	buf := make([]byte, length+length/4)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			// crypto/rand does not fail on supported platforms
			panic("oauth: reading random source: " + err.Error())
		}
		for _, b := range buf {
			// 248 = 4*62
			if b >= 248 {
				continue
			}
			out = append(out, nonceCharacters[int(b)%len(nonceCharacters)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out)
}

// StaticNoncer always returns the same nonce. Tests only.
type StaticNoncer string

// Nonce returns the static value.
func (n StaticNoncer) Nonce(int) string { return string(n) }

func timestamp(c Clock) string {
	return strconv.FormatInt(c.Now().Unix(), 10)
}
