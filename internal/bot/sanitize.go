package bot

import "github.com/alessio/shellescape"

// Sanitize returns payload as a single POSIX shell literal that evaluates
// back to exactly payload. With bypass the payload is returned unchanged.
func Sanitize(payload string, bypass bool) string {
	if bypass {
		return payload
	}
	return shellescape.Quote(payload)
}
