// Package frame splits the accumulated text of a streaming response into
// complete delimiter-bounded frames. The server writes one JSON message per
// frame, so this is the only place which needs to agree byte-for-byte with
// the server's framing convention.
package frame

import "strings"

// Boundary is the marker the QueryWeaver server inserts between consecutive
// JSON messages in a streaming response body.
const Boundary = "|||FALKORDB_MESSAGE_BOUNDARY|||"

// Split extracts every complete frame from text. A frame is complete once the
// delimiter which terminates it has arrived. The returned remainder is the
// text after the last delimiter occurrence, or all of text if the delimiter
// doesn't occur, and should be prepended to the next Split call. Frames which
// are empty after trimming are dropped, the delimiter itself never reaches
// the caller.
func Split(text, delimiter string) ([]string, string) {
	if delimiter == "" || !strings.Contains(text, delimiter) {
		return nil, text
	}
	parts := strings.Split(text, delimiter)
	remainder := parts[len(parts)-1]
	frames := make([]string, 0, len(parts)-1)
	for _, part := range parts[:len(parts)-1] {
		if strings.TrimSpace(part) == "" {
			continue
		}
		frames = append(frames, part)
	}
	return frames, remainder
}
