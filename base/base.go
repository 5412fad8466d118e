package base

import (
	"encoding/hex"
	"fmt"
)

// LogHex formats binary content for debug logs, long content is cut.
func LogHex(title string, data []byte) string {
	const maxlog = 512
	if len(data) > maxlog {
		return fmt.Sprintf("%s (%d bytes): %s...", title, len(data), hex.EncodeToString(data[:maxlog]))
	}
	return fmt.Sprintf("%s (%d bytes): %s", title, len(data), hex.EncodeToString(data))
}
