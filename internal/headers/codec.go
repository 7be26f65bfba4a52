// Package headers implements the "info-" wire namespace that tunnels user
// headers through the callback channel (spec.md §4.1, §6).
package headers

import "strings"

const prefix = "info-"

// Encode returns a new map where every key gains the "info-" prefix.
// Used when delivering a retained message to a subscriber callback.
func Encode(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[prefix+k] = v
	}
	return out
}

// Decode returns a new map where every key with the "info-" prefix has it
// stripped. Keys without the prefix pass through unchanged. Used when
// accepting a publish from an HTTP client.
func Decode(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if strings.HasPrefix(k, prefix) {
			out[strings.TrimPrefix(k, prefix)] = v
		} else {
			out[k] = v
		}
	}
	return out
}
