package pipeline

import "encoding/json"

// marshalEvent serializes an event once so broadcasters can fan the same
// bytes out to every client.
func marshalEvent(event any) ([]byte, error) {
	return json.Marshal(event)
}
