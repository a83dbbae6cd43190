package transport

import (
	"encoding/json"
	"io"

	"github.com/senutpal/council/internal/paxos"
)

// The wire format is one JSON document per connection. The sender closes
// the connection after writing, so the frame needs no length prefix, and
// transcripts stay readable in a packet capture.

func writeMessage(w io.Writer, msg paxos.Message) error {
	return json.NewEncoder(w).Encode(msg)
}

func readMessage(r io.Reader) (paxos.Message, error) {
	var msg paxos.Message
	err := json.NewDecoder(r).Decode(&msg)
	return msg, err
}
