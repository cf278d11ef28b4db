package channel

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Result is the opaque JSON result the worker reports for a command.
type Result = json.RawMessage

var (
	// MalformedPayloadResult is delivered for the in-flight command if
	// the worker sends a payload that is not valid JSON.
	MalformedPayloadResult = Result(`{"status":13,"value":"malformed payload from worker"}`)

	// FalseResult is delivered if the worker ends its turn without
	// reporting a result.
	FalseResult = Result(`false`)
)

// Event is the tag of an ingress document.
type Event string

const (
	// EventCommand reports the result of the in-flight command.
	EventCommand Event = "cmd"
)

// dispatchMessage is written to the worker to hand over a command.
type dispatchMessage struct {
	NextCommand string `json:"nextCommand"`
}

func encodeDispatch(command string) ([]byte, error) {
	return json.Marshal(dispatchMessage{NextCommand: command})
}

// ingress is a decoded document received from the worker.
type ingress struct {
	// Empty is set if the worker connected without sending anything.
	Empty bool

	// Malformed is set if the payload is not valid JSON.
	Malformed bool

	Event Event

	// Result is the raw result, nil if the document has none.
	Result Result
}

func decodeIngress(payload []byte) ingress {
	payload = bytes.TrimSpace(payload)

	if len(payload) == 0 {
		return ingress{Empty: true}
	}

	if !gjson.ValidBytes(payload) {
		return ingress{Malformed: true}
	}

	msg := ingress{
		Event: Event(gjson.GetBytes(payload, "event").String()),
	}

	if result := gjson.GetBytes(payload, "result"); result.Exists() {
		msg.Result = Result(result.Raw)
	}

	return msg
}
