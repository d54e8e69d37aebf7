package protocol

import (
	"encoding/json"
	"strings"
)

// ValueUnknown is the placeholder reported when the device did not supply a value.
const ValueUnknown = "--"

// Kind identifies the shape of a received line.
type Kind int

const (
	// KindUnrecognized marks a line that carried no reading; it is logged and
	// otherwise ignored.
	KindUnrecognized Kind = iota
	// KindGreeting marks a liveness/handshake line containing HELLO.
	KindGreeting
	// KindReading marks a line that produced a temperature/humidity pair.
	KindReading
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindGreeting:
		return "greeting"
	case KindReading:
		return "reading"
	default:
		return "unrecognized"
	}
}

// Message is the result of classifying one device line.
// Temperature and Humidity are only meaningful when Kind is KindReading.
// Values stay textual; whatever precision and format the device sent is
// passed through unconverted.
type Message struct {
	Kind        Kind
	Temperature string
	Humidity    string
}

// Parse classifies a single line (already stripped of line terminators).
// Matchers are tried in priority order: colon-delimited reading, JSON-like
// reading, greeting, opaque diagnostic. Parse never fails; a line that fits
// no reading shape comes back as KindUnrecognized.
func Parse(line string) Message {
	if strings.Contains(line, "TEMP:") && strings.Contains(line, "HUM:") {
		return parseColon(line)
	}

	if strings.Contains(line, "{") && strings.Contains(line, "}") {
		return parseJSON(line)
	}

	if strings.Contains(line, "HELLO") {
		return Message{Kind: KindGreeting}
	}

	return Message{Kind: KindUnrecognized}
}

// parseColon handles the TEMP:<value>:HUM:<value> format. The temperature and
// humidity occupy fields 1 and 3 of the colon split; lines with fewer than
// four fields carry no reading.
func parseColon(line string) Message {
	fields := strings.Split(line, ":")
	if len(fields) < 4 {
		return Message{Kind: KindUnrecognized}
	}

	return Message{
		Kind:        KindReading,
		Temperature: fields[1],
		Humidity:    fields[3],
	}
}

// parseJSON handles the structured object format. Both the short and long key
// names are accepted; a missing key yields ValueUnknown for that field. A
// structural decode failure is recoverable and reported as unrecognized.
func parseJSON(line string) Message {
	dec := json.NewDecoder(strings.NewReader(line))
	dec.UseNumber() // keep numbers textual so 21.10 stays "21.10"

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return Message{Kind: KindUnrecognized}
	}

	return Message{
		Kind:        KindReading,
		Temperature: lookupValue(obj, "temp", "temperature"),
		Humidity:    lookupValue(obj, "hum", "humidity"),
	}
}

// lookupValue returns the first present key rendered as text, or ValueUnknown.
func lookupValue(obj map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		value, ok := obj[key]
		if !ok {
			continue
		}

		switch v := value.(type) {
		case json.Number:
			return v.String()
		case string:
			return v
		case bool:
			if v {
				return "true"
			}
			return "false"
		case nil:
			return ValueUnknown
		default:
			// Arrays and nested objects have no sensible textual form.
			return ValueUnknown
		}
	}

	return ValueUnknown
}
