package speech

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ExtractRemoteSDP pulls the remote WebRTC connection description out of the
// turn-start negotiation message. The exact key has changed between service
// versions, so the known keys are tried first and the message is then scanned
// structurally for anything resembling a connection description. The scan is
// a version-compatibility shim; revisit it when the service contract settles.
func ExtractRemoteSDP(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", errors.New("speech: empty turn start message")
	}

	var msg map[string]any
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return "", errors.New("speech: turn start message is not valid JSON")
	}

	for _, key := range []string{"webrtc", "WebRtc"} {
		if v, ok := nestedString(msg, key, "connectionString"); ok {
			return v, nil
		}
	}

	if v, ok := scanForConnectionString([]byte(raw)); ok {
		return v, nil
	}
	return "", errors.New("speech: no connection description in turn start message")
}

func nestedString(msg map[string]any, outer, inner string) (string, bool) {
	o, ok := msg[outer].(map[string]any)
	if !ok {
		return "", false
	}
	v, ok := o[inner].(string)
	return v, ok && v != ""
}

// scanForConnectionString walks the document in order and returns the first
// non-empty string whose key looks connection-related.
func scanForConnectionString(data []byte) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	v, found, err := walkValue(dec, false)
	if err != nil {
		return "", false
	}
	return v, found
}

func walkValue(dec *json.Decoder, candidate bool) (string, bool, error) {
	t, err := dec.Token()
	if err != nil {
		return "", false, err
	}
	switch v := t.(type) {
	case json.Delim:
		if v == '{' {
			return walkObject(dec)
		}
		if v == '[' {
			for dec.More() {
				s, found, err := walkValue(dec, false)
				if err != nil || found {
					return s, found, err
				}
			}
			_, err := dec.Token() // closing ']'
			return "", false, err
		}
	case string:
		if candidate && strings.TrimSpace(v) != "" {
			return v, true, nil
		}
	}
	return "", false, nil
}

func walkObject(dec *json.Decoder) (string, bool, error) {
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return "", false, err
		}
		key, _ := kt.(string)
		s, found, err := walkValue(dec, connectionKey(key))
		if err != nil || found {
			return s, found, err
		}
	}
	_, err := dec.Token() // closing '}'
	return "", false, err
}

func connectionKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "connect") || strings.Contains(k, "sdp") || strings.Contains(k, "string")
}
