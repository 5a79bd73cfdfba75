package wire

import (
	"encoding/json"
	"fmt"

	"github.com/joeycumines/go-utilpkg/jsonenc"
)

// jsonAny is the JSON-facing mirror of Any: the HTTP fallback is meant for
// "trivial tooling" per its contract, so payloads are JSON objects keyed by
// kind name rather than this package's internal integer discriminant.
type jsonAny struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

var kindNames = map[PayloadKind]string{
	PayloadKindRunCommandAck:  "RunCommandAck",
	PayloadKindPollResults:    "PollResults",
	PayloadKindTextResponse:   "TextResponse",
	PayloadKindCommandResult:  "CommandResult",
	PayloadKindStoreValue:     "StoreValue",
	PayloadKindGetValue:       "GetValue",
	PayloadKindInstallHook:    "InstallHook",
	PayloadKindAddCallback:    "AddCallback",
	PayloadKindRemoveCallback: "RemoveCallback",
	PayloadKindUninstallHook:  "UninstallHook",
	PayloadKindUnitOrder:      "UnitOrder",
	PayloadKindProduceUnit:    "ProduceUnit",
	PayloadKindSetTurnRate:    "SetTurnRate",
	PayloadKindGetSystemState: "GetSystemState",
	PayloadKindPollRequest:    "PollRequest",
}

var kindByName = func() map[string]PayloadKind {
	m := make(map[string]PayloadKind, len(kindNames))
	for k, v := range kindNames {
		m[v] = k
	}
	return m
}()

// jsonPayload returns the concrete struct kind decodes to, for round-trip
// via encoding/json (the JSON fallback is explicitly a convenience surface,
// not the wire-compatible binary path, so paying for reflection here is
// acceptable).
func jsonPayload(kind PayloadKind) (any, error) {
	switch kind {
	case PayloadKindRunCommandAck:
		return &RunCommandAck{}, nil
	case PayloadKindPollResults:
		return &PollResults{}, nil
	case PayloadKindTextResponse:
		return &TextResponse{}, nil
	case PayloadKindCommandResult:
		return &CommandResult{}, nil
	case PayloadKindStoreValue:
		return &StoreValue{}, nil
	case PayloadKindGetValue:
		return &GetValue{}, nil
	case PayloadKindInstallHook:
		return &InstallHook{}, nil
	case PayloadKindAddCallback:
		return &AddCallback{}, nil
	case PayloadKindRemoveCallback:
		return &RemoveCallback{}, nil
	case PayloadKindUninstallHook:
		return &UninstallHook{}, nil
	case PayloadKindUnitOrder:
		return &UnitOrder{}, nil
	case PayloadKindProduceUnit:
		return &ProduceUnit{}, nil
	case PayloadKindSetTurnRate:
		return &SetTurnRate{}, nil
	case PayloadKindGetSystemState:
		return &GetSystemState{}, nil
	case PayloadKindPollRequest:
		return &PollRequest{}, nil
	default:
		return nil, fmt.Errorf("wire: json: unknown payload kind %d", kind)
	}
}

type jsonCommand struct {
	CommandType string  `json:"command_type"`
	Command     jsonAny `json:"command"`
	Blocking    bool    `json:"blocking"`
}

type jsonResponse struct {
	Code string  `json:"code"`
	Body jsonAny `json:"body"`
}

var commandTypeNames = map[CommandType]string{
	CommandTypeClientCommand: "CLIENT_COMMAND",
	CommandTypePoll:          "POLL",
	CommandTypeShutdown:      "SHUTDOWN",
}

var commandTypeByName = func() map[string]CommandType {
	m := make(map[string]CommandType, len(commandTypeNames))
	for k, v := range commandTypeNames {
		m[v] = k
	}
	return m
}()

var responseCodeNames = map[ResponseCode]string{
	ResponseCodeOK:    "OK",
	ResponseCodeError: "ERROR",
}

var responseCodeByName = func() map[string]ResponseCode {
	m := make(map[string]ResponseCode, len(responseCodeNames))
	for k, v := range responseCodeNames {
		m[v] = k
	}
	return m
}()

// CommandToJSON renders c as the HTTP fallback's JSON body.
func CommandToJSON(c Command) ([]byte, error) {
	payload, err := jsonPayload(c.Command.Kind)
	if err != nil {
		// PayloadKindUnspecified is valid for an empty Command.Command.
		if c.Command.Kind != PayloadKindUnspecified {
			return nil, err
		}
	} else if err := unmarshalAnyInto(c.Command, payload); err != nil {
		return nil, err
	}

	var rawValue json.RawMessage
	if payload != nil {
		rawValue, err = marshalJSONValue(payload)
		if err != nil {
			return nil, err
		}
	}

	jc := jsonCommand{
		CommandType: commandTypeNames[c.CommandType],
		Command:     jsonAny{Kind: kindNames[c.Command.Kind], Value: rawValue},
		Blocking:    c.Blocking,
	}
	return json.Marshal(jc)
}

// CommandFromJSON parses an HTTP fallback request body into a Command.
func CommandFromJSON(data []byte) (Command, error) {
	var jc jsonCommand
	if err := json.Unmarshal(data, &jc); err != nil {
		return Command{}, fmt.Errorf("wire: json: decode command: %w", err)
	}

	c := Command{
		CommandType: commandTypeByName[jc.CommandType],
		Blocking:    jc.Blocking,
	}
	if jc.Command.Kind == "" {
		return c, nil
	}
	kind, ok := kindByName[jc.Command.Kind]
	if !ok {
		return Command{}, fmt.Errorf("wire: json: unknown command kind %q", jc.Command.Kind)
	}
	payload, err := jsonPayload(kind)
	if err != nil {
		return Command{}, err
	}
	if len(jc.Command.Value) != 0 {
		if err := json.Unmarshal(jc.Command.Value, payload); err != nil {
			return Command{}, fmt.Errorf("wire: json: decode command payload: %w", err)
		}
	}
	m, ok := payload.(Message)
	if !ok {
		return Command{}, fmt.Errorf("wire: json: payload kind %q is not a Message", jc.Command.Kind)
	}
	c.Command = Pack(kind, m)
	return c, nil
}

// ResponseToJSON renders r as the HTTP fallback's JSON response body.
func ResponseToJSON(r Response) ([]byte, error) {
	var payload any
	var err error
	if r.Body.Kind != PayloadKindUnspecified {
		payload, err = jsonPayload(r.Body.Kind)
		if err != nil {
			return nil, err
		}
		if err := unmarshalAnyInto(r.Body, payload); err != nil {
			return nil, err
		}
	}

	var rawValue json.RawMessage
	if payload != nil {
		rawValue, err = marshalJSONValue(payload)
		if err != nil {
			return nil, err
		}
	}

	jr := jsonResponse{
		Code: responseCodeNames[r.Code],
		Body: jsonAny{Kind: kindNames[r.Body.Kind], Value: rawValue},
	}
	return json.Marshal(jr)
}

// ResponseFromJSON parses a JSON response body back into a Response.
func ResponseFromJSON(data []byte) (Response, error) {
	var jr jsonResponse
	if err := json.Unmarshal(data, &jr); err != nil {
		return Response{}, fmt.Errorf("wire: json: decode response: %w", err)
	}
	r := Response{Code: responseCodeByName[jr.Code]}
	if jr.Body.Kind == "" {
		return r, nil
	}
	kind, ok := kindByName[jr.Body.Kind]
	if !ok {
		return Response{}, fmt.Errorf("wire: json: unknown response kind %q", jr.Body.Kind)
	}
	payload, err := jsonPayload(kind)
	if err != nil {
		return Response{}, err
	}
	if len(jr.Body.Value) != 0 {
		if err := json.Unmarshal(jr.Body.Value, payload); err != nil {
			return Response{}, fmt.Errorf("wire: json: decode response payload: %w", err)
		}
	}
	m, ok := payload.(Message)
	if !ok {
		return Response{}, fmt.Errorf("wire: json: payload kind %q is not a Message", jr.Body.Kind)
	}
	r.Body = Pack(kind, m)
	return r, nil
}

func unmarshalAnyInto(a Any, payload any) error {
	if payload == nil {
		return nil
	}
	m, ok := payload.(Message)
	if !ok {
		return fmt.Errorf("wire: json: payload kind %d is not a Message", a.Kind)
	}
	if len(a.Value) == 0 {
		return nil
	}
	return m.Unmarshal(a.Value)
}

func marshalJSONValue(payload any) (json.RawMessage, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("wire: json: marshal payload: %w", err)
	}
	return b, nil
}

// EscapeString renders s as a quoted, protobuf/protojson-compatible JSON
// string. The HTTP fallback does not call it: its bodies come from
// ResponseToJSON, or from a fixed literal when encoding fails.
func EscapeString(s string) string {
	return string(jsonenc.AppendString(nil, s))
}
