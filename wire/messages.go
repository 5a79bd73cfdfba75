package wire

import "google.golang.org/protobuf/encoding/protowire"

// CommandType enumerates the outer Command.command_type values.
type CommandType int32

const (
	CommandTypeUnspecified CommandType = 0
	CommandTypeClientCommand CommandType = 1
	CommandTypePoll          CommandType = 2
	CommandTypeShutdown      CommandType = 3
)

// ResponseCode enumerates Response.code values.
type ResponseCode int32

const (
	ResponseCodeUnspecified ResponseCode = 0
	ResponseCodeOK          ResponseCode = 1
	ResponseCodeError       ResponseCode = 2
)

// ResultCode enumerates CommandResult.result_code values.
type ResultCode int32

const (
	ResultCodeNone  ResultCode = 0
	ResultCodeOK    ResultCode = 1
	ResultCodeError ResultCode = 2
)

// PayloadKind tags the type carried by a Command's packed "command" field
// or a Response's packed "body" field, taking the place of protobuf's
// google.protobuf.Any (which this hand-written codec does not implement)
// by prefixing the packed bytes with a small integer discriminant.
type PayloadKind int32

const (
	PayloadKindUnspecified PayloadKind = iota
	PayloadKindRunCommandAck
	PayloadKindPollResults
	PayloadKindTextResponse
	PayloadKindCommandResult
	PayloadKindStoreValue
	PayloadKindGetValue
	PayloadKindInstallHook
	PayloadKindAddCallback
	PayloadKindRemoveCallback
	PayloadKindUninstallHook
	PayloadKindUnitOrder
	PayloadKindProduceUnit
	PayloadKindSetTurnRate
	PayloadKindGetSystemState
	PayloadKindPollRequest
)

// Any is this codec's stand-in for google.protobuf.Any: a kind discriminant
// plus the kind's own Marshal output.
type Any struct {
	Kind  PayloadKind
	Value []byte
}

func (a Any) Marshal() []byte {
	var b []byte
	b = appendInt64Field(b, 1, int64(a.Kind))
	b = appendBytesField(b, 2, a.Value)
	return b
}

func (a *Any) Unmarshal(b []byte) error {
	*a = Any{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			a.Kind = PayloadKind(v)
			return n, nil
		case 2:
			v, n, err := consumeBytesValue(b)
			if err != nil {
				return 0, err
			}
			a.Value = append([]byte(nil), v...)
			return n, nil
		default:
			return skipValue(typ, b)
		}
	})
}

// Pack wraps m's marshaled bytes as an Any tagged with kind.
func Pack(kind PayloadKind, m Marshaler) Any {
	var value []byte
	if m != nil {
		value = m.Marshal()
	}
	return Any{Kind: kind, Value: value}
}

// Command is the outer envelope sent on the command connection.
type Command struct {
	CommandType CommandType
	Command     Any
	Blocking    bool
}

func (c Command) Marshal() []byte {
	var b []byte
	b = appendInt64Field(b, 1, int64(c.CommandType))
	b = appendMessageField(b, 2, c.Command)
	b = appendBoolField(b, 3, c.Blocking)
	return b
}

func (c *Command) Unmarshal(b []byte) error {
	*c = Command{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			c.CommandType = CommandType(v)
			return n, nil
		case 2:
			v, n, err := consumeBytesValue(b)
			if err != nil {
				return 0, err
			}
			if err := c.Command.Unmarshal(v); err != nil {
				return 0, err
			}
			return n, nil
		case 3:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			c.Blocking = v != 0
			return n, nil
		default:
			return skipValue(typ, b)
		}
	})
}

// Response is the outer envelope returned for any request.
type Response struct {
	Code ResponseCode
	Body Any
}

func (r Response) Marshal() []byte {
	var b []byte
	b = appendInt64Field(b, 1, int64(r.Code))
	b = appendMessageField(b, 2, r.Body)
	return b
}

func (r *Response) Unmarshal(b []byte) error {
	*r = Response{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			r.Code = ResponseCode(v)
			return n, nil
		case 2:
			v, n, err := consumeBytesValue(b)
			if err != nil {
				return 0, err
			}
			if err := r.Body.Unmarshal(v); err != nil {
				return 0, err
			}
			return n, nil
		default:
			return skipValue(typ, b)
		}
	})
}

// RunCommandAck acknowledges a CLIENT_COMMAND submission.
type RunCommandAck struct {
	QueueID uint64
	TaskID  uint64
}

func (m RunCommandAck) Marshal() []byte {
	var b []byte
	b = appendUint64Field(b, 1, m.QueueID)
	b = appendUint64Field(b, 2, m.TaskID)
	return b
}

func (m *RunCommandAck) Unmarshal(b []byte) error {
	*m = RunCommandAck{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			m.QueueID = v
			return n, nil
		case 2:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			m.TaskID = v
			return n, nil
		default:
			return skipValue(typ, b)
		}
	})
}

// CommandResult is a single completed command's outcome.
type CommandResult struct {
	CommandID    uint64
	Result       Any
	ResultCode   ResultCode
	ErrorMessage string
}

func (m CommandResult) Marshal() []byte {
	var b []byte
	b = appendUint64Field(b, 1, m.CommandID)
	b = appendMessageField(b, 2, m.Result)
	b = appendInt64Field(b, 3, int64(m.ResultCode))
	b = appendStringField(b, 4, m.ErrorMessage)
	return b
}

func (m *CommandResult) Unmarshal(b []byte) error {
	*m = CommandResult{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			m.CommandID = v
			return n, nil
		case 2:
			v, n, err := consumeBytesValue(b)
			if err != nil {
				return 0, err
			}
			if err := m.Result.Unmarshal(v); err != nil {
				return 0, err
			}
			return n, nil
		case 3:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			m.ResultCode = ResultCode(v)
			return n, nil
		case 4:
			v, n, err := consumeStringValue(b)
			if err != nil {
				return 0, err
			}
			m.ErrorMessage = v
			return n, nil
		default:
			return skipValue(typ, b)
		}
	})
}

// PollResults wraps repeated CommandResult for a flush_results response.
type PollResults struct {
	Results []CommandResult
}

func (m PollResults) Marshal() []byte {
	var b []byte
	for _, r := range m.Results {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, r.Marshal())
	}
	return b
}

func (m *PollResults) Unmarshal(b []byte) error {
	*m = PollResults{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeBytesValue(b)
			if err != nil {
				return 0, err
			}
			var r CommandResult
			if err := r.Unmarshal(v); err != nil {
				return 0, err
			}
			m.Results = append(m.Results, r)
			return n, nil
		default:
			return skipValue(typ, b)
		}
	})
}

// TextResponse is a bare human-readable message, used for simple acks
// (e.g. shutdown) that carry no structured payload.
type TextResponse struct {
	Message string
}

func (m TextResponse) Marshal() []byte {
	return appendStringField(nil, 1, m.Message)
}

func (m *TextResponse) Unmarshal(b []byte) error {
	*m = TextResponse{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeStringValue(b)
			if err != nil {
				return 0, err
			}
			m.Message = v
			return n, nil
		default:
			return skipValue(typ, b)
		}
	})
}

// StoreValue stores value under key and, on success, echoes it back.
type StoreValue struct {
	Key    string
	Value  string
	Result string
}

func (m StoreValue) Marshal() []byte {
	var b []byte
	b = appendStringField(b, 1, m.Key)
	b = appendStringField(b, 2, m.Value)
	b = appendStringField(b, 3, m.Result)
	return b
}

func (m *StoreValue) Unmarshal(b []byte) error {
	*m = StoreValue{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeStringValue(b)
			if err != nil {
				return 0, err
			}
			m.Key = v
			return n, nil
		case 2:
			v, n, err := consumeStringValue(b)
			if err != nil {
				return 0, err
			}
			m.Value = v
			return n, nil
		case 3:
			v, n, err := consumeStringValue(b)
			if err != nil {
				return 0, err
			}
			m.Result = v
			return n, nil
		default:
			return skipValue(typ, b)
		}
	})
}

// GetValue retrieves the value stored under key.
type GetValue struct {
	Key   string
	Value string
}

func (m GetValue) Marshal() []byte {
	var b []byte
	b = appendStringField(b, 1, m.Key)
	b = appendStringField(b, 2, m.Value)
	return b
}

func (m *GetValue) Unmarshal(b []byte) error {
	*m = GetValue{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeStringValue(b)
			if err != nil {
				return 0, err
			}
			m.Key = v
			return n, nil
		case 2:
			v, n, err := consumeStringValue(b)
			if err != nil {
				return 0, err
			}
			m.Value = v
			return n, nil
		default:
			return skipValue(typ, b)
		}
	})
}

// InstallHook installs a trampoline at Address.
type InstallHook struct {
	Name         string
	Address      uint64
	PrefixLength uint32
}

func (m InstallHook) Marshal() []byte {
	var b []byte
	b = appendStringField(b, 1, m.Name)
	b = appendUint64Field(b, 2, m.Address)
	b = appendUint64Field(b, 3, uint64(m.PrefixLength))
	return b
}

func (m *InstallHook) Unmarshal(b []byte) error {
	*m = InstallHook{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeStringValue(b)
			if err != nil {
				return 0, err
			}
			m.Name = v
			return n, nil
		case 2:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			m.Address = v
			return n, nil
		case 3:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			m.PrefixLength = uint32(v)
			return n, nil
		default:
			return skipValue(typ, b)
		}
	})
}

// UninstallHook removes a previously installed hook.
type UninstallHook struct {
	Address uint64
}

func (m UninstallHook) Marshal() []byte {
	return appendUint64Field(nil, 1, m.Address)
}

func (m *UninstallHook) Unmarshal(b []byte) error {
	*m = UninstallHook{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			m.Address = v
			return n, nil
		default:
			return skipValue(typ, b)
		}
	})
}

// AddCallback registers a named callback against an installed hook.
type AddCallback struct {
	Target          uint64
	Name            string
	CallbackAddress uint64
}

func (m AddCallback) Marshal() []byte {
	var b []byte
	b = appendUint64Field(b, 1, m.Target)
	b = appendStringField(b, 2, m.Name)
	b = appendUint64Field(b, 3, m.CallbackAddress)
	return b
}

func (m *AddCallback) Unmarshal(b []byte) error {
	*m = AddCallback{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			m.Target = v
			return n, nil
		case 2:
			v, n, err := consumeStringValue(b)
			if err != nil {
				return 0, err
			}
			m.Name = v
			return n, nil
		case 3:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			m.CallbackAddress = v
			return n, nil
		default:
			return skipValue(typ, b)
		}
	})
}

// RemoveCallback deregisters a named callback.
type RemoveCallback struct {
	Target uint64
	Name   string
}

func (m RemoveCallback) Marshal() []byte {
	var b []byte
	b = appendUint64Field(b, 1, m.Target)
	b = appendStringField(b, 2, m.Name)
	return b
}

func (m *RemoveCallback) Unmarshal(b []byte) error {
	*m = RemoveCallback{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			m.Target = v
			return n, nil
		case 2:
			v, n, err := consumeStringValue(b)
			if err != nil {
				return 0, err
			}
			m.Name = v
			return n, nil
		default:
			return skipValue(typ, b)
		}
	})
}

// UnitOrder issues a gameplay order; handlers implementing it must set the
// pending flag and complete it from the game-loop drain callback.
type UnitOrder struct {
	Addresses   []uint64
	Action      string
	CoordinateX int32
	CoordinateY int32
}

func (m UnitOrder) Marshal() []byte {
	var b []byte
	for _, a := range m.Addresses {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, a)
	}
	b = appendStringField(b, 2, m.Action)
	b = appendInt64Field(b, 3, int64(m.CoordinateX))
	b = appendInt64Field(b, 4, int64(m.CoordinateY))
	return b
}

func (m *UnitOrder) Unmarshal(b []byte) error {
	*m = UnitOrder{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			m.Addresses = append(m.Addresses, v)
			return n, nil
		case 2:
			v, n, err := consumeStringValue(b)
			if err != nil {
				return 0, err
			}
			m.Action = v
			return n, nil
		case 3:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			m.CoordinateX = int32(v)
			return n, nil
		case 4:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			m.CoordinateY = int32(v)
			return n, nil
		default:
			return skipValue(typ, b)
		}
	})
}

// ProduceUnit requests production of a unit type at a factory; also a
// deferred, main-thread-only command.
type ProduceUnit struct {
	FactoryAddress uint64
	UnitTypeName   string
}

func (m ProduceUnit) Marshal() []byte {
	var b []byte
	b = appendUint64Field(b, 1, m.FactoryAddress)
	b = appendStringField(b, 2, m.UnitTypeName)
	return b
}

func (m *ProduceUnit) Unmarshal(b []byte) error {
	*m = ProduceUnit{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			m.FactoryAddress = v
			return n, nil
		case 2:
			v, n, err := consumeStringValue(b)
			if err != nil {
				return 0, err
			}
			m.UnitTypeName = v
			return n, nil
		default:
			return skipValue(typ, b)
		}
	})
}

// SetTurnRate adjusts the host's simulation rate.
type SetTurnRate struct {
	Rate uint32
}

func (m SetTurnRate) Marshal() []byte {
	return appendUint64Field(nil, 1, uint64(m.Rate))
}

func (m *SetTurnRate) Unmarshal(b []byte) error {
	*m = SetTurnRate{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			m.Rate = uint32(v)
			return n, nil
		default:
			return skipValue(typ, b)
		}
	})
}

// PollRequest is the packed payload of a CommandTypePoll envelope: which
// queue to drain, how many results to return at most, and how long to
// wait for at least one.
type PollRequest struct {
	QueueID       uint64
	MaxCount      uint32
	TimeoutMillis uint64
}

func (m PollRequest) Marshal() []byte {
	var b []byte
	b = appendUint64Field(b, 1, m.QueueID)
	b = appendUint64Field(b, 2, uint64(m.MaxCount))
	b = appendUint64Field(b, 3, m.TimeoutMillis)
	return b
}

func (m *PollRequest) Unmarshal(b []byte) error {
	*m = PollRequest{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			m.QueueID = v
			return n, nil
		case 2:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			m.MaxCount = uint32(v)
			return n, nil
		case 3:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			m.TimeoutMillis = v
			return n, nil
		default:
			return skipValue(typ, b)
		}
	})
}

// GetSystemState is the connection-pairing probe: the first message either
// connection sends; the response carries the queue-id the poll connection
// must subsequently address.
type GetSystemState struct {
	QueueID    uint64
	FrameCount uint64
}

func (m GetSystemState) Marshal() []byte {
	var b []byte
	b = appendUint64Field(b, 1, m.QueueID)
	b = appendUint64Field(b, 2, m.FrameCount)
	return b
}

func (m *GetSystemState) Unmarshal(b []byte) error {
	*m = GetSystemState{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			m.QueueID = v
			return n, nil
		case 2:
			v, n, err := consumeVarintValue(b)
			if err != nil {
				return 0, err
			}
			m.FrameCount = v
			return n, nil
		default:
			return skipValue(typ, b)
		}
	})
}
