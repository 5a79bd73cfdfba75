// Package handlers wires the wire protocol's concrete message kinds to
// the command package's Registry: one Handler per PayloadKind, each
// unpacking its payload, reaching into command.Deps for storage/hook/defer
// access, and populating the Context's result.
package handlers

import (
	"github.com/shmocz/ra2yrcpp-sub000/command"
	"github.com/shmocz/ra2yrcpp-sub000/wire"
)

// Register binds every handler this package implements into reg.
func Register(reg *command.Registry) {
	reg.Register(wire.PayloadKindStoreValue, storeValue)
	reg.Register(wire.PayloadKindGetValue, getValue)
	reg.Register(wire.PayloadKindInstallHook, installHook)
	reg.Register(wire.PayloadKindUninstallHook, uninstallHook)
	reg.Register(wire.PayloadKindAddCallback, addCallback)
	reg.Register(wire.PayloadKindRemoveCallback, removeCallback)
	reg.Register(wire.PayloadKindGetSystemState, getSystemState)
	reg.Register(wire.PayloadKindUnitOrder, unitOrder)
	reg.Register(wire.PayloadKindProduceUnit, produceUnit)
	reg.Register(wire.PayloadKindSetTurnRate, setTurnRate)
}
