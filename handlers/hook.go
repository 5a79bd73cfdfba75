package handlers

import (
	"github.com/shmocz/ra2yrcpp-sub000/command"
	"github.com/shmocz/ra2yrcpp-sub000/hook"
	"github.com/shmocz/ra2yrcpp-sub000/wire"
)

func installHook(ctx *command.Context) error {
	var req wire.InstallHook
	if err := req.Unmarshal(ctx.Payload); err != nil {
		return err
	}
	if err := ctx.Deps.InstallHook(req.Name, uintptr(req.Address), int(req.PrefixLength)); err != nil {
		return err
	}
	ctx.Ok(wire.Pack(wire.PayloadKindTextResponse, wire.TextResponse{Message: "hook installed"}))
	return nil
}

func uninstallHook(ctx *command.Context) error {
	var req wire.UninstallHook
	if err := req.Unmarshal(ctx.Payload); err != nil {
		return err
	}
	if err := ctx.Deps.UninstallHook(uintptr(req.Address)); err != nil {
		return err
	}
	ctx.Ok(wire.Pack(wire.PayloadKindTextResponse, wire.TextResponse{Message: "hook uninstalled"}))
	return nil
}

func addCallback(ctx *command.Context) error {
	var req wire.AddCallback
	if err := req.Unmarshal(ctx.Payload); err != nil {
		return err
	}
	fn := hook.NativeCallback(uintptr(req.CallbackAddress))
	if err := ctx.Deps.AddCallback(uintptr(req.Target), req.Name, fn); err != nil {
		return err
	}
	ctx.Ok(wire.Pack(wire.PayloadKindTextResponse, wire.TextResponse{Message: "callback added"}))
	return nil
}

func removeCallback(ctx *command.Context) error {
	var req wire.RemoveCallback
	if err := req.Unmarshal(ctx.Payload); err != nil {
		return err
	}
	if err := ctx.Deps.RemoveCallback(uintptr(req.Target), req.Name); err != nil {
		return err
	}
	ctx.Ok(wire.Pack(wire.PayloadKindTextResponse, wire.TextResponse{Message: "callback removed"}))
	return nil
}

func getSystemState(ctx *command.Context) error {
	ctx.Ok(wire.Pack(wire.PayloadKindGetSystemState, wire.GetSystemState{
		QueueID:    ctx.QueueID,
		FrameCount: ctx.Deps.CurrentFrame(),
	}))
	return nil
}
