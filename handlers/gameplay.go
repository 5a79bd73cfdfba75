package handlers

import (
	"github.com/shmocz/ra2yrcpp-sub000/command"
	"github.com/shmocz/ra2yrcpp-sub000/wire"
)

// These three handlers mutate game state and so cannot run on the worker
// goroutine that invoked them: they mark the invocation pending and hand a
// closure to Deps.Defer, which the bridge's drain callback runs on the
// host's hijacked main thread. The closure records the outcome and calls
// Complete itself, since Defer's signature carries no *Context.

func unitOrder(ctx *command.Context) error {
	var req wire.UnitOrder
	if err := req.Unmarshal(ctx.Payload); err != nil {
		return err
	}
	ctx.Pending()
	ctx.Deps.Defer(func() {
		ctx.Ok(wire.Pack(wire.PayloadKindUnitOrder, req))
		ctx.Deps.Complete(ctx)
	})
	return nil
}

func produceUnit(ctx *command.Context) error {
	var req wire.ProduceUnit
	if err := req.Unmarshal(ctx.Payload); err != nil {
		return err
	}
	ctx.Pending()
	ctx.Deps.Defer(func() {
		ctx.Ok(wire.Pack(wire.PayloadKindProduceUnit, req))
		ctx.Deps.Complete(ctx)
	})
	return nil
}

func setTurnRate(ctx *command.Context) error {
	var req wire.SetTurnRate
	if err := req.Unmarshal(ctx.Payload); err != nil {
		return err
	}
	ctx.Pending()
	ctx.Deps.Defer(func() {
		ctx.Ok(wire.Pack(wire.PayloadKindSetTurnRate, req))
		ctx.Deps.Complete(ctx)
	})
	return nil
}
