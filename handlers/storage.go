package handlers

import (
	"github.com/shmocz/ra2yrcpp-sub000/command"
	"github.com/shmocz/ra2yrcpp-sub000/storage"
	"github.com/shmocz/ra2yrcpp-sub000/wire"
)

func storeValue(ctx *command.Context) error {
	var req wire.StoreValue
	if err := req.Unmarshal(ctx.Payload); err != nil {
		return err
	}
	if err := ctx.Deps.Storage().Set(req.Key, req.Value); err != nil {
		return err
	}
	ctx.Ok(wire.Pack(wire.PayloadKindStoreValue, wire.StoreValue{Key: req.Key, Value: req.Value, Result: req.Value}))
	return nil
}

func getValue(ctx *command.Context) error {
	var req wire.GetValue
	if err := req.Unmarshal(ctx.Payload); err != nil {
		return err
	}
	val, err := storage.Get[string](ctx.Deps.Storage(), req.Key)
	if err != nil {
		return err
	}
	ctx.Ok(wire.Pack(wire.PayloadKindGetValue, wire.GetValue{Key: req.Key, Value: val}))
	return nil
}
