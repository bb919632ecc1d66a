package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rs485.go/pkg/link/pipe"
	"github.com/robotalks/rs485.go/pkg/rs485"
)

func TestBuiltinMux(t *testing.T) {
	hub := pipe.NewHub()
	master, _ := startBus(t, hub, rs485.RoleMaster, 0, nil)
	var mux *Mux
	slave, _ := startBus(t, hub, rs485.RoleSlave, 9, HandlerFunc(func(ctx context.Context, req *rs485.Message) (*rs485.Message, error) {
		return mux.HandleRequest(ctx, req)
	}))
	mux = BuiltinMux(slave)
	c := NewClient(master)

	params := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	resp, err := doRequest(t, c, rs485.Message{Address: 9, ResponseRequired: true, Command: CmdEcho, Params: params})
	require.NoError(t, err)
	require.Equal(t, CmdEcho, resp.Command)
	require.Equal(t, params[:rs485.DefaultReturnLen], resp.Params[:rs485.DefaultReturnLen])

	slave.Errors().Push(byte(rs485.AddressInvalid))
	resp, err = doRequest(t, c, rs485.Message{Address: 9, ResponseRequired: true, Command: CmdStatus})
	require.NoError(t, err)
	require.Equal(t, CmdStatus, resp.Command)
	require.Equal(t, []byte{1, 0}, resp.Params[2:4])

	resp, err = doRequest(t, c, rs485.Message{Address: 9, ResponseRequired: true, Command: CmdDrainErrors})
	require.NoError(t, err)
	require.Equal(t, byte(rs485.AddressInvalid), resp.Params[0])
	require.Zero(t, slave.Errors().Len())
}

func TestBuiltinDrainKeepsOlderErrors(t *testing.T) {
	b := New(pipe.NewHub().Attach(), rs485.Config{ReturnLen: 2})
	for _, code := range []rs485.Code{rs485.InvalidCrc, rs485.FrameError, rs485.RequestDropped} {
		b.Errors().Push(byte(code))
	}
	mux := BuiltinMux(b)
	req := &rs485.Message{Address: 9, ResponseRequired: true, Command: CmdDrainErrors}

	resp, err := mux.HandleRequest(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, []byte{byte(rs485.RequestDropped), byte(rs485.FrameError)}, resp.Params)
	require.Equal(t, 1, b.Errors().Len())

	resp, err = mux.HandleRequest(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, []byte{byte(rs485.InvalidCrc)}, resp.Params)

	resp, err = mux.HandleRequest(context.Background(), req)
	require.NoError(t, err)
	require.Empty(t, resp.Params)
}
