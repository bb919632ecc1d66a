package bus

import (
	"context"

	"github.com/robotalks/rs485.go/pkg/rs485"
)

// Commands served by BuiltinMux.
const (
	// CmdEcho returns the request parameters, truncated to the return length.
	CmdEcho byte = 0x01
	// CmdStatus returns [state, fault, queued errors, overflow].
	CmdStatus byte = 0x02
	// CmdDrainErrors pops up to the return length of queued error codes,
	// most recent first. The rest stay queued for the next call.
	CmdDrainErrors byte = 0x03
)

// BuiltinMux creates a Mux serving the diagnostic commands of a slave node.
func BuiltinMux(b *Bus) *Mux {
	returns := b.Codec().ReturnLen()
	return NewMux().
		HandleFunc(CmdEcho, func(ctx context.Context, req *rs485.Message) (*rs485.Message, error) {
			params := req.Params
			if len(params) > returns {
				params = params[:returns]
			}
			return &rs485.Message{Command: CmdEcho, Params: append([]byte(nil), params...)}, nil
		}).
		HandleFunc(CmdStatus, func(ctx context.Context, req *rs485.Message) (*rs485.Message, error) {
			errs := b.Errors()
			var overflow byte
			if errs.Overflow() {
				overflow = 1
			}
			return &rs485.Message{
				Command: CmdStatus,
				Params:  []byte{byte(b.State()), byte(b.Fault()), byte(errs.Len()), overflow},
			}, nil
		}).
		HandleFunc(CmdDrainErrors, func(ctx context.Context, req *rs485.Message) (*rs485.Message, error) {
			errs := b.Errors()
			var codes []byte
			for len(codes) < returns {
				code, ok := errs.Pop()
				if !ok {
					break
				}
				codes = append(codes, code)
			}
			return &rs485.Message{Command: CmdDrainErrors, Params: codes}, nil
		})
}
