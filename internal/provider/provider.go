package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/zeuslawyer/remix-simulator/internal/jsonrpc"
)

var ErrNoResponse = errors.New("provider returned no response")

// Result is the single completion of a dispatched request. Exactly one of
// Response and Err is set.
type Result struct {
	Response *jsonrpc.Response
	Err      error
}

// Provider executes JSON-RPC requests on behalf of the gateway.
type Provider interface {
	Init(ctx context.Context) error
	// SendAsync dispatches req and returns a channel that yields exactly one
	// Result and is then closed.
	SendAsync(ctx context.Context, req *jsonrpc.Request) <-chan Result
	// OnData registers fn for out-of-band data events. The returned func
	// removes the registration.
	OnData(fn func(data any)) (unsubscribe func())
	Accounts() []string
}

// ChannelReleaser is implemented by providers that keep state per client
// channel, such as subscriptions. ReleaseChannel drops that state once the
// channel is gone.
type ChannelReleaser interface {
	ReleaseChannel(id string)
}

type channelKey struct{}

// WithChannel tags ctx with the id of the channel a request arrived on.
func WithChannel(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, channelKey{}, id)
}

// ChannelFromContext returns the channel id set by WithChannel, or "".
func ChannelFromContext(ctx context.Context) string {
	id, _ := ctx.Value(channelKey{}).(string)
	return id
}

// Async runs fn in its own goroutine and delivers its outcome as a Result.
// A panic inside fn is converted into an error.
func Async(ctx context.Context, fn func(ctx context.Context) (*jsonrpc.Response, error)) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		var res Result
		func() {
			defer func() {
				if r := recover(); r != nil {
					res = Result{Err: fmt.Errorf("provider panic: %v", r)}
				}
			}()
			resp, err := fn(ctx)
			switch {
			case err != nil:
				res = Result{Err: err}
			case resp == nil:
				res = Result{Err: ErrNoResponse}
			default:
				res = Result{Response: resp}
			}
		}()
		ch <- res
	}()
	return ch
}
