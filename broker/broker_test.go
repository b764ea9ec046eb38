package broker

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// pipeListener turns a channel of pre-connected net.Conn pairs into a
// net.Listener, mirroring session.singleConnListener's role but for
// tests: each Dial call feeds the paired end in for Accept to pick up.
type pipeListener struct {
	mu     sync.Mutex
	conns  chan net.Conn
	closed bool
}

func newPipeListener() *pipeListener {
	return &pipeListener{conns: make(chan net.Conn, 8)}
}

func (l *pipeListener) Accept() (net.Conn, error) {
	c, ok := <-l.conns
	if !ok {
		return nil, net.ErrClosed
	}
	return c, nil
}

func (l *pipeListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.conns)
	}
	return nil
}

func (l *pipeListener) Addr() net.Addr { return dummyAddr{} }

type dummyAddr struct{}

func (dummyAddr) Network() string { return "pipe" }
func (dummyAddr) String() string  { return "pipe" }

func dialerFor(l *pipeListener) Dialer {
	return func(ctx context.Context) (net.Conn, error) {
		client, server := net.Pipe()
		l.conns <- server
		return client, nil
	}
}

func TestConnectDialsWhenPoolIsEmpty(t *testing.T) {
	ln := newPipeListener()
	b := New(dialerFor(ln), ln, Options{})
	defer b.Close()

	ch, err := b.Connect(context.Background())
	require.NoError(t, err)
	require.NotNil(t, ch)
}

func TestRecycleThenConnectReusesChannel(t *testing.T) {
	ln := newPipeListener()
	b := New(dialerFor(ln), ln, Options{})
	defer b.Close()

	ch, err := b.Connect(context.Background())
	require.NoError(t, err)
	b.Recycle(ch, nil)

	reused, err := b.Connect(context.Background())
	require.NoError(t, err)
	require.Same(t, ch, reused)
}

func TestRecycleWithErrorClosesRatherThanPools(t *testing.T) {
	ln := newPipeListener()
	b := New(dialerFor(ln), ln, Options{})
	defer b.Close()

	ch, err := b.Connect(context.Background())
	require.NoError(t, err)
	b.Recycle(ch, context.DeadlineExceeded)

	other, err := b.Connect(context.Background())
	require.NoError(t, err)
	require.NotSame(t, ch, other)
}

func TestRecycleBeyondMaxChannelsDiscards(t *testing.T) {
	ln := newPipeListener()
	b := New(dialerFor(ln), ln, Options{MaxChannels: 1})
	defer b.Close()

	a, err := b.Connect(context.Background())
	require.NoError(t, err)
	c, err := b.Connect(context.Background())
	require.NoError(t, err)

	b.Recycle(a, nil)
	b.Recycle(c, nil)

	b.mu.Lock()
	idleCount := len(b.idle)
	b.mu.Unlock()
	require.Equal(t, 1, idleCount)
}

func TestAcceptDeliversChannelsFromListener(t *testing.T) {
	ln := newPipeListener()
	b := New(dialerFor(ln), ln, Options{})
	defer b.Close()

	go func() {
		_, _ = b.Connect(context.Background())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ch, err := b.Accept(ctx)
	require.NoError(t, err)
	require.NotNil(t, ch)
}

func TestConnectAfterCloseReturnsErrClosed(t *testing.T) {
	ln := newPipeListener()
	b := New(dialerFor(ln), ln, Options{})
	require.NoError(t, b.Close())

	_, err := b.Connect(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestConnectWithoutDialerFails(t *testing.T) {
	b := New(nil, nil, Options{})
	defer b.Close()

	_, err := b.Connect(context.Background())
	require.Error(t, err)
}
