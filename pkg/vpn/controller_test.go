package vpn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWorker struct {
	mx    sync.Mutex
	calls []string
}

func (w *fakeWorker) Start() { w.record("start") }
func (w *fakeWorker) Stop()  { w.record("stop") }

func (w *fakeWorker) record(call string) {
	w.mx.Lock()
	defer w.mx.Unlock()
	w.calls = append(w.calls, call)
}

func (w *fakeWorker) Calls() []string {
	w.mx.Lock()
	defer w.mx.Unlock()
	return append([]string(nil), w.calls...)
}

type fakePrefs struct {
	mx      sync.Mutex
	desired bool
}

func (p *fakePrefs) DesiredState() bool {
	p.mx.Lock()
	defer p.mx.Unlock()
	return p.desired
}

func (p *fakePrefs) SetDesiredState(started bool) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	p.desired = started
	return nil
}

type fakeNotifier struct {
	mx       sync.Mutex
	notified []Status
	released int
}

func (n *fakeNotifier) Notify(s Status) {
	n.mx.Lock()
	defer n.mx.Unlock()
	n.notified = append(n.notified, s)
}

func (n *fakeNotifier) Release() {
	n.mx.Lock()
	defer n.mx.Unlock()
	n.released++
}

func (n *fakeNotifier) Released() int {
	n.mx.Lock()
	defer n.mx.Unlock()
	return n.released
}

type chanPublisher struct {
	ch chan Status
}

func (p *chanPublisher) Publish(s Status) { p.ch <- s }

type fakeConn struct {
	events chan NetworkEvent
	caps   capsMap
	regErr error
}

func (c *fakeConn) Register(_ context.Context) (<-chan NetworkEvent, error) {
	if c.regErr != nil {
		return nil, c.regErr
	}
	return c.events, nil
}

func (c *fakeConn) Capabilities(n Network) (Capabilities, bool) {
	return c.caps.Capabilities(n)
}

type controllerHarness struct {
	ctrl     *Controller
	worker   *fakeWorker
	prefs    *fakePrefs
	notifier *fakeNotifier
	conn     *fakeConn

	published chan Status
}

func newControllerHarness(t *testing.T, desired bool) *controllerHarness {
	t.Helper()

	h := &controllerHarness{
		worker:    &fakeWorker{},
		prefs:     &fakePrefs{desired: desired},
		notifier:  &fakeNotifier{},
		conn:      &fakeConn{events: make(chan NetworkEvent, 16), caps: testCaps()},
		published: make(chan Status, 16),
	}
	h.ctrl = NewController(nil, h.worker, h.prefs, h.notifier, &chanPublisher{ch: h.published}, h.conn)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, h.ctrl.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Wait until the background Run has claimed the serving slot, so tests
	// observe a controller that is already serving.
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&h.ctrl.serving) == 1
	}, time.Second, time.Millisecond)

	return h
}

func (h *controllerHarness) nextStatus(t *testing.T) Status {
	t.Helper()
	select {
	case s := <-h.published:
		return s
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a published status")
		return StatusStopped
	}
}

func (h *controllerHarness) assertNoPublish(t *testing.T) {
	t.Helper()
	select {
	case s := <-h.published:
		t.Fatalf("unexpected published status: %s", s)
	case <-time.After(150 * time.Millisecond):
	}
}

func (h *controllerHarness) requireWorkerCalls(t *testing.T, want ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		got := h.worker.Calls()
		if len(got) != len(want) {
			return false
		}
		for i := range got {
			if got[i] != want[i] {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond, "worker calls: want %v, got %v", want, h.worker.Calls())
}

// Scenario A: a START command transitions Stopped→Starting, starts the
// worker once and shows the running notification variant.
func TestController_StartCommand(t *testing.T) {
	h := newControllerHarness(t, false)

	h.ctrl.HandleCommand(CommandStart)

	assert.Equal(t, StatusStarting, h.nextStatus(t))
	h.requireWorkerCalls(t, "start")
	assert.True(t, h.prefs.DesiredState())
}

// Scenario E: START immediately followed by STOP always ends published as
// Stopped, with the worker stopped after it was started.
func TestController_StartThenStop(t *testing.T) {
	h := newControllerHarness(t, false)

	h.ctrl.HandleCommand(CommandStart)
	h.ctrl.HandleCommand(CommandStop)

	assert.Equal(t, StatusStarting, h.nextStatus(t))
	assert.Equal(t, StatusStopped, h.nextStatus(t))
	h.requireWorkerCalls(t, "start", "stop")
	assert.False(t, h.prefs.DesiredState())
	assert.Equal(t, 1, h.notifier.Released())
}

func TestController_StopWhileStoppedRepublishesStopped(t *testing.T) {
	h := newControllerHarness(t, false)

	h.ctrl.HandleCommand(CommandStop)

	assert.Equal(t, StatusStopped, h.nextStatus(t))
	h.requireWorkerCalls(t, "stop")
}

func TestController_StartWhileStartedRestartsWorker(t *testing.T) {
	h := newControllerHarness(t, false)

	h.ctrl.HandleCommand(CommandStart)
	require.Equal(t, StatusStarting, h.nextStatus(t))

	h.ctrl.HandleCommand(CommandStart)
	assert.Equal(t, StatusStarting, h.nextStatus(t))
	h.requireWorkerCalls(t, "start", "start")
}

func TestController_UnknownCommandIgnored(t *testing.T) {
	h := newControllerHarness(t, false)

	h.ctrl.HandleCommand(Command(99))

	h.assertNoPublish(t)
	assert.Empty(t, h.worker.Calls())
}

// Worker status reports are published as-is, in the order sent.
func TestController_WorkerStatusReportsPublished(t *testing.T) {
	h := newControllerHarness(t, false)

	h.ctrl.Bridge().Send(StatusStarting)
	h.ctrl.Bridge().Send(StatusRunning)

	assert.Equal(t, StatusStarting, h.nextStatus(t))
	assert.Equal(t, StatusRunning, h.nextStatus(t))
	assert.Empty(t, h.worker.Calls())
}

// Scenario B: losing the network while running stops the worker and waits
// for the network to come back.
func TestController_NetworkLostWhileRunning(t *testing.T) {
	h := newControllerHarness(t, false)

	h.ctrl.HandleCommand(CommandStart)
	require.Equal(t, StatusStarting, h.nextStatus(t))
	h.ctrl.Bridge().Send(StatusRunning)
	require.Equal(t, StatusRunning, h.nextStatus(t))

	h.conn.events <- NetworkEvent{Kind: NetworkLost, Network: ethNet}

	assert.Equal(t, StatusWaitingForNetwork, h.nextStatus(t))
	h.requireWorkerCalls(t, "start", "stop")
	h.assertNoPublish(t)
}

// Scenario C: a regained network with a non-tunnel transport restarts the
// worker through Reconnecting.
func TestController_NetworkRegainedReconnects(t *testing.T) {
	h := newControllerHarness(t, false)

	h.ctrl.HandleCommand(CommandStart)
	require.Equal(t, StatusStarting, h.nextStatus(t))

	h.conn.events <- NetworkEvent{Kind: NetworkAvailable, Network: ethNet} // registration snapshot
	h.conn.events <- NetworkEvent{Kind: NetworkLost, Network: ethNet}
	require.Equal(t, StatusWaitingForNetwork, h.nextStatus(t))

	h.conn.events <- NetworkEvent{Kind: NetworkAvailable, Network: ethNet}

	assert.Equal(t, StatusReconnecting, h.nextStatus(t))
	h.requireWorkerCalls(t, "start", "stop", "stop", "start")
}

// Scenario D: the tunnel's own interface becoming the default network must
// not cause a transition or a worker call.
func TestController_SelfCausedNetworkChangeSuppressed(t *testing.T) {
	h := newControllerHarness(t, false)

	h.ctrl.HandleCommand(CommandStart)
	require.Equal(t, StatusStarting, h.nextStatus(t))
	h.conn.events <- NetworkEvent{Kind: NetworkAvailable, Network: ethNet} // registration snapshot
	h.ctrl.Bridge().Send(StatusRunning)
	require.Equal(t, StatusRunning, h.nextStatus(t))

	h.conn.events <- NetworkEvent{Kind: NetworkAvailable, Network: tunNet}

	h.assertNoPublish(t)
	h.requireWorkerCalls(t, "start")
}

// Network signals are discarded entirely while the desired state is
// stopped.
func TestController_NetworkSignalsNoopWhileStopped(t *testing.T) {
	h := newControllerHarness(t, false)

	h.conn.events <- NetworkEvent{Kind: NetworkAvailable, Network: ethNet} // registration snapshot
	h.conn.events <- NetworkEvent{Kind: NetworkAvailable, Network: wifiNet}
	h.conn.events <- NetworkEvent{Kind: NetworkLost, Network: wifiNet}

	h.assertNoPublish(t)
	assert.Empty(t, h.worker.Calls())
}

// A persisted started state resumes the tunnel on boot.
func TestController_ResumesWhenDesiredStateStarted(t *testing.T) {
	h := newControllerHarness(t, true)

	assert.Equal(t, StatusStarting, h.nextStatus(t))
	h.requireWorkerCalls(t, "start")
}

func TestController_RegistrationFailureIsFatal(t *testing.T) {
	regErr := errors.New("connectivity subsystem unavailable")
	worker := &fakeWorker{}
	ctrl := NewController(nil, worker, &fakePrefs{}, &fakeNotifier{},
		&chanPublisher{ch: make(chan Status, 1)}, &fakeConn{regErr: regErr})

	err := ctrl.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, regErr)
	assert.Empty(t, worker.Calls())
}

func TestController_RunTwiceReturnsErrAlreadyServing(t *testing.T) {
	h := newControllerHarness(t, false)

	assert.Equal(t, ErrAlreadyServing, h.ctrl.Run(context.Background()))
}
