package checker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanplexian/vigilo/internal/events"
	"github.com/oceanplexian/vigilo/internal/logging"
	"github.com/oceanplexian/vigilo/internal/objects"
	"github.com/oceanplexian/vigilo/internal/remote"
	"github.com/oceanplexian/vigilo/internal/scheduler"
)

type execEnv struct {
	*procEnv
	registry *remote.Registry
	exec     *Executor
}

func newExecEnv(t *testing.T, uptime time.Duration) *execEnv {
	t.Helper()
	pe := newProcEnv(t)
	pe.rt = objects.NewRuntime("master1", pe.clk.Now().Add(-uptime))
	pe.proc = NewProcessor(pe.clk, pe.rt, pe.sig, pe.graph, pe.overlay, "master1", logging.Discard())

	registry := remote.NewRegistry("master1")
	return &execEnv{
		procEnv:  pe,
		registry: registry,
		exec:     NewExecutor(pe.clk, pe.rt, pe.proc, pe.sig, registry, logging.Discard()),
	}
}

func TestLocalPluginExecution(t *testing.T) {
	e := newExecEnv(t, time.Hour)
	svc := newTestService(1)
	svc.CheckCommand = &PluginCommand{
		CommandName: "check_echo",
		CommandLine: "echo \"HTTP OK - 200 | time=0.5s;1;2\"",
	}

	async := e.exec.ExecuteCheck(svc)
	assert.False(t, async)

	require.Len(t, e.results, 1)
	cr := e.results[0].Result
	assert.Equal(t, objects.StateOK, cr.State)
	assert.Equal(t, "HTTP OK - 200", cr.Output)
	require.Len(t, cr.PerformanceData, 1)
	assert.Equal(t, "time", cr.PerformanceData[0].Label)
	assert.Equal(t, "master1", cr.CheckSource)
}

func TestLocalPluginExitCodes(t *testing.T) {
	e := newExecEnv(t, time.Hour)
	svc := newTestService(1)
	svc.CheckCommand = &PluginCommand{
		CommandName: "check_fail",
		CommandLine: "echo 'DISK CRITICAL'; exit 2",
	}

	e.exec.ExecuteCheck(svc)
	require.Len(t, e.results, 1)
	assert.Equal(t, objects.StateCritical, e.results[0].Result.State)
	assert.Equal(t, "DISK CRITICAL", e.results[0].Result.Output)
}

func TestMissingCommandYieldsUnknown(t *testing.T) {
	e := newExecEnv(t, time.Hour)
	svc := newTestService(1)

	e.exec.ExecuteCheck(svc)
	require.Len(t, e.results, 1)
	assert.Equal(t, objects.StateUnknown, e.results[0].Result.State)
}

func TestPluginTimeout(t *testing.T) {
	e := newExecEnv(t, time.Hour)
	svc := newTestService(1)
	svc.CheckCommand = &PluginCommand{
		CommandName:    "check_slow",
		CommandLine:    "sleep 5",
		CommandTimeout: 100 * time.Millisecond,
	}

	e.exec.ExecuteCheck(svc)
	require.Len(t, e.results, 1)
	assert.Equal(t, objects.StateUnknown, e.results[0].Result.State)
	assert.Contains(t, e.results[0].Result.Output, "timed out")
}

func TestMacroSubstitution(t *testing.T) {
	e := newExecEnv(t, time.Hour)
	svc := newTestService(1)
	svc.CheckCommand = &PluginCommand{
		CommandName: "check_macro",
		CommandLine: "echo \"checked $HOSTNAME$/$SERVICEDESC$\"",
	}

	e.exec.ExecuteCheck(svc)
	require.Len(t, e.results, 1)
	assert.Equal(t, "checked web1/http", e.results[0].Result.Output)
}

func TestRemoteDispatchWhenConnected(t *testing.T) {
	e := newExecEnv(t, time.Hour)
	ep := remote.NewEndpoint("satellite1")
	var sent [][]byte
	ep.SetSender(func(raw []byte) error {
		sent = append(sent, raw)
		return nil
	})
	e.registry.Register(ep)

	svc := newTestService(1)
	svc.CommandEndpoint = "satellite1"
	svc.CheckCommand = &PluginCommand{CommandName: "check_disk", CommandTimeout: 10 * time.Second}

	async := e.exec.ExecuteCheck(svc)
	assert.True(t, async, "remote dispatch completes asynchronously")
	assert.Empty(t, e.results, "no local result while the reply is outstanding")

	require.Len(t, sent, 1)
	msg, err := remote.DecodeMessage(sent[0])
	require.NoError(t, err)
	params, err := remote.ExecuteCommandFromMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, "check_disk", params.Command)
	assert.Equal(t, "web1", params.Host)
	assert.Equal(t, "http", params.Service)

	// The reply window holds the scheduler off: timeout plus grace.
	assert.Equal(t, e.clk.Now().Add(10*time.Second+remoteReplyGrace), svc.NextCheck)
}

func TestRemoteDisconnectedSynthesizesUnknown(t *testing.T) {
	e := newExecEnv(t, 10*time.Minute)
	e.registry.Register(remote.NewEndpoint("satellite1"))

	svc := newTestService(1)
	svc.CommandEndpoint = "satellite1"

	async := e.exec.ExecuteCheck(svc)
	assert.False(t, async)

	require.Len(t, e.results, 1)
	cr := e.results[0].Result
	assert.Equal(t, objects.StateUnknown, cr.State)
	assert.Contains(t, cr.Output, "satellite1")
	assert.Contains(t, cr.Output, "master1")
}

func TestRemoteDisconnectedDefersDuringGracePeriod(t *testing.T) {
	e := newExecEnv(t, 100*time.Second)
	e.registry.Register(remote.NewEndpoint("satellite1"))

	svc := newTestService(1)
	svc.CommandEndpoint = "satellite1"

	async := e.exec.ExecuteCheck(svc)
	assert.False(t, async)
	assert.Empty(t, e.results, "no synthesis before the startup grace period ends")
	assert.Empty(t, e.notifications)
	assert.True(t, svc.NextCheck.After(e.clk.Now()), "deferred check must be pushed out")
}

func TestRemoteSyncingEndpointDefers(t *testing.T) {
	e := newExecEnv(t, 10*time.Minute)
	ep := remote.NewEndpoint("satellite1")
	ep.SetSyncing(true)
	e.registry.Register(ep)

	svc := newTestService(1)
	svc.CommandEndpoint = "satellite1"

	e.exec.ExecuteCheck(svc)
	assert.Empty(t, e.results, "syncing endpoint defers instead of failing")
}

type fakeTracker struct {
	pending   []scheduler.PendingCheck
	completed []*objects.Checkable
}

func (f *fakeTracker) PendingSnapshot() []scheduler.PendingCheck { return f.pending }
func (f *fakeTracker) CheckCompleted(c *objects.Checkable) {
	f.completed = append(f.completed, c)
}

func TestStaleAgentSweep(t *testing.T) {
	e := newExecEnv(t, time.Hour)
	ep := remote.NewEndpoint("satellite1")
	ep.Heartbeat(e.clk.Now().Add(-10 * time.Minute))
	e.registry.Register(ep)

	svc := newTestService(1)
	svc.CommandEndpoint = "satellite1"

	tracker := &fakeTracker{pending: []scheduler.PendingCheck{
		{Checkable: svc, Since: e.clk.Now().Add(-2 * time.Minute)},
	}}
	sweep := NewStaleAgentSweep(e.clk, e.registry, e.proc, tracker, logging.Discard())

	assert.Equal(t, 1, sweep.SweepOnce(e.clk.Now()))

	require.Len(t, e.results, 1)
	assert.Equal(t, objects.StateCritical, e.results[0].Result.State)
	assert.Equal(t, "Agent isn't responding.", e.results[0].Result.Output)
	assert.Equal(t, []*objects.Checkable{svc}, tracker.completed)
}

func TestSweepSparesFreshDispatchAndLiveAgent(t *testing.T) {
	e := newExecEnv(t, time.Hour)
	ep := remote.NewEndpoint("satellite1")
	ep.Heartbeat(e.clk.Now())
	e.registry.Register(ep)

	fresh := newTestService(1)
	fresh.CommandEndpoint = "satellite1"
	live := objects.NewService(objects.NewHost("db1"), "sql")
	live.CommandEndpoint = "satellite1"

	tracker := &fakeTracker{pending: []scheduler.PendingCheck{
		{Checkable: fresh, Since: e.clk.Now().Add(-10 * time.Second)},
		{Checkable: live, Since: e.clk.Now().Add(-2 * time.Minute)},
	}}
	sweep := NewStaleAgentSweep(e.clk, e.registry, e.proc, tracker, logging.Discard())

	assert.Equal(t, 0, sweep.SweepOnce(e.clk.Now()))
	assert.Empty(t, e.results)
	assert.Empty(t, tracker.completed)
}

func TestCompleteRemote(t *testing.T) {
	e := newExecEnv(t, time.Hour)
	svc := newTestService(1)
	tracker := &fakeTracker{}

	cr := objects.NewCheckResult(e.clk.Now())
	cr.State = objects.StateOK
	cr.CheckSource = "satellite1"
	CompleteRemote(e.proc, tracker, svc, cr, events.Origin{Remote: true, FromEndpoint: "satellite1"})

	require.Len(t, e.results, 1)
	assert.Equal(t, "satellite1", e.results[0].Result.CheckSource)
	assert.True(t, e.results[0].Origin.Remote)
	assert.Equal(t, []*objects.Checkable{svc}, tracker.completed)
}
