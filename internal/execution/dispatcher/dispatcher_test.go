package dispatcher_test

import (
	"context"
	"testing"

	"github.com/lambda-feedback/tether/internal/execution/channel"
	"github.com/lambda-feedback/tether/internal/execution/dispatcher"
	"github.com/lambda-feedback/tether/internal/execution/supervisor"
	"github.com/lambda-feedback/tether/util/oneshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockSession implements the dispatcher.Session interface.
type mockSession struct {
	mock.Mock
}

func (m *mockSession) Start(ctx context.Context, onUnexpectedExit func(supervisor.ExitStatus)) (*oneshot.Future[error], error) {
	args := m.Called(ctx, onUnexpectedExit)

	ready, _ := args.Get(0).(*oneshot.Future[error])
	return ready, args.Error(1)
}

func (m *mockSession) SendCommand(command string) *oneshot.Future[channel.Result] {
	args := m.Called(command)
	return args.Get(0).(*oneshot.Future[channel.Result])
}

func (m *mockSession) Shutdown() *oneshot.Future[supervisor.ExitStatus] {
	args := m.Called()
	return args.Get(0).(*oneshot.Future[supervisor.ExitStatus])
}

func (m *mockSession) State() supervisor.State {
	args := m.Called()
	return args.Get(0).(supervisor.State)
}

func (m *mockSession) ArtifactPath() string {
	args := m.Called()
	return args.String(0)
}

func (m *mockSession) SessionID() string {
	args := m.Called()
	return args.String(0)
}

func readySession() *mockSession {
	s := new(mockSession)
	s.On("Start", mock.Anything, mock.Anything).Return(oneshot.Resolved[error](nil), nil)
	s.On("Shutdown").Return(oneshot.Resolved(supervisor.ExitStatus{}))
	return s
}

func createDispatcher(t *testing.T, sessions ...*mockSession) *dispatcher.Dispatcher {
	next := 0

	factory := func(supervisor.Params) (dispatcher.Session, error) {
		require.Less(t, next, len(sessions), "unexpected session")
		s := sessions[next]
		next++
		return s, nil
	}

	d, err := dispatcher.New(dispatcher.Params{
		SessionFactory: factory,
		Log:            zap.NewNop(),
	})
	require.NoError(t, err)

	return d
}

func TestDispatcher_Status_BeforeStart(t *testing.T) {
	d := createDispatcher(t)

	assert.Equal(t, dispatcher.Status{State: supervisor.Idle}, d.Status())
}

func TestDispatcher_Start(t *testing.T) {
	s := readySession()
	s.On("State").Return(supervisor.Ready)
	s.On("SessionID").Return("abc")
	s.On("ArtifactPath").Return("/tmp/out")

	d := createDispatcher(t, s)

	require.NoError(t, d.Start(context.Background()))

	assert.Equal(t, dispatcher.Status{
		State:        supervisor.Ready,
		SessionID:    "abc",
		ArtifactPath: "/tmp/out",
	}, d.Status())

	require.NoError(t, d.Shutdown(context.Background()))
	s.AssertCalled(t, "Shutdown")
}

func TestDispatcher_Start_Fails(t *testing.T) {
	s := new(mockSession)
	s.On("Start", mock.Anything, mock.Anything).Return(oneshot.Resolved(supervisor.ErrNeverCheckedIn), nil)
	s.On("Shutdown").Return(oneshot.Resolved(supervisor.ExitStatus{}))

	d := createDispatcher(t, s)

	err := d.Start(context.Background())
	assert.ErrorIs(t, err, supervisor.ErrNeverCheckedIn)
}

func TestDispatcher_Start_AlreadyLaunched(t *testing.T) {
	s := new(mockSession)
	s.On("Start", mock.Anything, mock.Anything).Return(nil, supervisor.ErrAlreadyLaunched)

	d := createDispatcher(t, s)

	err := d.Start(context.Background())
	assert.ErrorIs(t, err, supervisor.ErrAlreadyLaunched)
}

func TestDispatcher_Send(t *testing.T) {
	s := readySession()
	s.On("State").Return(supervisor.Ready)
	s.On("SendCommand", "tap").Return(oneshot.Resolved(channel.Result(`{"ok":true}`)))

	d := createDispatcher(t, s)

	res, err := d.Send(context.Background(), "tap")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(res))
}

func TestDispatcher_Send_SessionEnded(t *testing.T) {
	s := readySession()
	s.On("State").Return(supervisor.Ready)
	s.On("SendCommand", "tap").Return(oneshot.Abandoned[channel.Result]())

	d := createDispatcher(t, s)

	_, err := d.Send(context.Background(), "tap")
	assert.ErrorIs(t, err, dispatcher.ErrSessionEnded)
}

func TestDispatcher_Send_ContextDone(t *testing.T) {
	s := readySession()
	s.On("State").Return(supervisor.Ready)
	s.On("SendCommand", "tap").Return(oneshot.New[channel.Result]())

	d := createDispatcher(t, s)
	require.NoError(t, d.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Send(ctx, "tap")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDispatcher_Send_ReplacesEndedSession(t *testing.T) {
	ended := readySession()
	ended.On("State").Return(supervisor.Terminated)

	fresh := readySession()
	fresh.On("State").Return(supervisor.Ready)
	fresh.On("SendCommand", "tap").Return(oneshot.Resolved(channel.Result(`1`)))

	d := createDispatcher(t, ended, fresh)
	require.NoError(t, d.Start(context.Background()))

	res, err := d.Send(context.Background(), "tap")
	require.NoError(t, err)
	assert.Equal(t, "1", string(res))

	ended.AssertCalled(t, "Shutdown")
	ended.AssertNotCalled(t, "SendCommand", mock.Anything)
}
