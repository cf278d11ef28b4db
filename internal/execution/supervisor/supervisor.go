// Package supervisor owns the lifecycle of a single worker process: it
// launches the worker, waits for it to check in over the command
// channel, retries flaky launches, forwards commands and tears the
// session down when the worker exits or is shut down.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lambda-feedback/tether/internal/execution/channel"
	"github.com/lambda-feedback/tether/internal/execution/locate"
	"github.com/lambda-feedback/tether/internal/execution/output"
	"github.com/lambda-feedback/tether/internal/execution/scratch"
	"github.com/lambda-feedback/tether/internal/execution/worker"
	"github.com/lambda-feedback/tether/util/oneshot"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Params struct {
	// Config is the config used to launch and stop the worker.
	Config Config

	// Locator resolves the worker binary. If nil, Config.Worker.Cmd
	// is resolved against PATH.
	Locator locate.Locator

	// Log is the logger to use for the supervisor
	Log *zap.Logger
}

// Supervisor runs one worker session at a time. All methods are safe
// for concurrent use. Notifications are delivered through futures and
// callbacks, after the session state has been cleaned up.
type Supervisor struct {
	mu sync.Mutex

	config  Config
	locator locate.Locator
	filter  *output.Filter
	channel *channel.Channel

	state State

	// gen identifies the current launch attempt. Timers, exit watchers
	// and connections of an older attempt carry a stale gen and are
	// ignored.
	gen int

	sessionID    string
	binary       string
	scratchDir   string
	artifactPath string
	retries      int
	proc         *worker.Process

	// pendingRetry is set while the worker of a failed attempt is
	// being killed, the next attempt is launched once it is gone.
	pendingRetry bool

	// failure is set while the worker of the final failed attempt is
	// being killed, the session ends with it once the worker is gone.
	failure      error
	failureState State

	ready            *oneshot.Future[error]
	shutdown         *oneshot.Future[ExitStatus]
	onUnexpectedExit func(ExitStatus)
	lastStatus       ExitStatus

	startupTimer     *time.Timer
	terminationTimer *time.Timer
	killTimer        *time.Timer

	baseLog *zap.Logger
	log     *zap.Logger
}

func New(params Params) (*Supervisor, error) {
	config := params.Config.withDefaults()

	filter, err := output.New(config.Output)
	if err != nil {
		return nil, err
	}

	locator := params.Locator
	if locator == nil {
		locator = locate.PathLocator{Name: config.Worker.Cmd}
	}

	log := params.Log.Named("supervisor")

	return &Supervisor{
		config:  config,
		locator: locator,
		filter:  filter,
		channel: channel.New(log),
		state:   Idle,
		baseLog: log,
		log:     log,
	}, nil
}

// Start launches a new session. It fails with ErrAlreadyLaunched if a
// session is active, and with an error wrapping locate.ErrResolution
// if the worker binary cannot be found. Neither failure changes the
// state of the supervisor.
//
// The returned future resolves exactly once: with nil when the worker
// checked in, or with the error that ended the session. Startup
// crashes and missed check-ins are retried transparently until the
// retry budget is used up.
//
// onUnexpectedExit is called if the worker exits on its own after it
// checked in. It may be nil.
func (s *Supervisor) Start(
	ctx context.Context,
	onUnexpectedExit func(ExitStatus),
) (*oneshot.Future[error], error) {
	if !s.launchable() {
		return nil, ErrAlreadyLaunched
	}

	// the lookup may be slow, it runs without the lock
	binary, err := s.locator.Locate(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()

	// another Start may have won while the binary was resolved
	if s.state != Idle && !s.state.Terminal() {
		s.mu.Unlock()
		return nil, ErrAlreadyLaunched
	}

	s.sessionID = uuid.NewString()
	s.binary = binary
	s.scratchDir = s.config.ScratchDir
	s.artifactPath = ""
	s.retries = 0
	s.ready = oneshot.New[error]()
	s.onUnexpectedExit = onUnexpectedExit
	s.lastStatus = ExitStatus{}

	s.log = s.baseLog.With(zap.String("session", s.sessionID))
	s.log.Info("starting worker", zap.String("binary", binary))

	ready := s.ready
	notify := s.relaunchLocked()

	s.mu.Unlock()

	if notify != nil {
		notify()
	}

	return ready, nil
}

func (s *Supervisor) launchable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state == Idle || s.state.Terminal()
}

// SendCommand queues command for the worker. Before the worker checked
// in, the command waits for its connection. In a terminal state the
// returned future is abandoned.
func (s *Supervisor) SendCommand(command string) *oneshot.Future[channel.Result] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		s.log.Warn("dropping command, session ended", zap.String("command", command))
		return oneshot.Abandoned[channel.Result]()
	}

	return s.channel.Enqueue(command)
}

// Shutdown asks the worker to terminate. The worker receives SIGTERM,
// then SIGKILL once the termination timeout elapsed. The returned
// future resolves with the exit status once the worker is gone.
//
// Without a worker, the future resolves immediately if the session
// already ended, or is kept for the next exit otherwise.
func (s *Supervisor) Shutdown() *oneshot.Future[ExitStatus] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return oneshot.Resolved(s.lastStatus)
	}

	if s.shutdown == nil {
		s.shutdown = oneshot.New[ExitStatus]()
	}

	shutdown := s.shutdown

	switch {
	case s.proc == nil, s.state == ShuttingDown, s.failure != nil:
		// nothing to signal, the next exit resolves the future

	case s.pendingRetry:
		// the worker is already being killed
		s.pendingRetry = false
		s.state = ShuttingDown

	default:
		s.log.Info("shutting down worker")
		s.state = ShuttingDown

		if err := s.proc.Terminate(); err != nil {
			s.log.Warn("failed to terminate worker", zap.Error(err))
		}

		gen := s.gen
		s.terminationTimer = time.AfterFunc(s.config.TerminationTimeout, func() {
			s.terminationTimedOut(gen)
		})
	}

	return shutdown
}

// State returns the lifecycle state of the current session.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// ArtifactPath returns the last artifact path announced by the worker
// in the current session.
func (s *Supervisor) ArtifactPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.artifactPath
}

// SessionID returns the id of the current session, or an empty string
// before the first start.
func (s *Supervisor) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sessionID
}

// MARK: - Launch

// relaunchLocked launches the next attempt. If the launch fails, the
// session ends and the returned func delivers the notifications.
func (s *Supervisor) relaunchLocked() func() {
	if err := s.launchLocked(); err != nil {
		s.log.Error("failed to launch worker", zap.Error(err))
		return s.finishLocked(Terminated, err, ExitStatus{}, false)
	}

	return nil
}

func (s *Supervisor) launchLocked() error {
	s.gen++
	gen := s.gen

	s.state = Launching

	// connections of a previous attempt must not count as check-in
	s.closeChannelLocked()

	// a command handed to the previous attempt was never answered
	s.channel.Requeue()

	if err := s.channel.Listen(s.config.Socket, func() { s.checkIn(gen) }); err != nil {
		return fmt.Errorf("failed to open command channel: %w", err)
	}

	dir, err := scratch.Prepare(s.scratchDir)
	if err != nil {
		return err
	}
	s.scratchDir = dir

	env, err := s.workerEnv()
	if err != nil {
		return err
	}

	stdout := output.NewLineWriter(s.filter, s.outputHandler(gen, s.log, zapcore.InfoLevel))
	stderr := output.NewLineWriter(s.filter, s.outputHandler(gen, s.log, zapcore.WarnLevel))

	proc, err := worker.Start(worker.StartConfig{
		Cmd:  s.binary,
		Args: s.config.Worker.Args,
		Cwd:  dir,
		Env:  env,
	}, worker.Stdio{
		Stdout: stdout,
		Stderr: stderr,
	}, s.log)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	s.proc = proc
	s.state = AwaitingCheckIn

	s.log.Debug("worker spawned",
		zap.Int("pid", proc.Pid()),
		zap.Int("attempt", s.retries+1),
	)

	s.startupTimer = time.AfterFunc(s.config.StartupTimeout, func() {
		s.startupTimedOut(gen)
	})

	go s.watch(gen, proc, stdout, stderr)

	return nil
}

// outputHandler logs worker output with log, which is bound to the
// attempt. The pumps of a killed worker may outlive its session.
func (s *Supervisor) outputHandler(gen int, log *zap.Logger, level zapcore.Level) func(output.Line) {
	return func(line output.Line) {
		if line.Text != "" {
			log.Log(level, "worker output", zap.String("line", line.Text))
		}

		if line.Marker == "" {
			return
		}

		s.mu.Lock()
		if gen == s.gen {
			s.artifactPath = line.Marker
		}
		s.mu.Unlock()

		log.Info("worker produced artifact", zap.String("path", line.Marker))
	}
}

// MARK: - Events

func (s *Supervisor) watch(
	gen int,
	proc *worker.Process,
	stdout *output.LineWriter,
	stderr *output.LineWriter,
) {
	<-proc.Done()

	stdout.Flush()
	stderr.Flush()

	exit := proc.ExitEvent()
	s.exited(gen, &exit)
}

func (s *Supervisor) checkIn(gen int) {
	s.mu.Lock()

	if gen != s.gen || s.state != AwaitingCheckIn || s.pendingRetry || s.failure != nil {
		s.mu.Unlock()
		return
	}

	s.state = Ready
	stopTimer(&s.startupTimer)
	ready := s.ready

	s.log.Info("worker checked in")

	s.mu.Unlock()

	ready.Resolve(nil)
}

func (s *Supervisor) startupTimedOut(gen int) {
	s.mu.Lock()

	if gen != s.gen || s.state != AwaitingCheckIn || s.pendingRetry || s.failure != nil {
		s.mu.Unlock()
		return
	}

	s.log.Warn("worker did not check in", zap.Duration("timeout", s.config.StartupTimeout))

	notify := s.startupFailedLocked(NeverCheckedIn, ErrNeverCheckedIn, ExitStatus{})

	s.mu.Unlock()

	if notify != nil {
		notify()
	}
}

func (s *Supervisor) terminationTimedOut(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.proc == nil {
		return
	}

	s.log.Warn("worker did not terminate in time, killing",
		zap.Duration("timeout", s.config.TerminationTimeout),
	)

	s.killLocked()
}

// exited handles the exit of the worker. exit is nil if the worker
// could not be killed within the kill timeout.
func (s *Supervisor) exited(gen int, exit *worker.ExitEvent) {
	s.mu.Lock()

	if gen != s.gen {
		s.mu.Unlock()
		return
	}

	if exit == nil {
		s.log.Error("worker did not exit after kill, giving up",
			zap.Duration("timeout", s.config.KillTimeout),
		)
	}

	s.proc = nil
	s.stopTimersLocked()

	status := newExitStatus(exit, s.artifactPath)

	var notify func()

	switch {
	case s.failure != nil:
		notify = s.finishLocked(s.failureState, s.failure, status, false)

	case s.state == ShuttingDown:
		s.log.Info("worker shut down", zap.Stringer("status", status))
		notify = s.finishLocked(Terminated, ErrSessionClosed, status, false)

	case s.pendingRetry:
		s.pendingRetry = false
		notify = s.relaunchLocked()

	case s.state == AwaitingCheckIn && s.config.ExitExpectedAtStartup:
		s.log.Info("worker exited", zap.Stringer("status", status))
		notify = s.finishLocked(Terminated, nil, status, false)

	case s.state == AwaitingCheckIn:
		s.log.Warn("worker crashed at startup", zap.Stringer("status", status))
		notify = s.startupFailedLocked(CrashedAtStartup, &CrashError{Status: status}, status)

	case s.state == Ready:
		s.log.Warn("worker exited unexpectedly", zap.Stringer("status", status))
		notify = s.finishLocked(Terminated, nil, status, true)
	}

	s.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// MARK: - Transitions

// startupFailedLocked retries the launch if budget is left, or ends
// the session in state with err. A worker that is still running is
// killed first.
func (s *Supervisor) startupFailedLocked(state State, err error, status ExitStatus) func() {
	stopTimer(&s.startupTimer)

	// a worker that is being replaced must not be handed commands
	s.closeChannelLocked()

	if s.retries < s.config.Retries {
		s.retries++

		s.log.Info("retrying worker launch",
			zap.Error(err),
			zap.Int("retry", s.retries),
			zap.Int("budget", s.config.Retries),
		)

		if s.proc != nil {
			s.pendingRetry = true
			s.killLocked()
			return nil
		}

		return s.relaunchLocked()
	}

	s.log.Error("worker failed to start", zap.Error(err))

	if s.proc != nil {
		s.failure = err
		s.failureState = state
		s.killLocked()
		return nil
	}

	return s.finishLocked(state, err, status, false)
}

// killLocked sends SIGKILL to the worker and arms the kill timer.
func (s *Supervisor) killLocked() {
	if err := s.proc.Kill(); err != nil {
		s.log.Error("failed to kill worker", zap.Error(err))
	}

	stopTimer(&s.killTimer)

	gen := s.gen
	s.killTimer = time.AfterFunc(s.config.KillTimeout, func() {
		s.exited(gen, nil)
	})
}

// finishLocked ends the session and cleans up. The returned func
// delivers the notifications and must be called without the lock.
func (s *Supervisor) finishLocked(
	state State,
	err error,
	status ExitStatus,
	unexpected bool,
) func() {
	s.gen++
	s.state = state
	s.stopTimersLocked()
	s.proc = nil
	s.pendingRetry = false
	s.failure = nil
	s.lastStatus = status

	s.channel.Clean()
	s.closeChannelLocked()

	// a scratch dir created for this session is removed with it
	if s.config.ScratchDir == "" && s.scratchDir != "" {
		if rerr := scratch.Remove(s.scratchDir); rerr != nil {
			s.log.Warn("failed to remove scratch dir", zap.Error(rerr))
		}
		s.scratchDir = ""
	}

	ready := s.ready
	shutdown := s.shutdown
	s.shutdown = nil

	var onUnexpectedExit func(ExitStatus)
	if unexpected {
		onUnexpectedExit = s.onUnexpectedExit
	}

	s.log.Debug("session ended", zap.Stringer("state", state))

	return func() {
		if ready != nil {
			ready.Resolve(err)
		}

		if shutdown != nil {
			shutdown.Resolve(status)
		}

		if onUnexpectedExit != nil {
			onUnexpectedExit(status)
		}
	}
}

func (s *Supervisor) closeChannelLocked() {
	if err := s.channel.Close(); err != nil {
		s.log.Warn("failed to close command channel", zap.Error(err))
	}
}

func (s *Supervisor) stopTimersLocked() {
	stopTimer(&s.startupTimer)
	stopTimer(&s.terminationTimer)
	stopTimer(&s.killTimer)
}

func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
