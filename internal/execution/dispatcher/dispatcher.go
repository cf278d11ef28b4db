// Package dispatcher keeps a single live worker session for the
// service surfaces and routes commands to it.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/puddle/v2"
	"github.com/lambda-feedback/tether/internal/execution/channel"
	"github.com/lambda-feedback/tether/internal/execution/locate"
	"github.com/lambda-feedback/tether/internal/execution/supervisor"
	"github.com/lambda-feedback/tether/util/oneshot"
	"go.uber.org/zap"
)

// ErrSessionEnded is returned by Send if the session ended before the
// worker reported a result.
var ErrSessionEnded = errors.New("session ended before the command completed")

// Session is a supervised worker session.
type Session interface {
	Start(ctx context.Context, onUnexpectedExit func(supervisor.ExitStatus)) (*oneshot.Future[error], error)
	SendCommand(command string) *oneshot.Future[channel.Result]
	Shutdown() *oneshot.Future[supervisor.ExitStatus]
	State() supervisor.State
	ArtifactPath() string
	SessionID() string
}

var _ Session = (*supervisor.Supervisor)(nil)

type SessionFactory func(supervisor.Params) (Session, error)

// Status is a snapshot of the current session.
type Status struct {
	State        supervisor.State
	SessionID    string
	ArtifactPath string
}

type Config struct {
	// Supervisor is the configuration of the worker sessions.
	Supervisor supervisor.Config `conf:",squash"`
}

type Params struct {
	// Context bounds the shutdown of sessions destroyed by the pool.
	Context context.Context

	// Config is the config for the dispatcher and its sessions
	Config Config

	// Locator resolves the worker binary. If nil, the configured
	// command is resolved against PATH.
	Locator locate.Locator

	// SessionFactory creates sessions. If nil, supervisors are used.
	SessionFactory SessionFactory

	// Log is the logger to use for the dispatcher
	Log *zap.Logger
}

// Dispatcher holds at most one session in a pool of capacity one. A
// session that ended is destroyed, and the next acquire launches a
// fresh one once the old one is gone, so sessions never share the
// socket.
type Dispatcher struct {
	pool *puddle.Pool[Session]

	mu      sync.Mutex
	current Session

	log *zap.Logger
}

func New(params Params) (*Dispatcher, error) {
	if params.SessionFactory == nil {
		params.SessionFactory = defaultSessionFactory
	}

	if params.Context == nil {
		params.Context = context.Background()
	}

	d := &Dispatcher{
		log: params.Log.Named("dispatcher"),
	}

	pool, err := d.createPool(params)
	if err != nil {
		return nil, err
	}

	d.pool = pool

	return d, nil
}

// Start launches the session and waits for the worker to check in.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.log.Debug("booting")

	resource, err := d.acquire(ctx)
	if err != nil {
		d.log.Error("error booting", zap.Error(err))
		return err
	}

	resource.Release()

	d.log.Debug("done booting")

	return nil
}

// Send passes command to the worker and waits for its result. A
// session that ended is replaced first.
func (d *Dispatcher) Send(ctx context.Context, command string) (channel.Result, error) {
	resource, err := d.acquire(ctx)
	if err != nil {
		return nil, err
	}

	// the channel keeps the order, the session can be shared while
	// the command is in flight
	future := resource.Value().SendCommand(command)
	resource.Release()

	result, err := future.Wait(ctx)
	if errors.Is(err, oneshot.ErrAbandoned) {
		return nil, ErrSessionEnded
	}
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Status describes the current session. Before the first session was
// launched, the state is Idle.
func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	current := d.current
	d.mu.Unlock()

	if current == nil {
		return Status{State: supervisor.Idle}
	}

	return Status{
		State:        current.State(),
		SessionID:    current.SessionID(),
		ArtifactPath: current.ArtifactPath(),
	}
}

// Shutdown stops the dispatcher. It blocks until the session has been
// shut down.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.log.Debug("shutting down")

	done := make(chan struct{})

	go func() {
		d.pool.Close()
		close(done)
	}()

	select {
	case <-done:
		d.log.Debug("shut down")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquire returns the live session, replacing an ended one.
func (d *Dispatcher) acquire(ctx context.Context) (*puddle.Resource[Session], error) {
	for {
		resource, err := d.pool.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("error acquiring session: %w", err)
		}

		if !resource.Value().State().Terminal() {
			return resource, nil
		}

		d.log.Info("session ended, replacing",
			zap.Stringer("state", resource.Value().State()),
		)

		resource.Destroy()
	}
}

// MARK: - Pool

func (d *Dispatcher) createPool(params Params) (*puddle.Pool[Session], error) {
	log := d.log

	constructor := func(ctx context.Context) (Session, error) {
		session, err := params.SessionFactory(supervisor.Params{
			Config:  params.Config.Supervisor,
			Locator: params.Locator,
			Log:     params.Log,
		})
		if err != nil {
			return nil, err
		}

		ready, err := session.Start(ctx, func(status supervisor.ExitStatus) {
			log.Warn("worker exited unexpectedly", zap.Stringer("status", status))
		})
		if err != nil {
			return nil, err
		}

		d.mu.Lock()
		d.current = session
		d.mu.Unlock()

		startErr, err := ready.Wait(ctx)
		if err == nil {
			err = startErr
		}

		if err != nil {
			session.Shutdown()
			return nil, err
		}

		return session, nil
	}

	destructor := func(session Session) {
		status, err := session.Shutdown().Wait(params.Context)
		if err != nil {
			log.Error("error waiting for session to shut down", zap.Error(err))
			return
		}

		log.Debug("session shut down", zap.Stringer("status", status))
	}

	return puddle.NewPool(&puddle.Config[Session]{
		Constructor: constructor,
		Destructor:  destructor,
		MaxSize:     1,
	})
}

func defaultSessionFactory(params supervisor.Params) (Session, error) {
	return supervisor.New(params)
}
