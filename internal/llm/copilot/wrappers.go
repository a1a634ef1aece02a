package copilot

import (
	"context"

	sdk "github.com/github/copilot-sdk/go"
)

//go:generate mockgen -source wrappers.go -destination mock_wrappers_test.go -package copilot

// copilotSession is just an interface over [*sdk.Session]
type copilotSession interface {
	// On maps to [sdk.Session.On]
	On(handler sdk.SessionEventHandler) func()

	// SendAndWait maps to [sdk.Session.SendAndWait]
	SendAndWait(ctx context.Context, options sdk.MessageOptions) (*sdk.SessionEvent, error)

	// SessionID returns [sdk.Session.SessionID]
	SessionID() string
}

// copilotClient is just an interface over [*sdk.Client]
type copilotClient interface {
	// CreateSession maps to [sdk.Client.CreateSession]
	CreateSession(ctx context.Context, config *sdk.SessionConfig) (copilotSession, error)

	// Start maps to [sdk.Client.Start]
	Start(ctx context.Context) error

	// Stop maps to [sdk.Client.Stop]
	Stop() error
}

func newCopilotClient(clientOptions *sdk.ClientOptions) copilotClient {
	return &copilotClientWrapper{
		inner: sdk.NewClient(clientOptions),
	}
}

type copilotClientWrapper struct {
	inner *sdk.Client
}

func (w *copilotClientWrapper) CreateSession(ctx context.Context, config *sdk.SessionConfig) (copilotSession, error) {
	sess, err := w.inner.CreateSession(ctx, config)

	if err != nil {
		return nil, err
	}

	return &copilotSessionWrapper{inner: sess}, nil
}

func (w *copilotClientWrapper) Start(ctx context.Context) error {
	return w.inner.Start(ctx)
}

func (w *copilotClientWrapper) Stop() error {
	return w.inner.Stop()
}

// copilotSessionWrapper is a light wrapper that forwards all calls to
// [sdk.Session] and only has to exist because [sdk.Session.SessionID] is a
// field, so we can't represent it in an interface.
type copilotSessionWrapper struct {
	inner *sdk.Session
}

func (w *copilotSessionWrapper) On(handler sdk.SessionEventHandler) func() {
	return w.inner.On(handler)
}

func (w *copilotSessionWrapper) SendAndWait(ctx context.Context, options sdk.MessageOptions) (*sdk.SessionEvent, error) {
	return w.inner.SendAndWait(ctx, options)
}

func (w *copilotSessionWrapper) SessionID() string {
	return w.inner.SessionID
}
