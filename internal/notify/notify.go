package notify

import (
	honeybadger "github.com/honeybadger-io/honeybadger-go"
)

// Notifier reports errors to an external tracker.
type Notifier interface {
	Notify(err error, fields map[string]any)
}

type Nop struct{}

func (Nop) Notify(error, map[string]any) {}

type Honeybadger struct{}

// Configure sets up the global Honeybadger client. With an empty key
// reporting stays off and a Nop is returned.
func Configure(apiKey, env string) Notifier {
	if apiKey == "" {
		return Nop{}
	}
	honeybadger.Configure(honeybadger.Configuration{
		APIKey: apiKey,
		Env:    env,
	})
	return Honeybadger{}
}

func (Honeybadger) Notify(err error, fields map[string]any) {
	if err == nil {
		return
	}
	honeybadger.Notify(err, honeybadger.Context(fields), honeybadger.Tags{"collector"})
}

// Flush waits for queued notices to be sent.
func Flush() {
	honeybadger.Flush()
}
