package membership

import (
	"time"

	"ats-scanner/internal/logger"

	"go.uber.org/zap"
)

type options struct {
	now       func() time.Time
	logger    *zap.Logger
	returnURL string
}

type Option func(*options)

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.logger = logger.OrNop(log) }
}

// WithReturnURL is where the billing portal sends the user back to.
func WithReturnURL(url string) Option {
	return func(o *options) { o.returnURL = url }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) clock() time.Time {
	return o.now().UTC()
}
