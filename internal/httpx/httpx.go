// Package httpx builds the retryablehttp clients used for every upstream call.
package httpx

import (
	"io"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// MaxBody caps how much of an upstream response is read into memory.
const MaxBody = 4 << 20

var ErrPayloadTooLarge = eris.New("payload too large")

type Options struct {
	// RetryMax is the number of retries after the first attempt; 0 disables retries.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
	Logger       *zap.Logger
}

func New(o Options) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = max(o.RetryMax, 0)
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 900 * time.Millisecond
	if o.RetryWaitMin > 0 {
		rc.RetryWaitMin = o.RetryWaitMin
	}
	if o.RetryWaitMax > 0 {
		rc.RetryWaitMax = o.RetryWaitMax
	}
	rc.HTTPClient.Timeout = 6 * time.Second
	if o.Timeout > 0 {
		rc.HTTPClient.Timeout = o.Timeout
	}
	log := o.Logger
	if log == nil {
		log = zap.L()
	}
	rc.Logger = leveled{log.Named("http")}
	// Hand the last response back to the caller instead of a generic
	// "giving up" error so upstream status and body can be surfaced.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return rc
}

// ReadAllLimit reads at most limit bytes from r.
func ReadAllLimit(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, eris.Wrap(err, "read body")
	}
	if int64(len(b)) > limit {
		return nil, ErrPayloadTooLarge
	}
	return b, nil
}

// leveled adapts zap to retryablehttp.LeveledLogger.
type leveled struct{ l *zap.Logger }

func (z leveled) Error(msg string, kv ...any) { z.l.Sugar().Errorw(msg, kv...) }
func (z leveled) Info(msg string, kv ...any)  { z.l.Sugar().Debugw(msg, kv...) }
func (z leveled) Debug(msg string, kv ...any) { z.l.Sugar().Debugw(msg, kv...) }
func (z leveled) Warn(msg string, kv ...any)  { z.l.Sugar().Warnw(msg, kv...) }
