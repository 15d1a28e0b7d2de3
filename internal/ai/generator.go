package ai

import (
	"context"
	"errors"
	"time"

	"social-autoreply-platform/internal/logger"
	"social-autoreply-platform/internal/telemetry"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

// Completer sends one prompt to a named model and returns its text.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, model, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, model, prompt string) (string, error) {
	return f(ctx, model, prompt)
}

type GeneratorConfig struct {
	BusinessName  string
	FallbackReply string
	// Models are tried in order; only the first two are used.
	Models  []string
	Timeout time.Duration
	RPM     int
}

// Reply is the outcome of one generation. Text is always usable.
type Reply struct {
	Text     string
	Model    string
	Fallback bool
	Err      error
}

// ReplyGenerator turns a comment and its post context into a one-sentence
// reply. It never returns an error: every failure yields the fallback text.
type ReplyGenerator struct {
	completer   Completer
	cfg         GeneratorConfig
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	metrics     *telemetry.Metrics
}

func NewReplyGenerator(completer Completer, cfg GeneratorConfig, metrics *telemetry.Metrics) *ReplyGenerator {
	if len(cfg.Models) > 2 {
		cfg.Models = cfg.Models[:2]
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ReplyGeneration",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		// A missing key is local misconfiguration, not a remote failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrMissingAPIKey)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.RecordCircuitBreakerState(name, to.String())
		},
	})

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RPM > 0 {
		burst := cfg.RPM / 10
		if burst < 1 {
			burst = 1
		}
		// RPM limit with some buffer
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RPM)*0.9/60.0), burst)
	}

	return &ReplyGenerator{
		completer:   completer,
		cfg:         cfg,
		breaker:     breaker,
		rateLimiter: limiter,
		metrics:     metrics,
	}
}

func (g *ReplyGenerator) Generate(ctx context.Context, comment, contextText string) Reply {
	ctx, span := otel.Tracer("reply-generator").Start(ctx, "autoreply.generate")
	defer span.End()

	start := time.Now()
	reply := g.generate(ctx, comment, contextText)

	span.SetAttributes(
		attribute.String("generation.model", reply.Model),
		attribute.Bool("generation.fallback", reply.Fallback),
	)
	if reply.Err != nil {
		span.RecordError(reply.Err)
		span.SetStatus(codes.Error, reply.Err.Error())
	}
	g.metrics.RecordGeneration(reply.Model, time.Since(start).Seconds(), reply.Fallback)

	return reply
}

func (g *ReplyGenerator) generate(ctx context.Context, comment, contextText string) Reply {
	if g.completer == nil || len(g.cfg.Models) == 0 {
		return g.fallback(ErrMissingAPIKey)
	}

	prompt := BuildReplyPrompt(g.cfg.BusinessName, comment, contextText)

	var lastErr error
	for i, model := range g.cfg.Models {
		text, err := g.attempt(ctx, model, prompt)
		if err == nil {
			return Reply{Text: text, Model: model}
		}
		lastErr = err

		logger.Warn("Reply generation attempt failed", "model", model, "attempt", i+1, "error", err)

		// Neither a second model nor a second wait would change these.
		if errors.Is(err, ErrMissingAPIKey) ||
			errors.Is(err, gobreaker.ErrOpenState) ||
			errors.Is(err, gobreaker.ErrTooManyRequests) ||
			ctx.Err() != nil {
			break
		}
	}

	return g.fallback(lastErr)
}

func (g *ReplyGenerator) attempt(ctx context.Context, model, prompt string) (string, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	if err := g.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.completer.Complete(ctx, model, prompt)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (g *ReplyGenerator) fallback(err error) Reply {
	return Reply{Text: g.cfg.FallbackReply, Fallback: true, Err: err}
}

// BreakerState reports the circuit breaker state, for health output.
func (g *ReplyGenerator) BreakerState() string {
	return g.breaker.State().String()
}
