package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jonwraymond/calldispatch/cache"
	"github.com/jonwraymond/calldispatch/observe"
	"github.com/jonwraymond/calldispatch/route"
)

// Pipeline executes calls against a Registry.
//
// Contract:
//   - Concurrency: Execute is safe for concurrent use; stages of one call run
//     sequentially, auth before request.
//   - Errors: stage errors are reported in the Result, never retried. Execute
//     only returns an error for a malformed call.
//   - Cache: lookup and store failures are treated as misses.
type Pipeline struct {
	registry *Registry
	cache    cache.Cache
	policy   cache.Policy
	keyer    cache.Keyer
	mw       *observe.Middleware
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCache enables result caching in c with TTLs from policy.
func WithCache(c cache.Cache, policy cache.Policy) Option {
	return func(p *Pipeline) {
		p.cache = c
		p.policy = policy
	}
}

// WithKeyer replaces the default cache keyer.
func WithKeyer(k cache.Keyer) Option {
	return func(p *Pipeline) {
		if k != nil {
			p.keyer = k
		}
	}
}

// WithMiddleware instruments stages with tracing, metrics and logging.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(p *Pipeline) {
		if mw != nil {
			p.mw = mw
		}
	}
}

// New creates a Pipeline over registry. Without WithCache nothing is cached.
func New(registry *Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry: registry,
		keyer:    cache.NewDefaultKeyer(),
		mw:       observe.NoopMiddleware(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BuildKey returns the cache key of call for params.
func BuildKey(call *route.Call, params map[string]any) string {
	return cache.NewDefaultKeyer().Key(cache.Target{Library: call.Library, Callback: call.Callback}, params)
}

// Execute runs call for rc: the authentication stage when the call has a
// binding, then the request stage, then the merge into a Result.
func (p *Pipeline) Execute(ctx context.Context, call *route.Call, rc *RequestContext) (*Result, error) {
	if call == nil || call.Malformed() {
		return nil, ErrMalformedCall
	}
	if rc == nil {
		rc = NewRequestContext(nil, nil, nil)
	}
	rc.Call = call

	var authOut Outcome
	if call.Auth != nil {
		meta := p.meta(call, call.Auth.Library, call.Auth.Callback, observe.StageAuth)
		err := p.mw.Wrap(func(ctx context.Context, _ observe.CallMeta) error {
			out, err := p.invoke(ctx, call.Auth.Library, call.Auth.Callback, rc)
			authOut = out
			return err
		})(ctx, meta)
		if err != nil {
			// request stage never ran, so there is no data to attach
			return failureResult(err, nil), nil
		}
	}

	var (
		reqOut    Outcome
		fromCache bool
	)
	meta := p.meta(call, call.Library, call.Callback, observe.StageRequest)
	err := p.mw.Wrap(func(ctx context.Context, meta observe.CallMeta) error {
		var err error
		reqOut, fromCache, err = p.request(ctx, call, rc, meta)
		return err
	})(ctx, meta)
	if err != nil {
		return failureResult(err, reqOut.Data()), nil
	}

	return merge(call, authOut, reqOut, fromCache), nil
}

func (p *Pipeline) meta(call *route.Call, library, callback, stage string) observe.CallMeta {
	return observe.CallMeta{
		Library:  library,
		Callback: callback,
		Stage:    stage,
		Method:   call.Method,
		Path:     call.Path,
	}
}

func (p *Pipeline) invoke(ctx context.Context, library, callback string, rc *RequestContext) (Outcome, error) {
	if p.registry == nil {
		return Outcome{}, fmt.Errorf("%w: %s.%s", ErrUnresolved, library, callback)
	}
	fn, err := p.registry.Handler(library, callback)
	if err != nil {
		return Outcome{}, err
	}
	return fn(ctx, rc)
}

// request runs the request stage: cache lookup, handler invocation, cache store.
func (p *Pipeline) request(ctx context.Context, call *route.Call, rc *RequestContext, meta observe.CallMeta) (Outcome, bool, error) {
	caching := p.cache != nil && call.Caching.Enabled
	key := cache.StorageKey(p.keyer.Key(cache.Target{Library: call.Library, Callback: call.Callback}, rc.Params))

	if caching && rc.UseCache() {
		if out, ok := p.lookup(ctx, key, meta); ok {
			return out, true, nil
		}
	}

	out, err := p.invoke(ctx, call.Library, call.Callback, rc)
	if err != nil {
		return out, false, err
	}

	if caching && call.StoresResults() {
		p.store(ctx, key, out, p.policy.EffectiveTTL(call.Caching.TTL), meta)
	}
	return out, false, nil
}

func (p *Pipeline) lookup(ctx context.Context, key string, meta observe.CallMeta) (Outcome, bool) {
	b, ok := p.cache.Get(ctx, key)
	if !ok {
		p.mw.RecordCache(ctx, meta, false)
		return Outcome{}, false
	}

	out, err := DecodeOutcome(b)
	if err != nil {
		p.mw.Logger().WithCall(meta).Warn(ctx, "discarding undecodable cache entry",
			observe.Field{Key: "error", Value: err.Error()})
		p.mw.RecordCache(ctx, meta, false)
		return Outcome{}, false
	}

	p.mw.RecordCache(ctx, meta, true)
	return out, true
}

func (p *Pipeline) store(ctx context.Context, key string, out Outcome, ttl time.Duration, meta observe.CallMeta) {
	if ttl <= 0 {
		return
	}
	b, err := EncodeOutcome(out)
	if err == nil {
		err = p.cache.Set(ctx, key, b, ttl)
	}
	if err != nil {
		p.mw.Logger().WithCall(meta).Warn(ctx, "cache store failed",
			observe.Field{Key: "error", Value: err.Error()})
	}
}

// merge builds the success Result. Auth cookies come first so request
// cookies of the same name win at the client.
func merge(call *route.Call, authOut, reqOut Outcome, fromCache bool) *Result {
	res := &Result{
		Status:    http.StatusOK,
		Success:   true,
		FromCache: fromCache,
	}

	if c := authOut.cookies(); len(c) > 0 {
		res.Cookies = append(res.Cookies, c...)
	}
	if c := reqOut.cookies(); len(c) > 0 {
		res.Cookies = append(res.Cookies, c...)
	}

	if side, ok := reqOut.Side(); ok {
		if instr := side.directive(); instr != nil {
			res.Instruction = instr
			return res
		}
	}

	if call.RawResponse {
		res.Body = reqOut.Data()
	} else {
		res.Body = SuccessBody(reqOut.Data())
	}
	return res
}
