package reactor

// kernelOptions holds configuration applied once at NewKernel time,
// following eventloop's LoopOption/WithX functional-option idiom
// (eventloop/options.go): options are immutable after construction.
type kernelOptions struct {
	maxEntities    int
	payloadWidth   int
	inboxDepth     int
	scratchpadSize int
	clock          Clock
	maxTopics      int
	maxSubsPerTopic int
	maxParams      int
	maxACLRules    int
	traceCapacity  int
	maxRoutes      int
}

// KernelOption configures a Kernel at construction time.
type KernelOption interface {
	applyKernel(*kernelOptions)
}

type kernelOptionFunc func(*kernelOptions)

func (f kernelOptionFunc) applyKernel(o *kernelOptions) { f(o) }

// WithMaxEntities sets the compile-time entity-table size N (entities are
// addressed 1..N).
func WithMaxEntities(n int) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.maxEntities = n })
}

// WithPayloadWidth sets the fixed signal payload width in bytes.
func WithPayloadWidth(n int) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.payloadWidth = n })
}

// WithInboxDepth sets the default per-entity inbox slot count.
func WithInboxDepth(n int) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.inboxDepth = n })
}

// WithScratchpadSize sets the default flow scratchpad byte width.
func WithScratchpadSize(n int) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.scratchpadSize = n })
}

// WithClock overrides the Clock implementation (default: SystemClock).
func WithClock(c Clock) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.clock = c })
}

// WithMaxTopics sets the bus's topic table capacity.
func WithMaxTopics(n int) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.maxTopics = n })
}

// WithMaxSubscribersPerTopic sets each topic's subscriber-list capacity.
func WithMaxSubscribersPerTopic(n int) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.maxSubsPerTopic = n })
}

// WithMaxParams sets the parameter store's capacity.
func WithMaxParams(n int) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.maxParams = n })
}

// WithMaxACLRules sets the per-entity ACL rule table capacity.
func WithMaxACLRules(n int) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.maxACLRules = n })
}

// WithTraceCapacity sets the trace ring's record capacity.
func WithTraceCapacity(n int) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.traceCapacity = n })
}

// WithMaxRoutes sets the wormhole route table capacity.
func WithMaxRoutes(n int) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.maxRoutes = n })
}

func resolveKernelOptions(opts []KernelOption) *kernelOptions {
	cfg := &kernelOptions{
		maxEntities:     64,
		payloadWidth:    DefaultPayloadWidth,
		inboxDepth:      DefaultInboxDepth,
		scratchpadSize:  64,
		maxTopics:       32,
		maxSubsPerTopic: 8,
		maxParams:       64,
		maxACLRules:     16,
		traceCapacity:   256,
		maxRoutes:       8,
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.applyKernel(cfg)
	}
	if cfg.clock == nil {
		cfg.clock = NewSystemClock()
	}
	return cfg
}
