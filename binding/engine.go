package qbind

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
	"weak"
)

const (
	objectCollectInterval = 5 * time.Second
)

// Engine owns the notification bus and the registry of bindable objects,
// and creates bindings, DataContext nodes and cursors.
//
// An Engine is not safe for concurrent use. All calls, including Changed
// on objects and mutations of bound data, must happen on one logical
// thread. Other goroutines hand work to that thread with Post; see Process
// and RunLockable.
type Engine struct {
	// Logger receives warnings about listener failures and dropped
	// writebacks. NewEngine sets a text logger at Options.LogLevel, which
	// may be replaced. A nil Logger discards everything.
	Logger *slog.Logger

	// ErrorHandler, if set, is called with every listener failure in
	// addition to logging it.
	ErrorHandler func(error)

	opts    Options
	bus     *Bus
	objects map[string]weak.Pointer[objectImpl]

	processSignal  chan struct{}
	queue          chan func()
	lastCollection time.Time
}

// NewEngine creates an engine. Unset options take their defaults.
func NewEngine(opts Options) *Engine {
	opts = opts.withDefaults()
	level, err := parseLevel(opts.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}

	e := &Engine{
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})).
			With("component", "qbind"),
		opts:           opts,
		objects:        make(map[string]weak.Pointer[objectImpl]),
		processSignal:  make(chan struct{}, 1),
		queue:          make(chan func(), opts.QueueSize),
		lastCollection: time.Now(),
	}
	e.bus = newBus(e)
	return e
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Bus returns the engine's notification bus.
func (e *Engine) Bus() *Bus {
	return e.bus
}

func (e *Engine) warn(fmsg string, p ...interface{}) {
	if e.Logger != nil {
		e.Logger.Warn(fmt.Sprintf(fmsg, p...))
	}
}

func (e *Engine) debug(msg string, args ...interface{}) {
	if e.Logger != nil {
		e.Logger.Debug(msg, args...)
	}
}

func (e *Engine) reportError(err error) {
	if e.Logger != nil {
		e.Logger.Warn("listener failed", "error", err)
	}
	if e.ErrorHandler != nil {
		e.ErrorHandler(err)
	}
}

// Notify announces a change of property on obj; see Bus.Notify. Sources
// that do not embed Object call this from their setters.
func (e *Engine) Notify(obj interface{}, property string) error {
	return e.bus.Notify(obj, property)
}

// NotifyCollection announces a structural change of coll; see
// Bus.NotifyCollection.
func (e *Engine) NotifyCollection(coll interface{}, change CollectionChange) error {
	return e.bus.NotifyCollection(coll, change)
}

// Subscribe is a shortcut for Bus().Subscribe.
func (e *Engine) Subscribe(obj interface{}, property string, listener Listener) *Subscription {
	return e.bus.Subscribe(obj, property, listener)
}

// SubscribeCollection is a shortcut for Bus().SubscribeCollection.
func (e *Engine) SubscribeCollection(coll interface{}, listener Listener) *Subscription {
	return e.bus.SubscribeCollection(coll, listener)
}

func (e *Engine) addObject(impl *objectImpl) {
	if existing, ok := e.objects[impl.id]; ok {
		if p := existing.Value(); p != nil && p != impl {
			e.warn("registered different object with duplicate identifier %s", impl.id)
			return
		}
	}
	e.objects[impl.id] = weak.Make(impl)
}

// Remove registry entries and subscriptions of objects that have been
// garbage collected. Neither keeps an object alive; this only bounds their
// size and releases the listeners, which may hold bindings.
func (e *Engine) collectObjects() {
	for id, p := range e.objects {
		if p.Value() == nil {
			delete(e.objects, id)
			e.bus.drop(objectID(id))
			e.debug("collected object", "identifier", id)
		}
	}
	e.lastCollection = time.Now()
}

// Object returns a registered, still live object by its identifier.
func (e *Engine) Object(id string) Object {
	p, ok := e.objects[id]
	if !ok {
		return nil
	}
	impl := p.Value()
	if impl == nil {
		return nil
	}
	o, _ := impl.object.(Object)
	return o
}

// InitObject explicitly initializes an Object, assigning an identifier and
// attaching it to this engine.
//
// It's not necessary to InitObject objects that are only reached through
// binding paths; they are initialized as they are encountered. InitObject
// guarantees that Changed can be called before that happens.
func (e *Engine) InitObject(obj interface{}) error {
	_, err := initObject(obj, e)
	return err
}

// InitObjectId is equivalent to InitObject, but takes an identifier for
// the object. Nothing is changed if the object has already been
// initialized.
func (e *Engine) InitObjectId(obj interface{}, id string) error {
	if p, exists := e.objects[id]; exists {
		if impl := p.Value(); impl != nil && impl != objectImplFor(obj) {
			return fmt.Errorf("qbind: object id %s in use", id)
		}
	}
	_, err := initObjectId(obj, e, id)
	return err
}

// Post queues fn to run on the engine's thread during Process. Post is
// safe to call from any goroutine; it blocks while the queue is full.
func (e *Engine) Post(fn func()) {
	e.queue <- fn
	select {
	case e.processSignal <- struct{}{}:
	default:
	}
}

// ProcessSignal returns a channel which is signalled whenever posted work
// is waiting. The caller must call Process after reading from it.
func (e *Engine) ProcessSignal() <-chan struct{} {
	return e.processSignal
}

// Process runs all queued functions, but does not block to wait for new
// ones. Bound data is never touched by the engine except during calls to
// Process or other engine methods, so applications that control calls to
// Process avoid concurrency issues with their data.
//
// A panic in a posted function is recovered and reported; Process carries
// on with the rest of the queue.
func (e *Engine) Process() {
	for {
		select {
		case fn := <-e.queue:
			e.runPosted(fn)
		default:
			if time.Since(e.lastCollection) >= objectCollectInterval {
				e.collectObjects()
			}
			return
		}
	}
}

func (e *Engine) runPosted(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.reportError(&ListenerError{Op: "posted function", Recovered: r, StackTrace: captureStack()})
		}
	}()
	fn()
}

// Run processes posted work until ctx is done. Be aware that when using
// Run, bound data may be touched by posted functions at any time. For
// better control over concurrency, see Process and RunLockable.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			e.Process()
			return ctx.Err()
		case <-e.processSignal:
			e.Process()
		}
	}
}
