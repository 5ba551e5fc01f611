package recorder

import "sync/atomic"

// Observer receives capture progress. Every callback runs on the
// controller's background goroutine, never on the caller's.
type Observer interface {
	// OnStart is called once per session before the first read.
	OnStart()
	// OnRecord is called after each successful read with the bytes just
	// written to the raw sink. p is reused and only valid during the call.
	OnRecord(p []byte)
	// OnStop is the last callback of a session.
	OnStop()
	// OnError reports a sink failure that ended the capture.
	OnError(message string)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Start  func()
	Record func(p []byte)
	Stop   func()
	Error  func(message string)
}

func (f ObserverFuncs) OnStart() {
	if f.Start != nil {
		f.Start()
	}
}

func (f ObserverFuncs) OnRecord(p []byte) {
	if f.Record != nil {
		f.Record(p)
	}
}

func (f ObserverFuncs) OnStop() {
	if f.Stop != nil {
		f.Stop()
	}
}

func (f ObserverFuncs) OnError(message string) {
	if f.Error != nil {
		f.Error(message)
	}
}

type noopObserver struct{}

func (noopObserver) OnStart()        {}
func (noopObserver) OnRecord([]byte) {}
func (noopObserver) OnStop()         {}
func (noopObserver) OnError(string)  {}

// observerSlot holds the current registration. The worker loads it before
// every callback so a replacement applies from the next one.
type observerSlot struct {
	p atomic.Pointer[observerBox]
}

type observerBox struct {
	o Observer
}

func (s *observerSlot) set(o Observer) {
	if o == nil {
		s.p.Store(nil)
		return
	}
	s.p.Store(&observerBox{o: o})
}

func (s *observerSlot) get() Observer {
	if b := s.p.Load(); b != nil {
		return b.o
	}
	return noopObserver{}
}
