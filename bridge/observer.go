package bridge

// Observer receives a snapshot after every state change. Observe runs while
// the gate is held, so it must be quick and must not call back into the
// bridge.
type Observer interface {
	Observe(s Snapshot)
}

type ObserverFunc func(s Snapshot)

func (f ObserverFunc) Observe(s Snapshot) {
	f(s)
}
