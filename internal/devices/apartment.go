package devices

import "runtime"

// apartment pins a native library's per-thread initialization to one OS
// thread. enter runs on that thread when the apartment starts and leave runs
// on the same thread when it stops, so the pairing holds whichever
// goroutines call start and stop.
type apartment struct {
	stop chan struct{}
	done chan struct{}
}

// startApartment runs enter on a fresh locked thread. If enter fails the
// thread is released and the error returned. If enter reports balance, leave
// runs on that thread at stop.
func startApartment(enter func() (balance bool, err error), leave func()) (*apartment, error) {
	a := &apartment{stop: make(chan struct{}), done: make(chan struct{})}
	ready := make(chan error, 1)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(a.done)

		balance, err := enter()
		ready <- err
		if err != nil {
			return
		}
		<-a.stop
		if balance {
			leave()
		}
	}()

	if err := <-ready; err != nil {
		return nil, err
	}
	return a, nil
}

// close runs leave on the apartment thread and waits for it to exit. A nil
// apartment is a no-op.
func (a *apartment) close() {
	if a == nil {
		return
	}
	close(a.stop)
	<-a.done
}
