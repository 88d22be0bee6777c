package presenter

// Loop drives the overlay presenter and reschedules itself on the Tk event
// loop. Done is polled each tick; when it reports true the loop calls Stop
// instead of Schedule. The zero value is usable (methods are nil-safe).
//
// Hidden is read every tick; Show is called only when its answer changes,
// and nothing is drawn while hidden. Sync runs first on every tick and lets
// other goroutines hand state to the Tk thread.
type Loop struct {
	Overlay  *OverlayPresenter
	Done     func() bool
	Stop     func()
	Schedule func()
	Hidden   func() bool
	Show     func(visible bool)
	Sync     func()

	hidden bool
}

func NewLoop(overlay *OverlayPresenter, done func() bool, stop func(), schedule func()) *Loop {
	return &Loop{Overlay: overlay, Done: done, Stop: stop, Schedule: schedule}
}

func (l *Loop) Tick() {
	if l == nil {
		return
	}
	if l.Done != nil && l.Done() {
		if l.Stop != nil {
			l.Stop()
		}
		return
	}
	if l.Sync != nil {
		l.Sync()
	}
	if l.Hidden != nil {
		if h := l.Hidden(); h != l.hidden {
			l.hidden = h
			if l.Show != nil {
				l.Show(!h)
			}
		}
	}
	if l.Overlay != nil && !l.hidden {
		l.Overlay.Tick()
	}
	if l.Schedule != nil {
		l.Schedule()
	}
}
