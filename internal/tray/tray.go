// Package tray provides the system tray menu for signn.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray is the system tray menu. Recognition starts switched off.
type Tray struct {
	onToggle  func(enabled bool)
	onClear   func()
	onConsole func()
	onQuit    func()
	enabled   bool
	last      string
	hasLast   bool
	mu        sync.RWMutex

	// Menu items stored for later updates
	menuToggle      *systray.MenuItem
	menuLastGesture *systray.MenuItem
}

// New creates a Tray with recognition off.
func New() *Tray {
	return &Tray{}
}

// OnToggle sets the callback run when the On/Off item is clicked.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnClear sets the callback run when "Clear Console" is clicked.
func (t *Tray) OnClear(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClear = fn
}

// OnConsole sets the callback run when "Open Console..." is clicked.
func (t *Tray) OnConsole(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onConsole = fn
}

// OnQuit sets the callback run when "Quit" is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu, e.g. on a signal.
func (t *Tray) Quit() {
	systray.Quit()
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● On"
	}
	return "○ Off"
}

func lastGestureTitle(name string, ok bool) string {
	if !ok || name == "" {
		return "Last: none"
	}
	return "Last: " + name
}

func (t *Tray) onReady() {
	systray.SetTitle("signn")
	systray.SetTooltip("signn sign language recognition")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Start or stop recognition")
	systray.AddSeparator()

	t.menuLastGesture = systray.AddMenuItem(lastGestureTitle(t.last, t.hasLast), "Last recognized gesture")
	t.menuLastGesture.Disable()
	t.mu.Unlock()

	menuClear := systray.AddMenuItem("Clear Console", "Clear the transcript")
	menuConsole := systray.AddMenuItem("Open Console...", "Open the console in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit signn")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuClear.ClickedCh:
				t.call(func() func() { return t.onClear })
			case <-menuConsole.ClickedCh:
				t.call(func() func() { return t.onConsole })
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle flips the state and reports it to the callback.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// call runs the callback returned by get, read under the lock.
func (t *Tray) call(get func() func()) {
	t.mu.RLock()
	callback := get()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.call(func() func() { return t.onQuit })
	systray.Quit()
}

// SetEnabled reflects a state change made elsewhere, without running the
// toggle callback.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// SetLastGesture updates the last gesture item. ok=false shows "none".
func (t *Tray) SetLastGesture(name string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last, t.hasLast = name, ok
	if t.menuLastGesture != nil {
		t.menuLastGesture.SetTitle(lastGestureTitle(name, ok))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// LastGesture returns the label shown in the menu.
func (t *Tray) LastGesture() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last, t.hasLast
}
