// Package tray provides a system tray menu for driving the camera.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/facecam/internal/app"
	"github.com/ayusman/facecam/internal/log"
)

// Camera is the subset of the controller the tray drives.
type Camera interface {
	StartSession() error
	StopSession() error
	FlipCamera() error
	TakePhoto() error
	ToggleRecording() error
	State() app.State
	Subscribe() (<-chan app.State, func())
}

// Tray represents the system tray application.
type Tray struct {
	camera     Camera
	onSettings func()
	onQuit     func()
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuSession   *systray.MenuItem
	menuFlip      *systray.MenuItem
	menuPhoto     *systray.MenuItem
	menuRecording *systray.MenuItem
	menuStatus    *systray.MenuItem
}

// New creates a Tray driving camera.
func New(camera Camera) *Tray {
	return &Tray{camera: camera}
}

// OnSettings sets the callback function to be called when the open UI menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
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

// Quit asks the tray loop to exit.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Facecam")
	systray.SetTooltip("Facecam")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem("Camera: -", "Active camera")
	t.menuStatus.Disable()
	systray.AddSeparator()

	t.menuSession = systray.AddMenuItem("Start Session", "Start or stop frame capture")
	t.menuFlip = systray.AddMenuItem("Flip Camera", "Switch between front and back cameras")
	t.menuPhoto = systray.AddMenuItem("Take Photo", "Capture a still image")
	t.menuRecording = systray.AddMenuItem("Start Recording", "Start or stop recording")
	systray.AddSeparator()
	t.mu.Unlock()

	menuSettings := systray.AddMenuItem("Open UI...", "Open the web interface")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Facecam")

	states, cancel := t.camera.Subscribe()
	t.apply(t.camera.State())

	go func() {
		for st := range states {
			t.apply(st)
		}
	}()

	go func() {
		defer cancel()
		for {
			select {
			case <-t.menuSession.ClickedCh:
				if t.camera.State().Running {
					t.run("stop session", t.camera.StopSession)
				} else {
					t.run("start session", t.camera.StartSession)
				}
			case <-t.menuFlip.ClickedCh:
				t.run("flip camera", t.camera.FlipCamera)
			case <-t.menuPhoto.ClickedCh:
				t.run("take photo", t.camera.TakePhoto)
			case <-t.menuRecording.ClickedCh:
				t.run("toggle recording", t.camera.ToggleRecording)
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) run(what string, cmd func() error) {
	if err := cmd(); err != nil {
		log.Warn("tray command failed", "command", what, "error", err)
	}
}

// apply updates the menu to reflect st.
func (t *Tray) apply(st app.State) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuStatus == nil {
		return
	}

	t.menuStatus.SetTitle(statusTitle(st))
	t.menuSession.SetTitle(sessionTitle(st))
	t.menuRecording.SetTitle(recordingTitle(st))

	if st.Recording {
		t.menuFlip.Disable()
	} else {
		t.menuFlip.Enable()
	}
	if st.Running {
		t.menuPhoto.Enable()
		t.menuRecording.Enable()
	} else {
		t.menuPhoto.Disable()
		t.menuRecording.Disable()
	}
}

func statusTitle(st app.State) string {
	title := "Camera: " + st.Position.String()
	switch {
	case st.LastError != "":
		title += " (error)"
	case !st.Configured:
		title += " (switching)"
	case st.Recording:
		title += " ● REC"
	}
	return title
}

func sessionTitle(st app.State) string {
	if st.Running {
		return "Stop Session"
	}
	return "Start Session"
}

func recordingTitle(st app.State) string {
	if st.Recording {
		return "Stop Recording"
	}
	return "Start Recording"
}

// handleSettings handles the open UI menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}
