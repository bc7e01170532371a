// Package process supervises the display renderer child process.
//
// The agent itself never touches the screen; a separate renderer
// binary (browser shell, media player, ...) does, and this package
// keeps it alive:
//
//   - Start/stop with graceful SIGTERM-then-SIGKILL shutdown of the
//     renderer's whole process group
//   - Automatic restart on unexpected exit with configurable delay
//     and attempt limit
//   - On-demand Restart for the remote restartApp command
//   - Log capture from renderer stdout/stderr
//
// Display instructions travel over the renderer's stdin as one JSON
// line per instruction; Relay adapts that pipe to the command
// dispatcher's Display interface.
//
// Example usage:
//
//	mgr := process.NewManager(process.Config{
//	    Name:             "renderer",
//	    Binary:           "/usr/bin/kiosk-renderer",
//	    Args:             []string{"--fullscreen"},
//	    RestartOnFailure: true,
//	    RestartDelay:     5 * time.Second,
//	})
//
//	if err := mgr.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Stop()
//
//	relay := process.NewRelay(mgr)
//	relay.Send("loadUrl", map[string]any{"url": "https://screen.example/a"})
package process
