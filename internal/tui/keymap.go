package tui

// Key bindings handled in handleKey.
const (
	KeyQuit      = "q"
	KeyQuitUpper = "Q"
	KeyCtrlC     = "ctrl+c"
	KeyOpen      = "o"
	KeyEnter     = "enter"
	KeyMute      = "m"
	KeyEnd       = "esc"
)
