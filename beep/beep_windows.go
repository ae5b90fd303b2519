//go:build windows

package beep

// No cue playback on Windows.

func Init()       {}
func PlayStart()  {}
func PlaySubmit() {}
func PlayError()  {}
func PlayNudge()  {}
