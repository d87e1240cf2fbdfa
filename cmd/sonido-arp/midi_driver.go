//go:build !headless

package main

// rtmidi registers itself as the MIDI driver for -midi-out
import _ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
