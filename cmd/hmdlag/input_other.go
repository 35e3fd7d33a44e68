//go:build !linux

package main

import "os"

// startInputReaders falls back to one blocking reader per device. Readers
// stuck in read(2) exit when runGamepad closes their file.
func startInputReaders(files []*os.File, reports chan<- []inputEvent, readErr chan<- error, done <-chan struct{}) {
	for _, f := range files {
		go readInputEvents(f, reports, readErr, done)
	}
}
