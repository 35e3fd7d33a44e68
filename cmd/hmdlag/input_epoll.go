//go:build linux

package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// eventsPerRead bounds one read(2); a full gamepad report is well under it.
const eventsPerRead = 64

// startInputReaders multiplexes every device on one epoll goroutine. An
// eventfd registered next to the devices wakes it when done is closed.
func startInputReaders(files []*os.File, reports chan<- []inputEvent, readErr chan<- error, done <-chan struct{}) {
	if len(files) == 0 {
		readErr <- errors.New("no input devices provided")
		return
	}

	wake, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		readErr <- fmt.Errorf("eventfd: %w", err)
		return
	}

	exited := make(chan struct{})
	wakerDone := make(chan struct{})
	go func() {
		defer close(wakerDone)
		select {
		case <-done:
			var one [8]byte
			binary.NativeEndian.PutUint64(one[:], 1)
			_, _ = unix.Write(wake, one[:])
		case <-exited:
		}
	}()

	go func() {
		defer func() {
			close(exited)
			<-wakerDone
			_ = unix.Close(wake)
		}()
		if err := pollDevices(files, wake, reports, done); err != nil {
			readErr <- err
		}
	}()
}

// pollDevices returns nil once wake fires and an error when any device fails.
func pollDevices(files []*os.File, wake int, reports chan<- []inputEvent, done <-chan struct{}) error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	defer unix.Close(epfd)

	type device struct {
		f   *os.File
		asm reportAssembler
	}
	devices := make(map[int32]*device, len(files))

	watch := func(fd int) error {
		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		return unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev)
	}
	if err := watch(wake); err != nil {
		return fmt.Errorf("epoll_ctl add eventfd: %w", err)
	}
	for _, f := range files {
		fd := int(f.Fd())
		if err := watch(fd); err != nil {
			return fmt.Errorf("epoll_ctl add %s: %w", f.Name(), err)
		}
		devices[int32(fd)] = &device{f: f}
	}

	ready := make([]unix.EpollEvent, len(files)+1)
	buf := make([]byte, inputEventSize*eventsPerRead)

	for {
		n, err := unix.EpollWait(epfd, ready, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for _, r := range ready[:n] {
			if int(r.Fd) == wake {
				return nil
			}
			dev := devices[r.Fd]
			if dev == nil {
				continue
			}
			if r.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				return fmt.Errorf("input device %s went away", dev.f.Name())
			}

			nb, err := dev.f.Read(buf)
			if err != nil {
				return fmt.Errorf("read from %s: %w", dev.f.Name(), err)
			}
			evs, err := decodeInputEvents(buf[:nb])
			if err != nil {
				return fmt.Errorf("decode events from %s: %w", dev.f.Name(), err)
			}
			for _, ev := range evs {
				report, ok := dev.asm.add(ev)
				if !ok {
					continue
				}
				if !sendReport(reports, report, done) {
					return nil
				}
			}
		}
	}
}
