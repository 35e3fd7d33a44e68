package main

import "time"

// Linux input event types and codes (from <linux/input-event-codes.h>)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_ABS = 0x03

	SYN_REPORT  = 0
	SYN_DROPPED = 3

	KEY_ESC = 1
	KEY_R   = 19

	BTN_A      = 0x130
	BTN_B      = 0x131
	BTN_X      = 0x133
	BTN_Y      = 0x134
	BTN_TL     = 0x136
	BTN_TR     = 0x137
	BTN_SELECT = 0x13a
	BTN_START  = 0x13b
	BTN_MODE   = 0x13c
	BTN_THUMBL = 0x13d
	BTN_THUMBR = 0x13e

	ABS_X  = 0x00
	ABS_Z  = 0x02
	ABS_RX = 0x03
	ABS_RZ = 0x05
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

const (
	defaultFrameRate  = 90
	defaultStickMax   = 32767
	defaultTriggerMax = 1023

	defaultSocketPath = "/tmp/hmdlag.sock"
	defaultHTTPPort   = 3011
	defaultWSPath     = "/ws/state"

	maxFrameRate = 1000

	defaultTraceWindow = 4096
)

// wsStateCoalesceWindow bounds how often state_changed is sent while a dial
// is held (IOD and cube scale change every frame).
const wsStateCoalesceWindow = 50 * time.Millisecond
