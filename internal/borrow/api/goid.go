// Copyright 2025 The borrowsan Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Goroutine ID extraction.
//
// The runtime keeps one borrow monitor per goroutine, keyed by the
// goroutine ID. Go does not expose this ID, so it is parsed out of
// runtime.Stack output. This is the slow universal path (~1500ns); it
// runs once per tracked event, which is acceptable for a sanitizer
// runtime where every event already does map and tree work.
//
// Stack trace format: "goroutine 123 [running]:\n..."

package api

import "runtime"

// getGoroutineID returns the current goroutine ID, or 0 if the stack
// header cannot be parsed.
func getGoroutineID() int64 {
	// Only the first line is needed. 64 bytes always covers
	// "goroutine <id> [running]:".
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseGID(buf[:n])
}

// parseGID extracts the numeric ID from stack trace bytes without
// string conversion or regex.
func parseGID(buf []byte) int64 {
	const prefix = "goroutine "
	const prefixLen = 10 // len("goroutine ")

	if len(buf) < prefixLen || string(buf[:prefixLen]) != prefix {
		return 0
	}

	var gid int64
	for i := prefixLen; i < len(buf); i++ {
		c := buf[i]
		if c < '0' || c > '9' {
			// Non-digit terminates the ID (space before "[running]").
			break
		}
		gid = gid*10 + int64(c-'0')
	}
	return gid
}
