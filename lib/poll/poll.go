// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

// Package poll repeats a check at a fixed interval until it succeeds
// or a deadline passes.
package poll

import (
	"errors"
	"time"
)

// ErrDeadline is returned by Until when the deadline passes before
// the check reports done.
var ErrDeadline = errors.New("deadline passed")

// Poller calls a check function at a fixed interval. The zero value
// polls continuously using the real clock.
type Poller struct {
	Interval time.Duration

	// Now and Sleep default to time.Now and time.Sleep.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// Until calls check until it returns true or an error, sleeping
// Interval between calls. If the deadline passes first, Until returns
// ErrDeadline. check is not called at all if the deadline has already
// passed.
func (p Poller) Until(deadline time.Time, check func() (done bool, err error)) error {
	for p.now().Before(deadline) {
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		p.sleep(p.Interval)
	}
	return ErrDeadline
}

// For is like Until, with the deadline set timeout from now.
func (p Poller) For(timeout time.Duration, check func() (done bool, err error)) error {
	return p.Until(p.now().Add(timeout), check)
}

func (p Poller) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p Poller) sleep(d time.Duration) {
	if p.Sleep == nil {
		time.Sleep(d)
	} else {
		p.Sleep(d)
	}
}
