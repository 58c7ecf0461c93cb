//go:build linux

// License: Apache-2.0

package engine

import "golang.org/x/sys/unix"

func gettid() (int, bool) { return unix.Gettid(), true }
