//go:build linux

// License: Apache-2.0

package affinity

import "golang.org/x/sys/unix"

// pinCurrentThread restricts the calling thread's CPU mask to a single core
// via sched_setaffinity, matching the mask-based model spec §6
// "threadAffinity" describes.
func pinCurrentThread(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	return unix.SchedSetaffinity(0, &set)
}
