package runner

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/moler-go/moler/core/molererr"
)

// resourceCeilingMargin is how close to the soft RLIMIT_NOFILE an
// admission is refused.
const resourceCeilingMargin = 10

// checkResourceCeiling probes the process's open file-descriptor count
// against its soft RLIMIT_NOFILE and refuses admission within
// resourceCeilingMargin of the limit. On platforms where /proc/self/fd is
// unavailable it degrades to a no-op rather than ever raising.
func checkResourceCeiling() error {
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		return nil
	}

	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return nil
	}

	open := uint64(len(entries))
	if rlim.Cur > resourceCeilingMargin && open >= rlim.Cur-resourceCeilingMargin {
		return molererr.Core(
			fmt.Sprintf("runner: refusing admission, %d open file descriptors within %d of soft limit %d", open, resourceCeilingMargin, rlim.Cur),
			nil,
		)
	}
	return nil
}
