package osutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/pbnjay/memory"
)

// cgroup v1 reports this when no limit is configured
const unrestrictedMemoryLimit = 9223372036854771712

var cgroupLimitFiles = []string{
	"/sys/fs/cgroup/memory.max",                   // v2
	"/sys/fs/cgroup/memory/memory.limit_in_bytes", // v1
}

// GetTotalMemory returns the total available memory size. The call is
// container-aware.
func GetTotalMemory() uint64 {
	return totalMemory(memory.TotalMemory(), cgroupLimitFiles)
}

func totalMemory(hostMemory uint64, limitFiles []string) uint64 {
	for _, path := range limitFiles {
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		limit, ok := parseCgroupLimit(string(raw))
		if !ok {
			continue
		}
		if hostMemory == 0 || limit < hostMemory {
			return limit
		}
		return hostMemory
	}
	return hostMemory
}

func parseCgroupLimit(raw string) (uint64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "max" {
		return 0, false
	}

	limit, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || limit == 0 || limit >= unrestrictedMemoryLimit {
		return 0, false
	}
	return limit, true
}
