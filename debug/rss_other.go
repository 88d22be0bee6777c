//go:build !windows

package debug

import (
	"bufio"
	"bytes"
	"errors"
	"os"
	"strconv"
)

// processRSS reads VmRSS from /proc. Platforms without procfs report an error.
func processRSS() (uint64, error) {
	data, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return 0, err
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		fields := bytes.Fields(sc.Bytes())
		if len(fields) >= 2 && string(fields[0]) == "VmRSS:" {
			kb, err := strconv.ParseUint(string(fields[1]), 10, 64)
			if err != nil {
				return 0, err
			}
			return kb * 1024, nil
		}
	}
	return 0, errors.New("debug: VmRSS not found")
}
