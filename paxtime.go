// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package ustar

import (
	"strconv"
	"strings"
	"time"
)

// parsePAXTime decodes a PAX time record: signed decimal seconds,
// optionally followed by '.' and decimal fractional seconds, per
// IEEE 1003.1-2001.
func parsePAXTime(s string) (time.Time, error) {
	secStr, nsStr, hasFrac := strings.Cut(s, ".")
	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return time.Time{}, errf(KindInvalidHeader, "invalid PAX time %q", s)
	}
	var nsec int64
	if hasFrac {
		// Right-pad/truncate to 9 digits of nanosecond precision.
		for len(nsStr) < 9 {
			nsStr += "0"
		}
		nsStr = nsStr[:9]
		nsec, err = strconv.ParseInt(nsStr, 10, 64)
		if err != nil {
			return time.Time{}, errf(KindInvalidHeader, "invalid PAX time fraction %q", s)
		}
	}
	return time.Unix(sec, nsec), nil
}
