package logging

import (
	"strings"
	"time"
)

const logTimestampLayout = "15:04:05"

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.In(time.Local).Format(logTimestampLayout)
}

// FormatSubject builds the stage/family/sample prefix used in console output,
// e.g. "[pack Bashlite/2020/abc.elf]".
func FormatSubject(stage, family, sample string) string {
	stage = strings.TrimSpace(stage)
	family = strings.TrimSpace(family)
	sample = strings.TrimSpace(sample)

	target := family
	if sample != "" {
		if target != "" {
			target += "/"
		}
		target += sample
	}
	switch {
	case stage != "" && target != "":
		return "[" + stage + " " + target + "]"
	case stage != "":
		return "[" + stage + "]"
	case target != "":
		return "[" + target + "]"
	default:
		return ""
	}
}
