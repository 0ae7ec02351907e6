package timestamps

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/forPelevin/tapalign/internal/types"
)

var (
	reClock   = regexp.MustCompile(`(\d+)h(\d{2})\.(\d{2})(?:\.(\d+))?`)
	reSeconds = regexp.MustCompile(`(\d+(?:\.\d+)?)s`)
	reNumber  = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// Extract recovers the time in seconds encoded in a frame identifier.
// Recognized forms, first match wins:
//   - "1h02.03.250" (hours, minutes, seconds, milliseconds)
//   - "12.5s"
//   - the last number anywhere in the identifier
func Extract(identifier string) (float64, bool) {
	if m := reClock.FindStringSubmatch(identifier); m != nil {
		h, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		ss, _ := strconv.Atoi(m[3])
		sec := float64(h*3600 + mm*60 + ss)
		if m[4] != "" {
			frac, err := strconv.Atoi(m[4])
			if err == nil {
				sec += float64(frac) / 1000
			}
		}
		return sec, true
	}
	if m := reSeconds.FindStringSubmatch(identifier); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, true
		}
	}
	nums := reNumber.FindAllString(identifier, -1)
	if len(nums) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(nums[len(nums)-1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Observe builds the observation for a frame file. The timestamp is read from
// the file stem so extensions like ".mp4" never contribute digits.
func Observe(filename string) types.Observation {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	obs := types.Observation{Identifier: base}
	if sec, ok := Extract(stem); ok {
		obs.Timestamp = sec
		obs.HasTimestamp = true
	}
	return obs
}
