package scheduler

import (
	"fmt"
	"strconv"
	"strings"
)

// Clock 是一天中的时刻（时:分）。
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClock 解析 "14:45" 形式的时刻。
func ParseClock(raw string) (Clock, error) {
	raw = strings.TrimSpace(raw)
	hh, mm, ok := strings.Cut(raw, ":")
	if !ok {
		return Clock{}, fmt.Errorf("invalid clock %q: want HH:MM", raw)
	}
	h, err := strconv.Atoi(strings.TrimSpace(hh))
	if err != nil || h < 0 || h > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", raw)
	}
	m, err := strconv.Atoi(strings.TrimSpace(mm))
	if err != nil || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", raw)
	}
	return Clock{Hour: h, Minute: m}, nil
}
