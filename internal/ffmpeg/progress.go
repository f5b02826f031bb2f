package ffmpeg

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"mediaconv/internal/model"
)

var reBitrate = regexp.MustCompile(`^([0-9.]+)\s*([kKmMgG])bits/s$`)

// progressParser accumulates the key=value lines ffmpeg writes with
// -progress and emits a snapshot at the end of each block.
type progressParser struct {
	duration time.Duration
	cur      model.JobProgress
}

func newProgressParser(duration time.Duration) *progressParser {
	return &progressParser{duration: duration, cur: model.JobProgress{Duration: duration}}
}

// Feed consumes one line. It returns a snapshot and true when the line
// closes a block.
func (p *progressParser) Feed(line string) (model.JobProgress, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return model.JobProgress{}, false
	}
	value = strings.TrimSpace(value)

	switch key {
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds.
		if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
			p.cur.OutTime = time.Duration(us) * time.Microsecond
		}
	case "out_time":
		if d, ok := parseClock(value); ok && p.cur.OutTime == 0 {
			p.cur.OutTime = d
		}
	case "speed":
		if value != "N/A" {
			p.cur.Speed = value
		}
	case "bitrate":
		if b := formatBitrate(value); b != "" {
			p.cur.Bitrate = b
		}
	case "progress":
		p.cur.Done = value == "end"
		if p.duration > 0 {
			pct := float64(p.cur.OutTime) / float64(p.duration) * 100
			if pct > 100 || p.cur.Done {
				pct = 100
			}
			if pct < 0 {
				pct = 0
			}
			p.cur.Percent = pct
		}
		snap := p.cur
		p.cur = model.JobProgress{Duration: p.duration, Speed: snap.Speed, Bitrate: snap.Bitrate}
		return snap, true
	}
	return model.JobProgress{}, false
}

func parseClock(v string) (time.Duration, bool) {
	parts := strings.Split(v, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	s, errS := strconv.ParseFloat(parts[2], 64)
	if errH != nil || errM != nil || errS != nil || h < 0 || m < 0 || s < 0 {
		return 0, false
	}
	total := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s*float64(time.Second))
	return total, true
}

func formatBitrate(v string) string {
	m := reBitrate.FindStringSubmatch(strings.TrimSpace(v))
	if len(m) < 3 {
		return ""
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil || f <= 0 {
		return ""
	}
	var mbps float64
	switch strings.ToUpper(m[2]) {
	case "K":
		mbps = f / 1000.0
	case "M":
		mbps = f
	case "G":
		mbps = f * 1000.0
	}
	return strconv.FormatFloat(mbps, 'f', 2, 64) + " Mb/s"
}
