package prober

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnreachable is returned when the target produced no reply.
	ErrUnreachable = errors.New("probe target unreachable")

	// ErrParse is returned when a reply arrived but its round-trip time
	// could not be parsed.
	ErrParse = errors.New("could not parse ping output")
)

// Pinger measures the round-trip time to a single IP. Implementations must
// honor context cancellation; the prober relies on it for per-probe timeouts.
type Pinger interface {
	Ping(ctx context.Context, ip string) (time.Duration, error)
}

// SystemPinger measures latency by shelling out to the system ping command
// with a single echo request and a bounded reply wait. Raw ICMP sockets need
// elevated privileges; ping(1) carries the needed capability on every
// platform the pool runs on.
type SystemPinger struct {
	// Deadline is the reply wait passed to ping. Rounded up to whole
	// seconds, the granularity iputils accepts.
	Deadline time.Duration
}

// NewSystemPinger returns a SystemPinger with the given reply deadline.
func NewSystemPinger(deadline time.Duration) *SystemPinger {
	return &SystemPinger{Deadline: deadline}
}

// Ping sends one echo request to ip and returns the parsed round-trip time.
// The context bounds the entire command; cancellation kills the child
// process.
func (p *SystemPinger) Ping(ctx context.Context, ip string) (time.Duration, error) {
	deadlineSecs := int((p.Deadline + time.Second - 1) / time.Second)
	if deadlineSecs < 1 {
		deadlineSecs = 1
	}

	cmd := exec.CommandContext(ctx, "ping", "-c", "1", "-W", strconv.Itoa(deadlineSecs), ip)
	out, err := cmd.Output()
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	if err != nil {
		// Non-zero exit with no parseable reply means no response; ping
		// prints partial output on some failures, so try parsing first.
		if rtt, perr := parsePingRTT(string(out)); perr == nil {
			return rtt, nil
		}
		return 0, fmt.Errorf("%w: %s", ErrUnreachable, ip)
	}

	return parsePingRTT(string(out))
}

// parsePingRTT extracts the round-trip time from ping output. It looks for
// the first line carrying a "time=<value>" field, e.g.
//
//	64 bytes from 8.8.8.8: icmp_seq=1 ttl=116 time=12.4 ms
func parsePingRTT(output string) (time.Duration, error) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "time=") {
			continue
		}
		part := strings.SplitN(line, "time=", 2)[1]
		fields := strings.Fields(part)
		if len(fields) == 0 {
			return 0, ErrParse
		}
		ms, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return 0, ErrParse
		}
		return time.Duration(ms * float64(time.Millisecond)), nil
	}
	return 0, ErrUnreachable
}
