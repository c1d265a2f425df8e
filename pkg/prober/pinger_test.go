package prober

import (
	"errors"
	"testing"
	"time"
)

func TestParsePingRTT(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    time.Duration
		wantErr error
	}{
		{
			name: "linux iputils reply",
			output: "PING 8.8.8.8 (8.8.8.8) 56(84) bytes of data.\n" +
				"64 bytes from 8.8.8.8: icmp_seq=1 ttl=116 time=12.4 ms\n" +
				"\n--- 8.8.8.8 ping statistics ---\n",
			want: time.Duration(12.4 * float64(time.Millisecond)),
		},
		{
			name:   "whole millisecond reply",
			output: "64 bytes from 203.0.113.1: icmp_seq=1 ttl=52 time=230 ms\n",
			want:   230 * time.Millisecond,
		},
		{
			name:   "sub-millisecond reply",
			output: "64 bytes from 127.0.0.1: icmp_seq=1 ttl=64 time=0.045 ms\n",
			want:   45 * time.Microsecond,
		},
		{
			name:    "no reply lines",
			output:  "PING 203.0.113.1 (203.0.113.1) 56(84) bytes of data.\n\n--- statistics ---\n1 packets transmitted, 0 received\n",
			wantErr: ErrUnreachable,
		},
		{
			name:    "garbled time field",
			output:  "64 bytes from 203.0.113.1: icmp_seq=1 ttl=52 time=abc ms\n",
			wantErr: ErrParse,
		},
		{
			name:    "empty output",
			output:  "",
			wantErr: ErrUnreachable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePingRTT(tt.output)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePingRTT failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestParsePingRTT_TruncatesToWholeMilliseconds(t *testing.T) {
	rtt, err := parsePingRTT("64 bytes from 203.0.113.1: icmp_seq=1 ttl=52 time=45.9 ms\n")
	if err != nil {
		t.Fatalf("parsePingRTT failed: %v", err)
	}

	// The registry stores whole milliseconds; conversion truncates rather
	// than rounds, matching the stored value's semantics.
	if ms := rtt.Milliseconds(); ms != 45 {
		t.Errorf("Expected 45ms after truncation, got %d", ms)
	}
}
