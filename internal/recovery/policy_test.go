package recovery

import (
	"testing"
	"time"

	"github.com/bft-labs/frameship/internal/domain"
)

func TestDecide(t *testing.T) {
	base := Thresholds{MaxFailures: 3, PeriodicReset: time.Hour}

	tests := []struct {
		name string
		in   Input
		th   Thresholds
		want Decision
	}{
		{
			name: "healthy",
			in:   Input{SinceLastReset: time.Minute},
			th:   base,
			want: Decision{domain.Continue, domain.ReasonNone},
		},
		{
			name: "below threshold",
			in:   Input{CaptureFailures: 2, SendFailures: 2},
			th:   base,
			want: Decision{domain.Continue, domain.ReasonNone},
		},
		{
			name: "capture threshold",
			in:   Input{CaptureFailures: 3},
			th:   base,
			want: Decision{domain.ReinitCamera, domain.ReasonCaptureFailures},
		},
		{
			name: "capture threshold wins over send failures",
			in:   Input{CaptureFailures: 3, SendFailures: 10},
			th:   Thresholds{MaxFailures: 3, LinkRecovery: true},
			want: Decision{domain.ReinitCamera, domain.ReasonCaptureFailures},
		},
		{
			name: "send threshold without link recovery",
			in:   Input{SendFailures: 3},
			th:   base,
			want: Decision{domain.ReinitCamera, domain.ReasonSendFailures},
		},
		{
			name: "send threshold with link recovery",
			in:   Input{SendFailures: 4},
			th:   Thresholds{MaxFailures: 3, LinkRecovery: true},
			want: Decision{domain.ReinitLink, domain.ReasonSendFailures},
		},
		{
			name: "periodic reset with no failures",
			in:   Input{SinceLastReset: time.Hour},
			th:   base,
			want: Decision{domain.ReinitCamera, domain.ReasonPeriodic},
		},
		{
			name: "periodic reset disabled",
			in:   Input{SinceLastReset: 1000 * time.Hour},
			th:   Thresholds{MaxFailures: 3},
			want: Decision{domain.Continue, domain.ReasonNone},
		},
		{
			name: "one failed reinit",
			in:   Input{CaptureFailures: 3, ReinitFailures: 1},
			th:   base,
			want: Decision{domain.ReinitCamera, domain.ReasonCaptureFailures},
		},
		{
			name: "two failed reinits restart",
			in:   Input{CaptureFailures: 3, ReinitFailures: 2},
			th:   base,
			want: Decision{domain.RestartDevice, domain.ReasonReinitFailures},
		},
		{
			name: "custom reinit limit",
			in:   Input{ReinitFailures: 2},
			th:   Thresholds{MaxFailures: 3, MaxReinitFailures: 3},
			want: Decision{domain.Continue, domain.ReasonNone},
		},
		{
			name: "zero max failures disables counters",
			in:   Input{CaptureFailures: 100, SendFailures: 100},
			th:   Thresholds{},
			want: Decision{domain.Continue, domain.ReasonNone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.in, tt.th)
			if got != tt.want {
				t.Errorf("Decide() = {%v %v}, want {%v %v}", got.Action, got.Reason, tt.want.Action, tt.want.Reason)
			}
		})
	}
}

func TestDecideCaptureThresholdRegardlessOfSend(t *testing.T) {
	for send := 0; send < 20; send++ {
		for _, link := range []bool{false, true} {
			got := Decide(Input{CaptureFailures: 5, SendFailures: send}, Thresholds{MaxFailures: 5, LinkRecovery: link})
			if got.Action != domain.ReinitCamera {
				t.Fatalf("send=%d link=%v: action = %v, want ReinitCamera", send, link, got.Action)
			}
		}
	}
}
