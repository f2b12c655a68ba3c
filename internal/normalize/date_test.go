package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseEventDate(t *testing.T) {
	may1 := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		in     string
		want   time.Time
		reason string
	}{
		{in: "2024-05-01", want: may1},
		{in: "2024-05-01T09:30:00Z", want: may1},
		{in: "2024-05-01 09:30:00", want: may1},
		{in: "2024-05-01T23:30:00-05:00", want: may1},
		{in: "2024-05-01T09:30", want: may1},
		{in: "2024/05/01", want: may1},
		{in: "May 1, 2024", want: may1},
		{in: "1 May 2024", want: may1},
		{in: "Wednesday, May 1, 2024", want: may1},
		{in: "45413", want: may1},
		{in: "13/05/2024", want: time.Date(2024, time.May, 13, 0, 0, 0, 0, time.UTC)},
		{in: "05/13/2024", want: time.Date(2024, time.May, 13, 0, 0, 0, 0, time.UTC)},
		{in: "07.07.2024", want: time.Date(2024, time.July, 7, 0, 0, 0, 0, time.UTC)},
		{in: "05/06/2024", reason: ReasonAmbiguous},
		{in: "1-2-2024", reason: ReasonAmbiguous},
		{in: "", reason: ReasonEmpty},
		{in: "   ", reason: ReasonEmpty},
		{in: "2024-13-01", reason: ReasonUnparseable},
		{in: "2023-02-29", reason: ReasonUnparseable},
		{in: "31/31/2024", reason: ReasonUnparseable},
		{in: "05/06/24", reason: ReasonUnparseable},
		{in: "tomorrow", reason: ReasonUnparseable},
		{in: "2024-05-01 to 2024-05-03", reason: ReasonUnparseable},
		{in: "2024-05-01 garbage", reason: ReasonUnparseable},
		{in: "2024-05-01T99:99:99", reason: ReasonUnparseable},
		{in: "2024-05-01T", reason: ReasonUnparseable},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, reason := ParseEventDate(tt.in)
			assert.Equal(t, tt.reason, reason)

			if tt.reason == "" {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
