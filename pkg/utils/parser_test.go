package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSizeToBytes(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"5MB", 5 << 20},
		{"5 mb", 5 << 20},
		{"512", 512},
		{"2GB", 2 << 30},
		{"", 42},
		{"abc", 42},
		{"10XB", 42},
		{"0KB", 42},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, SizeToBytes(tc.in, 42))
		})
	}
}

func TestDurationOr(t *testing.T) {
	assert.Equal(t, 5*time.Second, DurationOr("5s", time.Minute))
	assert.Equal(t, time.Minute, DurationOr("", time.Minute))
	assert.Equal(t, time.Minute, DurationOr("soon", time.Minute))
	assert.Equal(t, time.Minute, DurationOr("-3s", time.Minute))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.50 KB", FormatBytes(1536))
	assert.Equal(t, "2.00 MB", FormatBytes(2<<20))
}
