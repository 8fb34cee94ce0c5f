package suoserial

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	testCases := []struct {
		name   string
		line   string
		expect []string
	}{
		{"empty", "", nil},
		{"single", "fwupdate", []string{"fwupdate"}},
		{"request", "SUOSERIAL_WRITE_STATUS 0 2 AAFF", []string{"SUOSERIAL_WRITE_STATUS", "0", "2", "AAFF"}},
		{"stray token", "SUOSERIAL_WRITE_STATUS 0 2 AAFF x", []string{"SUOSERIAL_WRITE_STATUS", "0", "2", "AAFF", "x"}},
		{"trailing space", "fwupdate ", []string{"fwupdate"}},
		{"trailing spaces", "SUOSERIAL_READ_STATUS 0 0  ", []string{"SUOSERIAL_READ_STATUS", "0", "0"}},
		{"double space", "alloc  16", []string{"alloc", "16"}},
		{"space run", "SUOSERIAL_WRITE_STATUS  0   1 01", []string{"SUOSERIAL_WRITE_STATUS", "0", "1", "01"}},
		{"leading space", " alloc 16", []string{"", "alloc", "16"}},
		{"only spaces", "   ", []string{""}},
		{"max args", "0 1 2 3 4 5 6 7 8 9 10 11", []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, Tokenize(tc.line, MaxArgs))
		})
	}
}

func TestTokenizeRequest(t *testing.T) {
	testCases := []struct {
		name   string
		line   string
		expect []string
	}{
		{"hexdata", "SUOSERIAL_WRITE_STATUS 0 1 01", []string{"SUOSERIAL_WRITE_STATUS", "0", "1", "01"}},
		{"empty hexdata", "SUOSERIAL_READ_STATUS 0 0 ", []string{"SUOSERIAL_READ_STATUS", "0", "0", ""}},
		{"empty hexdata after space run", "SUOSERIAL_READ_STATUS  0 0   ", []string{"SUOSERIAL_READ_STATUS", "0", "0", ""}},
		{"missing size", "SUOSERIAL_READ_STATUS 0 ", []string{"SUOSERIAL_READ_STATUS", "0"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, tokenizeRequest(tc.line))
		})
	}
}
