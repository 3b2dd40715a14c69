package common

import (
	"testing"
)

func TestPrintBanner(t *testing.T) {
	// Writes to stdout; only has to render without panicking.
	PrintBanner(GetVersion())
}
