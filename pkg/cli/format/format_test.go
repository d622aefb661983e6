package format

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rzbill/herd/pkg/types"
)

func TestPrintErrorListsViolations(t *testing.T) {
	EnableColor(false)

	var buf bytes.Buffer
	PrintError(&buf, &types.ValidationError{Violations: []string{"no CLDB", "even ZooKeeper count"}})
	assert.Equal(t, "Error: 2 violations\n  • no CLDB\n  • even ZooKeeper count\n", buf.String())

	buf.Reset()
	PrintError(&buf, errors.New("boom"))
	assert.Equal(t, "Error: boom\n", buf.String())
}

func TestStatusLabelWithoutColor(t *testing.T) {
	EnableColor(false)
	assert.False(t, IsColorEnabled())
	assert.Equal(t, "failed", StatusLabel("failed"))
	assert.Equal(t, "✓", StatusSymbol(true))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
}
