package content_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wsami/rodos-go/content"
)

func TestAlphaCyclesAndContinuesAcrossCalls(t *testing.T) {
	gen := content.NewAlpha()
	first := gen.Next(26)
	assert.Equal(t, "ABCDEFGHIJKLMNOPQRSTUVWXYZ", string(first))

	second := gen.Next(3)
	assert.Equal(t, "ABC", string(second))
}

func TestNumCycles(t *testing.T) {
	gen := content.NewNum()
	assert.Equal(t, "0123456789012", string(gen.Next(13)))
}

func TestHexCycles(t *testing.T) {
	gen := content.NewHex()
	out := string(gen.Next(17))
	assert.Equal(t, "0123456789ABCDEF0", out)
}

func TestStdinReadsInjectedReader(t *testing.T) {
	gen := content.NewStdin(strings.NewReader("hello world"))
	assert.Equal(t, "hello", string(gen.Next(5)))
	assert.Equal(t, " worl", string(gen.Next(5)))
}

func TestStdinZeroPadsShortRead(t *testing.T) {
	gen := content.NewStdin(strings.NewReader("ab"))
	out := gen.Next(5)
	assert.Equal(t, []byte{'a', 'b', 0, 0, 0}, out)
}

func TestForKindDispatch(t *testing.T) {
	gen := content.ForKind(content.KindHex, nil, nil)
	assert.Equal(t, "0123", string(gen.Next(4)))
}
