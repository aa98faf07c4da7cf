package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignmentPaddingAlreadyAligned(t *testing.T) {
	assert.Equal(t, int64(-1), alignmentPadding(0, 512))
	assert.Equal(t, int64(-1), alignmentPadding(512, 512))
	assert.Equal(t, int64(-1), alignmentPadding(4096, 512))
}

func TestAlignmentPaddingKnownValues(t *testing.T) {
	// header(512) + 4 + 100 bytes of payload = 616; 400 pad bytes plus the
	// 8 byte padding header land the cursor on 1024.
	assert.Equal(t, int64(400), alignmentPadding(616, 512))

	// residual leaves less room than the padding header itself, so the
	// record reaches into the following alignment block
	pad := alignmentPadding(1020, 512)
	assert.Equal(t, int64(508), pad)
	assert.Equal(t, int64(0), (1020+paddingHeaderBytes+pad)%512)
}

func TestAlignmentPaddingInvariant(t *testing.T) {
	for _, align := range []int64{512, 1024, 4096} {
		for pos := int64(1); pos < 3*align; pos++ {
			pad := alignmentPadding(pos, align)
			if pos%align == 0 {
				require.Equal(t, int64(-1), pad, "pos=%d align=%d", pos, align)
				continue
			}
			require.True(t, pad >= 0, "pos=%d align=%d pad=%d", pos, align, pad)
			require.Equal(t, int64(0), (pos+paddingHeaderBytes+pad)%align,
				"pos=%d align=%d pad=%d", pos, align, pad)
		}
	}
}
