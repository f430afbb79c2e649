// internal/status/encode_test.go
package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncode_Layout(t *testing.T) {
	regs := Encode(Snapshot{
		Mode:            4,
		LastFault:       6,
		SecondsDegraded: 12,
		TotalFaults:     3,
		BootCount:       0x00012345,
	})

	assert.Len(t, regs, SlotsPerDevice)
	assert.Equal(t, uint16(4), regs[SlotMode])
	assert.Equal(t, uint16(6), regs[SlotLastFault])
	assert.Equal(t, uint16(12), regs[SlotSecondsDegraded])
	assert.Equal(t, uint16(3), regs[SlotTotalFaults])
	assert.Equal(t, uint16(0x0001), regs[SlotBootCountHi])
	assert.Equal(t, uint16(0x2345), regs[SlotBootCountLo])

	for i := SlotReservedStart; i <= SlotDeviceNameEnd; i++ {
		assert.Zero(t, regs[i], "slot %d", i)
	}
}

func TestClamp16(t *testing.T) {
	assert.Equal(t, uint16(7), Clamp16(7))
	assert.Equal(t, uint16(MaxCounter), Clamp16(1<<20))
}
