// internal/status/constants.go
package status

// Controller Status Block layout constants.
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of holding registers per controller.
const SlotsPerDevice = 20

// ---- SLOT INDICES ----

// SlotMode holds the voted operating mode (safety.Mode numeric value).
const SlotMode = 0

// SlotLastFault holds the most recent fault kind this session.
const SlotLastFault = 1

// SlotSecondsDegraded holds the seconds spent outside Normal mode.
const SlotSecondsDegraded = 2

// SlotTotalFaults holds the session fault total, clamped to 65535.
const SlotTotalFaults = 3

// SlotBootCountHi and SlotBootCountLo hold the 32-bit boot counter.
const SlotBootCountHi = 4
const SlotBootCountLo = 5

// ---- RESERVED RANGE ----

// Slots 6-10 are reserved for future use.
const SlotReservedStart = 6
const SlotReservedEnd = 10

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the device name.
// Device name is always placed at the END of the status block.
const SlotDeviceNameStart = 11

// SlotDeviceNameSlots is the number of slots reserved for the device name.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last slot used for the device name (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// ---- LIMITS ----

// DeviceNameMaxChars is the maximum number of ASCII characters stored for device name.
const DeviceNameMaxChars = 16

// MaxCounter is the largest value a 16-bit slot carries; larger values clamp.
const MaxCounter = 65535
