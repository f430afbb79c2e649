// internal/field/field.go
package field

import (
	"errors"
	"fmt"

	"github.com/tamzrod/heliotrack/internal/sensor"
)

// Client abstracts the Modbus operations the field adapters need.
// The adapters depend on register geometry only.
type Client interface {
	ReadInputRegisters(addr, qty uint16) ([]uint16, error)   // FC 4
	ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) // FC 3
	WriteRegisters(addr uint16, regs []uint16) error         // FC 16
}

// Map is the register layout of the field I/O device.
type Map struct {
	// SensorBase is the first of four input registers, TL TR BL BR.
	SensorBase uint16

	// ServoBase holds azimuth, then elevation (holding registers).
	ServoBase uint16

	// StoreBase is the first holding register of the emulated EEPROM.
	// One register carries one byte in its low half.
	StoreBase uint16
	StoreSize int
}

// ---- ANALOG ----

// Analog reads light sensor channels from input registers.
type Analog struct {
	cli  Client
	base uint16
}

func NewAnalog(cli Client, m Map) (*Analog, error) {
	if cli == nil {
		return nil, errors.New("field: client required")
	}
	return &Analog{cli: cli, base: m.SensorBase}, nil
}

// ReadChannel implements sensor.Analog.
func (a *Analog) ReadChannel(ch sensor.Channel) (uint16, error) {
	if int(ch) >= sensor.NumChannels {
		return 0, fmt.Errorf("field: channel %d out of range", ch)
	}
	regs, err := a.cli.ReadInputRegisters(a.base+uint16(ch), 1)
	if err != nil {
		return 0, fmt.Errorf("field: read channel %d: %w", ch, err)
	}
	return regs[0], nil
}

// ---- SERVOS ----

// Servos writes target angles to two holding registers.
type Servos struct {
	cli  Client
	base uint16
}

func NewServos(cli Client, m Map) (*Servos, error) {
	if cli == nil {
		return nil, errors.New("field: client required")
	}
	return &Servos{cli: cli, base: m.ServoBase}, nil
}

// SetAngles implements servo.Actuator.
func (s *Servos) SetAngles(azimuth, elevation uint16) error {
	if err := s.cli.WriteRegisters(s.base, []uint16{azimuth, elevation}); err != nil {
		return fmt.Errorf("field: write servos: %w", err)
	}
	return nil
}

// ---- STORE ----

// Store emulates byte-addressed EEPROM in holding registers.
// It satisfies hal.ByteStore.
type Store struct {
	cli  Client
	base uint16
	size int
}

func NewStore(cli Client, m Map) (*Store, error) {
	if cli == nil {
		return nil, errors.New("field: client required")
	}
	if m.StoreSize <= 0 {
		return nil, errors.New("field: store size must be > 0")
	}
	if int(m.StoreBase)+m.StoreSize > 0x10000 {
		return nil, errors.New("field: store exceeds register space")
	}
	return &Store{cli: cli, base: m.StoreBase, size: m.StoreSize}, nil
}

func (s *Store) Load(addr uint16) (byte, error) {
	if int(addr) >= s.size {
		return 0, fmt.Errorf("field: store read %#04x out of range", addr)
	}
	regs, err := s.cli.ReadHoldingRegisters(s.base+addr, 1)
	if err != nil {
		return 0, fmt.Errorf("field: store read %#04x: %w", addr, err)
	}
	return byte(regs[0]), nil
}

func (s *Store) Store(addr uint16, b byte) error {
	if int(addr) >= s.size {
		return fmt.Errorf("field: store write %#04x out of range", addr)
	}
	if err := s.cli.WriteRegisters(s.base+addr, []uint16{uint16(b)}); err != nil {
		return fmt.Errorf("field: store write %#04x: %w", addr, err)
	}
	return nil
}

func (s *Store) Size() int { return s.size }
