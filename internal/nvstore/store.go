// internal/nvstore/store.go
package nvstore

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/tamzrod/heliotrack/internal/fault"
	"github.com/tamzrod/heliotrack/internal/hal"
)

// Default storage bases.
const (
	DefaultPrimaryBase uint16 = 0x0000
	DefaultBackupBase  uint16 = 0x0100
)

// BootSource says which copy the store adopted at Init.
type BootSource uint8

const (
	BootPrimary BootSource = iota
	BootBackup
	BootDefaults
)

func (s BootSource) String() string {
	switch s {
	case BootPrimary:
		return "primary"
	case BootBackup:
		return "backup"
	case BootDefaults:
		return "defaults"
	}
	return "unknown"
}

// Boot is the outcome of the safe-boot sequence.
type Boot struct {
	Source  BootSource
	Primary LoadResult
	Backup  LoadResult

	// RestoreErr is set when rewriting the primary from the backup failed.
	RestoreErr error
}

// Store owns the authoritative Record.
//
// faults mirrors the record's counter array for the session so that
// counting a fault never touches the full record; Persist folds it back.
type Store struct {
	mem     hal.ByteStore
	primary Location
	backup  Location
	log     zerolog.Logger

	rec    Record
	faults [fault.NumKinds]uint16
}

type Option func(*Store)

func WithPrimaryBase(base uint16) Option {
	return func(s *Store) { s.primary.Base = base }
}

func WithBackupBase(base uint16) Option {
	return func(s *Store) { s.backup.Base = base }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New creates a store over mem. Call Init before use.
func New(mem hal.ByteStore, opts ...Option) (*Store, error) {
	if mem == nil {
		return nil, errors.New("nvstore: byte store required")
	}

	s := &Store{
		mem:     mem,
		primary: Location{Name: "primary", Base: DefaultPrimaryBase},
		backup:  Location{Name: "backup", Base: DefaultBackupBase},
		log:     zerolog.Nop(),
		rec:     Defaults(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With().Str("component", "nvstore").Logger()

	if err := s.checkGeometry(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) checkGeometry() error {
	size := s.mem.Size()
	for _, loc := range []Location{s.primary, s.backup} {
		if int(loc.Base)+ImageSize > size {
			return errors.New("nvstore: " + loc.Name + " image does not fit in store")
		}
	}

	p0, p1 := int(s.primary.Base), int(s.primary.Base)+ImageSize
	b0, b1 := int(s.backup.Base), int(s.backup.Base)+ImageSize
	if p0 < b1 && b0 < p1 {
		return errors.New("nvstore: primary and backup images overlap")
	}
	return nil
}

// Init runs the safe-boot sequence and reports boot faults to sink.
// sink may be nil.
func (s *Store) Init(sink fault.Sink) Boot {
	var boot Boot
	boot.Primary = Load(s.mem, s.primary)
	boot.Backup = Load(s.mem, s.backup)

	for _, r := range []LoadResult{boot.Primary, boot.Backup} {
		if r.Err != nil {
			s.log.Warn().Err(r.Err).Str("location", r.Location.Name).Msg("config read failed")
		}
		if r.Corrected > 0 {
			s.log.Info().
				Str("location", r.Location.Name).
				Int("bytes", r.Corrected).
				Msg("ecc corrected bit errors")
		}
	}

	var bootFault fault.Kind

	switch {
	case boot.Primary.Valid:
		boot.Source = BootPrimary
		s.rec = boot.Primary.Record
		s.log.Info().Msg("primary config ok")

	case boot.Backup.Valid:
		boot.Source = BootBackup
		s.rec = boot.Backup.Record
		s.log.Warn().Msg("primary corrupt, restored from backup")
		if err := Save(s.mem, s.primary, s.rec); err != nil {
			boot.RestoreErr = err
			s.log.Error().Err(err).Msg("primary rewrite failed")
		}
		bootFault = fault.PrimaryConfigCorrupt

	default:
		boot.Source = BootDefaults
		s.rec = Defaults()
		s.log.Error().Msg("both configs corrupt, loading defaults")
		bootFault = fault.ConfigLost
	}

	s.rec.BootCount++
	s.faults = s.rec.FaultCounts

	// Counted after the mirror copy so the increment survives it.
	if bootFault != fault.None {
		s.RecordFault(bootFault)
		if sink != nil {
			sink.LogFault(bootFault)
		}
	}

	s.log.Info().
		Stringer("source", boot.Source).
		Uint32("boot_count", s.rec.BootCount).
		Msg("safe boot complete")

	return boot
}

// Get returns a copy of the authoritative record.
// Its FaultCounts reflect the session mirror, not the last persisted values.
func (s *Store) Get() Record {
	r := s.rec
	r.FaultCounts = s.faults
	return r
}

// Mutable returns the authoritative record for in-place edits
// (calibration offsets). Changes reach storage only through Persist.
// FaultCounts edited here are lost: Persist writes the session mirror over them.
func (s *Store) Mutable() *Record {
	return &s.rec
}

// RecordFault counts k in the session mirror. Invalid kinds are ignored.
func (s *Store) RecordFault(k fault.Kind) {
	if !k.Valid() {
		return
	}
	s.faults[k] = fault.Saturating(s.faults[k])
}

// FaultCount returns the lifetime count of k (persisted plus this session).
func (s *Store) FaultCount(k fault.Kind) uint16 {
	if !k.Valid() {
		return 0
	}
	return s.faults[k]
}

// Persist folds the session mirror into the record, reseals it and writes
// both locations. Both are always written.
func (s *Store) Persist() error {
	s.rec.FaultCounts = s.faults
	s.rec.Seal()

	perr := Save(s.mem, s.primary, s.rec)
	berr := Save(s.mem, s.backup, s.rec)
	if err := errors.Join(perr, berr); err != nil {
		s.log.Error().Err(err).Msg("persist failed")
		return err
	}

	s.log.Debug().Uint32("boot_count", s.rec.BootCount).Msg("persisted")
	return nil
}

// Locations returns the configured primary and backup locations.
func (s *Store) Locations() (primary, backup Location) {
	return s.primary, s.backup
}
