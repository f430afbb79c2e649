// internal/config/normalize.go
package config

import (
	"github.com/tamzrod/heliotrack/internal/hal"
	"github.com/tamzrod/heliotrack/internal/nvstore"
	"github.com/tamzrod/heliotrack/internal/safety"
	"github.com/tamzrod/heliotrack/internal/servo"
	"github.com/tamzrod/heliotrack/internal/status"
)

// Defaults for values left zero in the file.
const (
	DefaultLoopMs      = 100
	DefaultScrubMs     = 500
	DefaultTelemetryMs = 1000
	DefaultPersistMs   = 60000
	DefaultRecoveryMs  = 30000

	DefaultDeadband         = 2.0
	DefaultGain             = 0.8
	DefaultSunLossTimeoutMs = 5000
	DefaultHome             = 90

	DefaultSensorMin    = 50
	DefaultSensorMax    = 950
	DefaultSunThreshold = 200

	DefaultTimeoutMs = 1000
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// ------------------------------------------------------------
	// CONTROLLER TIMING
	// ------------------------------------------------------------
	c := &cfg.Controller
	defInt(&c.LoopMs, DefaultLoopMs)
	defInt(&c.ScrubMs, DefaultScrubMs)
	defInt(&c.TelemetryMs, DefaultTelemetryMs)
	defInt(&c.PersistMs, DefaultPersistMs)
	defInt(&c.RecoveryMs, DefaultRecoveryMs)
	if c.FaultThreshold == 0 {
		c.FaultThreshold = safety.DefaultFaultThreshold
	}

	// ------------------------------------------------------------
	// TRACKING
	// ------------------------------------------------------------
	t := &cfg.Tracking
	if t.Deadband == 0 {
		t.Deadband = DefaultDeadband
	}
	if t.Gain == 0 {
		t.Gain = DefaultGain
	}
	if t.SunLossTimeoutMs == 0 {
		t.SunLossTimeoutMs = DefaultSunLossTimeoutMs
	}
	defU16(&t.HomeAzimuth, DefaultHome)
	defU16(&t.HomeElevation, DefaultHome)

	l := &t.Limits
	defU16(&l.AzimuthMin, servo.DefaultLimits.AzimuthMin)
	defU16(&l.AzimuthMax, servo.DefaultLimits.AzimuthMax)
	defU16(&l.ElevationMin, servo.DefaultLimits.ElevationMin)
	defU16(&l.ElevationMax, servo.DefaultLimits.ElevationMax)

	// ------------------------------------------------------------
	// SENSOR
	// ------------------------------------------------------------
	s := &cfg.Sensor
	if s.Min == 0 && s.Max == 0 {
		s.Min, s.Max = DefaultSensorMin, DefaultSensorMax
	}
	if s.SunThreshold == 0 {
		s.SunThreshold = DefaultSunThreshold
	}

	// ------------------------------------------------------------
	// STORAGE
	// ------------------------------------------------------------
	st := &cfg.Storage
	if st.Backend == "" {
		st.Backend = BackendMemory
	}
	if st.Size == 0 {
		st.Size = hal.DefaultStoreSize
	}
	defU16(&st.PrimaryBase, nvstore.DefaultPrimaryBase)
	defU16(&st.BackupBase, nvstore.DefaultBackupBase)

	// ------------------------------------------------------------
	// FIELD / STATUS
	// ------------------------------------------------------------
	defInt(&cfg.Field.TimeoutMs, DefaultTimeoutMs)

	if sc := cfg.Status; sc != nil {
		defInt(&sc.TimeoutMs, DefaultTimeoutMs)

		// ASCII already validated; truncate to the slot budget
		if len(sc.DeviceName) > status.DeviceNameMaxChars {
			sc.DeviceName = sc.DeviceName[:status.DeviceNameMaxChars]
		}
	}

	// ------------------------------------------------------------
	// LOG
	// ------------------------------------------------------------
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

// ServoLimits returns the normalized angle limits.
func (t TrackingConfig) ServoLimits() servo.Limits {
	l := servo.DefaultLimits
	if t.Limits.AzimuthMin != nil {
		l.AzimuthMin = *t.Limits.AzimuthMin
	}
	if t.Limits.AzimuthMax != nil {
		l.AzimuthMax = *t.Limits.AzimuthMax
	}
	if t.Limits.ElevationMin != nil {
		l.ElevationMin = *t.Limits.ElevationMin
	}
	if t.Limits.ElevationMax != nil {
		l.ElevationMax = *t.Limits.ElevationMax
	}
	return l
}

func defInt(p *int, v int) {
	if *p == 0 {
		*p = v
	}
}

func defU16(p **uint16, v uint16) {
	if *p == nil {
		*p = &v
	}
}
