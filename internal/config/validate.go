// internal/config/validate.go
package config

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tamzrod/heliotrack/internal/nvstore"
)

// Validate checks configuration correctness.
// It performs declarative validation only. Zero values mean "default"
// and are accepted.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil")
	}

	// ------------------------------------------------------------
	// CONTROLLER TIMING
	// ------------------------------------------------------------
	c := cfg.Controller
	for _, iv := range []struct {
		name string
		ms   int
	}{
		{"loop_ms", c.LoopMs},
		{"scrub_ms", c.ScrubMs},
		{"telemetry_ms", c.TelemetryMs},
		{"persist_ms", c.PersistMs},
		{"recovery_ms", c.RecoveryMs},
	} {
		if iv.ms < 0 {
			return fmt.Errorf("controller.%s must be >= 0", iv.name)
		}
	}

	// ------------------------------------------------------------
	// TRACKING
	// ------------------------------------------------------------
	t := cfg.Tracking
	if t.Gain < 0 {
		return errors.New("tracking.gain must be >= 0")
	}
	if t.Deadband < 0 {
		return errors.New("tracking.deadband must be >= 0")
	}

	lim := t.ServoLimits()
	if lim.AzimuthMin >= lim.AzimuthMax {
		return fmt.Errorf("tracking.limits: azimuth_min %d must be < azimuth_max %d",
			lim.AzimuthMin, lim.AzimuthMax)
	}
	if lim.ElevationMin >= lim.ElevationMax {
		return fmt.Errorf("tracking.limits: elevation_min %d must be < elevation_max %d",
			lim.ElevationMin, lim.ElevationMax)
	}
	if t.HomeAzimuth != nil && (*t.HomeAzimuth < lim.AzimuthMin || *t.HomeAzimuth > lim.AzimuthMax) {
		return fmt.Errorf("tracking.home_azimuth %d outside limits", *t.HomeAzimuth)
	}
	if t.HomeElevation != nil && (*t.HomeElevation < lim.ElevationMin || *t.HomeElevation > lim.ElevationMax) {
		return fmt.Errorf("tracking.home_elevation %d outside limits", *t.HomeElevation)
	}

	// ------------------------------------------------------------
	// SENSOR
	// ------------------------------------------------------------
	s := cfg.Sensor
	if (s.Min != 0 || s.Max != 0) && s.Min >= s.Max {
		return fmt.Errorf("sensor: min %d must be < max %d", s.Min, s.Max)
	}

	// ------------------------------------------------------------
	// STORAGE
	// ------------------------------------------------------------
	st := cfg.Storage
	switch st.Backend {
	case "", BackendMemory:
	case BackendFile:
		if st.Path == "" {
			return errors.New("storage.path required for file backend")
		}
	case BackendModbus:
		if cfg.Field.Endpoint == "" {
			return errors.New("storage: modbus backend requires field.endpoint")
		}
	default:
		return fmt.Errorf("storage.backend %q unknown (memory|file|modbus)", st.Backend)
	}
	if st.Size < 0 || st.Size > 0x10000 {
		return fmt.Errorf("storage.size %d out of range", st.Size)
	}
	if st.PrimaryBase != nil && st.BackupBase != nil {
		p, b := int(*st.PrimaryBase), int(*st.BackupBase)
		if p < b+nvstore.ImageSize && b < p+nvstore.ImageSize {
			return fmt.Errorf("storage: primary %#04x and backup %#04x images overlap", p, b)
		}
	}

	// ------------------------------------------------------------
	// FIELD I/O (required: sensors and servos live there)
	// ------------------------------------------------------------
	f := cfg.Field
	if f.Endpoint == "" {
		return errors.New("field.endpoint required")
	}
	if f.TimeoutMs < 0 {
		return errors.New("field.timeout_ms must be >= 0")
	}
	if f.SensorBase > 0xFFFF-3 {
		return fmt.Errorf("field.sensor_base %d leaves no room for 4 channels", f.SensorBase)
	}
	if f.ServoBase == 0xFFFF {
		return errors.New("field.servo_base leaves no room for elevation")
	}

	// ------------------------------------------------------------
	// STATUS BLOCK (OPT-IN)
	// ------------------------------------------------------------
	if sc := cfg.Status; sc != nil {
		if sc.Endpoint == "" {
			return errors.New("status.endpoint required when status is set")
		}
		if sc.TimeoutMs < 0 {
			return errors.New("status.timeout_ms must be >= 0")
		}
		// device_name sanity (ASCII only)
		for i := 0; i < len(sc.DeviceName); i++ {
			if sc.DeviceName[i] > 0x7F {
				return errors.New("status.device_name must contain ASCII characters only")
			}
		}
		if sc.Endpoint == f.Endpoint && sc.UnitID == f.UnitID {
			return fmt.Errorf("status block collides with field device %s unit %d", sc.Endpoint, sc.UnitID)
		}
	}

	// ------------------------------------------------------------
	// LOG
	// ------------------------------------------------------------
	if cfg.Log.Level != "" {
		if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
	}
	switch cfg.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format %q unknown (console|json)", cfg.Log.Format)
	}

	return nil
}
