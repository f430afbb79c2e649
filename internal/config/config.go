// internal/config/config.go
package config

type Config struct {
	Controller ControllerConfig `yaml:"controller"`
	Tracking   TrackingConfig   `yaml:"tracking"`
	Sensor     SensorConfig     `yaml:"sensor"`
	Storage    StorageConfig    `yaml:"storage"`
	Field      FieldConfig      `yaml:"field"`
	Status     *StatusConfig    `yaml:"status"` // optional, opt-in
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// ---- CONTROLLER ----

type ControllerConfig struct {
	LoopMs      int `yaml:"loop_ms"`
	ScrubMs     int `yaml:"scrub_ms"`
	TelemetryMs int `yaml:"telemetry_ms"`
	PersistMs   int `yaml:"persist_ms"`
	RecoveryMs  int `yaml:"recovery_ms"`

	// Memory corruption events tolerated before SAFE mode.
	FaultThreshold uint16 `yaml:"fault_threshold"`
}

// ---- TRACKING ----

type TrackingConfig struct {
	Deadband         float64      `yaml:"deadband"`
	Gain             float64      `yaml:"gain"`
	SunLossTimeoutMs uint32       `yaml:"sun_loss_timeout_ms"`
	HomeAzimuth      *uint16      `yaml:"home_azimuth"`
	HomeElevation    *uint16      `yaml:"home_elevation"`
	Limits           LimitsConfig `yaml:"limits"`
	DemoDurationMs   uint32       `yaml:"demo_duration_ms"`
}

// LimitsConfig overrides the servo angle limits. Missing values keep the
// driver defaults.
type LimitsConfig struct {
	AzimuthMin   *uint16 `yaml:"azimuth_min"`
	AzimuthMax   *uint16 `yaml:"azimuth_max"`
	ElevationMin *uint16 `yaml:"elevation_min"`
	ElevationMax *uint16 `yaml:"elevation_max"`
}

// ---- SENSOR ----

type SensorConfig struct {
	Min          uint16 `yaml:"min"`
	Max          uint16 `yaml:"max"`
	SunThreshold uint16 `yaml:"sun_threshold"`
}

// ---- STORAGE ----

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendModbus = "modbus"
)

type StorageConfig struct {
	Backend     string  `yaml:"backend"` // memory | file | modbus
	Path        string  `yaml:"path"`    // file backend only
	Size        int     `yaml:"size"`
	PrimaryBase *uint16 `yaml:"primary_base"`
	BackupBase  *uint16 `yaml:"backup_base"`
}

// ---- FIELD I/O ----

type FieldConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms"`

	SensorBase uint16 `yaml:"sensor_base"` // input registers TL TR BL BR
	ServoBase  uint16 `yaml:"servo_base"`  // holding registers az, el
	StoreBase  uint16 `yaml:"store_base"`  // holding registers, modbus backend
}

// ---- STATUS BLOCK ----

type StatusConfig struct {
	Endpoint   string `yaml:"endpoint"`
	UnitID     uint8  `yaml:"unit_id"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	Slot       uint16 `yaml:"slot"`
	DeviceName string `yaml:"device_name"`
}

// ---- METRICS / LOG ----

type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty disables the endpoint
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console | json
}
