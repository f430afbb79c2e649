// internal/cli/inspect.go
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tamzrod/heliotrack/internal/config"
	"github.com/tamzrod/heliotrack/internal/fault"
	"github.com/tamzrod/heliotrack/internal/field"
	"github.com/tamzrod/heliotrack/internal/nvstore"
)

// ImageReport describes one decoded storage image.
type ImageReport struct {
	Location  string        `json:"location"`
	Base      uint16        `json:"base"`
	Valid     bool          `json:"valid"`
	Corrected int           `json:"corrected_bytes"`
	Error     string        `json:"error,omitempty"`
	Record    *RecordReport `json:"record,omitempty"`
}

type RecordReport struct {
	Magic           uint16            `json:"magic"`
	Version         uint16            `json:"version"`
	AzimuthOffset   int16             `json:"azimuth_offset"`
	ElevationOffset int16             `json:"elevation_offset"`
	BootCount       uint32            `json:"boot_count"`
	CRC             uint16            `json:"crc"`
	Faults          map[string]uint16 `json:"faults"`
}

func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <config.yaml>",
		Short: "Decode both configuration images without booting",
		Long: `Read the primary and backup configuration images from the configured
storage backend, correct single-bit errors in memory and report which
images are valid. Storage is never written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args[0])
			if err != nil {
				return err
			}
			reports, err := inspectStorage(cfg)
			if err != nil {
				return err
			}
			return writeReports(cmd.OutOrStdout(), rootOpts.Format, reports)
		},
	}
}

func inspectStorage(cfg *config.Config) ([]ImageReport, error) {
	var cli field.Client
	if cfg.Storage.Backend == config.BackendModbus {
		c, err := dialField(cfg)
		if err != nil {
			return nil, err
		}
		defer c.Close()
		cli = c
	}

	mem, closeMem, err := openStorage(cfg, cli)
	if err != nil {
		return nil, err
	}
	defer closeMem()

	store, err := nvstore.New(mem, storeOptions(cfg, zerolog.Nop())...)
	if err != nil {
		return nil, err
	}

	primary, backup := store.Locations()
	var out []ImageReport
	for _, loc := range []nvstore.Location{primary, backup} {
		out = append(out, reportImage(nvstore.Load(mem, loc)))
	}
	return out, nil
}

func reportImage(lr nvstore.LoadResult) ImageReport {
	rep := ImageReport{
		Location:  lr.Location.Name,
		Base:      lr.Location.Base,
		Valid:     lr.Valid,
		Corrected: lr.Corrected,
	}
	if lr.Err != nil {
		rep.Error = lr.Err.Error()
		return rep
	}

	r := lr.Record
	rr := &RecordReport{
		Magic:           r.Magic,
		Version:         r.Version,
		AzimuthOffset:   r.AzimuthOffset,
		ElevationOffset: r.ElevationOffset,
		BootCount:       r.BootCount,
		CRC:             r.CRC,
		Faults:          make(map[string]uint16, fault.NumKinds),
	}
	for _, k := range fault.Kinds() {
		rr.Faults[k.String()] = r.FaultCounts[k]
	}
	rep.Record = rr
	return rep
}

func writeReports(w io.Writer, format string, reports []ImageReport) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\tbase=%#04x\tvalid=%t\tcorrected=%d\n", r.Location, r.Base, r.Valid, r.Corrected)
		if r.Error != "" {
			fmt.Fprintf(tw, "\terror\t%s\n", r.Error)
			continue
		}
		if r.Record == nil {
			continue
		}
		rec := r.Record
		fmt.Fprintf(tw, "\tmagic\t%#04x\n", rec.Magic)
		fmt.Fprintf(tw, "\tversion\t%d\n", rec.Version)
		fmt.Fprintf(tw, "\toffsets\taz=%d el=%d\n", rec.AzimuthOffset, rec.ElevationOffset)
		fmt.Fprintf(tw, "\tboot_count\t%d\n", rec.BootCount)
		fmt.Fprintf(tw, "\tcrc\t%#04x\n", rec.CRC)
		for _, k := range fault.Kinds() {
			if n := rec.Faults[k.String()]; n > 0 {
				fmt.Fprintf(tw, "\tfault.%s\t%d\n", k, n)
			}
		}
	}
	return tw.Flush()
}
