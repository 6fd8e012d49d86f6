package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kilianp07/evcharge/core/curve"
	"github.com/kilianp07/evcharge/core/model"
	"github.com/kilianp07/evcharge/core/transition"
	"github.com/kilianp07/evcharge/pkg/export"
)

var profEV, profEVSE string

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Dump the curves and transitions of an EV/EVSE pair as JSON",
	RunE:  runProfiles,
}

func init() {
	profilesCmd.Flags().StringVar(&profEV, "ev", "ld_50kWh", "vehicle type")
	profilesCmd.Flags().StringVar(&profEVSE, "evse", "L2_7200", "supply equipment type")
	rootCmd.AddCommand(profilesCmd)
}

type definitionDump struct {
	State     transition.State       `json:"state"`
	XDeadband float64                `json:"X_deadband"`
	Criteria  []transition.Criterion `json:"criteria"`
}

type profileDump struct {
	EV          model.EV               `json:"ev"`
	EVSE        model.EVSE             `json:"evse"`
	Efficiency  curve.Efficiency       `json:"efficiency"`
	Charging    []curve.LineSegment    `json:"SOC_vs_P2_charging"`
	Discharging []curve.LineSegment    `json:"SOC_vs_P2_discharging"`
	Voltage     []curve.PolySegment    `json:"puVrms_vs_P2"`
	Table       transition.TableConfig `json:"transition_table"`
	Transitions []definitionDump       `json:"transitions"`
}

func runProfiles(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	f, err := newFactory(cfg)
	if err != nil {
		return err
	}
	p, err := f.Profile(profEV, profEVSE)
	if err != nil {
		return err
	}
	out := profileDump{
		EV:          p.EV,
		EVSE:        p.EVSE,
		Efficiency:  p.Efficiency,
		Charging:    p.Charging.Segments(),
		Discharging: p.Discharging.Segments(),
		Voltage:     p.Voltage.Segments(),
		Table:       p.Transitions.Config(),
	}
	for _, d := range p.Transitions.Definitions() {
		out.Transitions = append(out.Transitions, definitionDump{
			State:     d.State(),
			XDeadband: d.XDeadband(),
			Criteria:  d.Criteria(),
		})
	}
	return export.WriteJSON(cmd.OutOrStdout(), out)
}
