package domain

import "fmt"

// Frequency values accepted by ScheduleConfig.
const (
	FrequencyDaily  = "daily"
	FrequencyWeekly = "weekly"
	FrequencyCustom = "custom"
)

// ScheduleConfig describes when the monitoring pipeline should run.
type ScheduleConfig struct {
	Frequency      string   // daily, weekly, custom
	Time           string   // HH:MM
	Days           []string // weekday names, weekly only
	CustomInterval int      // minutes, custom only
}

// Validate performs the loose checks the cadence descriptor needs: the
// frequency must be a known value and custom schedules need an interval.
func (c ScheduleConfig) Validate() error {
	switch c.Frequency {
	case FrequencyDaily, FrequencyWeekly:
		return nil
	case FrequencyCustom:
		if c.CustomInterval <= 0 {
			return fmt.Errorf("custom frequency requires a positive interval")
		}
		return nil
	default:
		return fmt.Errorf("unknown frequency %q", c.Frequency)
	}
}
