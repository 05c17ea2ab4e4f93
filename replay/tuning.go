package replay

import (
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Tuning knobs for the engine's internal polling and calibration behavior:
// hidden pflag-registered durations plus viper-bound defaults for values
// that don't need a CLI flag at all.
var (
	// How long the per-source driver sleeps between checks of the suspend
	// flag.
	suspendPollIntervalFlag = flag.Duration("replay_suspend_poll_interval", 10*time.Millisecond, "Polling interval while a replay is suspended.")

	// Upper bound on a single sleep-backend chunk before re-checking abort.
	sleepChunkFlag = flag.Duration("replay_sleep_chunk", time.Millisecond, "Maximum duration of a single sleep-backend wait before re-checking abort.")
)

func init() {
	flag.CommandLine.MarkHidden("replay_suspend_poll_interval")
	flag.CommandLine.MarkHidden("replay_sleep_chunk")
}

// rdtscCalibrateDur is viper-bound so it can be overridden without a
// recompile, but isn't exposed as a CLI flag since it's implementation
// detail rather than user-facing policy.
const rdtscCalibrateDur = "replay-rdtsc-calibrate-duration"

func init() {
	viper.SetDefault(rdtscCalibrateDur, 2*time.Millisecond)
}

func suspendPollInterval() time.Duration {
	if suspendPollIntervalFlag == nil || *suspendPollIntervalFlag <= 0 {
		return 10 * time.Millisecond
	}
	return *suspendPollIntervalFlag
}

func sleepChunk() time.Duration {
	if sleepChunkFlag == nil || *sleepChunkFlag <= 0 {
		return time.Millisecond
	}
	return *sleepChunkFlag
}

func viperDurationOrDefault(key string, def time.Duration) time.Duration {
	d := viper.GetDuration(key)
	if d <= 0 {
		return def
	}
	return d
}
