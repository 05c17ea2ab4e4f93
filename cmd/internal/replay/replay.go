package replaycmd

import (
	"net/http"
	"os"
	"os/signal"
	"strconv"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/replayctl/replayengine/cfg"
	"github.com/replayctl/replayengine/cmd/internal/cmderr"
	"github.com/replayctl/replayengine/printer"
	"github.com/replayctl/replayengine/replay"
	"github.com/replayctl/replayengine/util"
)

var (
	intf1Flag        string
	intf2Flag        string
	loopFlag         uint32
	speedModeFlag    string
	speedValueFlag   float32
	ppsMultiFlag     int32
	mtuFlag          int32
	limitSendFlag    int64
	accurateFlag     string
	fileCacheFlag    bool
	tcpprepCacheFlag string
	usePktHdrLenFlag bool
	sleepAccelFlag   int32
	saveDefaultsFlag bool
	metricsAddrFlag  string
)

var Cmd = &cobra.Command{
	Use:          "replay FILE [FILE...]",
	Short:        "Replay one or more capture files onto live interfaces.",
	Long:         "Replay retransmits packets from one or more capture files onto one or two live network interfaces, reproducing their original timing or a configured pacing policy.",
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := run(args); err != nil {
			return cmderr.CmdErr{Err: err}
		}
		return nil
	},
}

func init() {
	defIntf1, defIntf2 := cfg.GetDefaultInterfaces()
	defSpeedMode, defSpeedValueStr := cfg.GetDefaultSpeed()
	if defSpeedMode == "" {
		defSpeedMode = "multiplier"
	}
	defSpeedValue := float32(1.0)
	if v, err := strconv.ParseFloat(defSpeedValueStr, 32); err == nil {
		defSpeedValue = float32(v)
	}

	Cmd.Flags().StringVar(&intf1Flag, "intf1", defIntf1, "Primary egress interface.")
	Cmd.Flags().StringVar(&intf2Flag, "intf2", defIntf2, "Secondary egress interface, used only with a routing cache.")
	Cmd.Flags().Uint32Var(&loopFlag, "loop", 1, "Number of times to replay each source; 0 means loop forever.")
	Cmd.Flags().StringVar(&speedModeFlag, "speed-mode", defSpeedMode, "One of: multiplier, mbps, packetrate, topspeed, oneatatime.")
	Cmd.Flags().Float32Var(&speedValueFlag, "speed-value", defSpeedValue, "Meaning depends on --speed-mode: multiplier factor, or Mbit/s, or packets/sec.")
	Cmd.Flags().Int32Var(&ppsMultiFlag, "pps-multi", 1, "Burst size for --speed-mode=packetrate.")
	Cmd.Flags().Int32Var(&mtuFlag, "mtu", 1500, "Packets larger than this produce a warning rather than a hard failure.")
	Cmd.Flags().Int64Var(&limitSendFlag, "limit-send", -1, "Stop after sending this many packets across all sources; -1 disables the limit.")
	Cmd.Flags().StringVar(&accurateFlag, "accurate", "select", "Sleep backend: gettimeofday, nanosleep, select, rdtsc, ioport, abstime.")
	Cmd.Flags().BoolVar(&fileCacheFlag, "file-cache", false, "Cache sources in memory after their first pass, for faster looped replay.")
	Cmd.Flags().StringVar(&tcpprepCacheFlag, "tcpprep-cache", "", "Routing cache file directing packets across --intf1/--intf2 (requires exactly one source).")
	Cmd.Flags().BoolVar(&usePktHdrLenFlag, "use-pkthdr-len", false, "Pad truncated captures back to their original on-wire length before sending.")
	Cmd.Flags().Int32Var(&sleepAccelFlag, "sleep-accel", 0, "Microseconds to subtract from every computed delay, to compensate for per-packet overhead.")
	Cmd.Flags().BoolVar(&saveDefaultsFlag, "save-defaults", false, "Persist --intf1/--intf2/--speed-mode/--speed-value as defaults for future invocations.")
	Cmd.Flags().StringVar(&metricsAddrFlag, "metrics-addr", "", "If set, serve Prometheus metrics on this address (e.g. :9090) for the duration of the replay.")

	Cmd.Flags().MarkHidden("sleep-accel")
}

func run(files []string) error {
	ctx := replay.New()
	defer ctx.Close()

	if err := configure(ctx, files); err != nil {
		return err
	}

	if metricsAddrFlag != "" {
		reg := prometheus.NewRegistry()
		metrics := replay.NewPromMetrics(ctx.ID.String())
		if err := metrics.Register(reg); err != nil {
			return err
		}
		ctx.SetMetricsSink(metrics)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: metricsAddrFlag, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				printer.Stderr.Warningf("metrics server stopped: %v\n", err)
			}
		}()
		defer srv.Close()
	}

	if saveDefaultsFlag {
		if err := cfg.WriteDefaultInterfaces(intf1Flag, intf2Flag); err != nil {
			printer.Stderr.Warningf("failed to persist default interfaces: %v\n", err)
		}
		if err := cfg.WriteDefaultSpeed(speedModeFlag, formatFloat(speedValueFlag)); err != nil {
			printer.Stderr.Warningf("failed to persist default speed: %v\n", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			printer.Stderr.Infoln("received interrupt, aborting replay")
			ctx.Abort()
		case <-done:
		}
	}()

	err := ctx.Replay(-1)
	close(done)
	signal.Stop(sigCh)

	stats := ctx.GetStats()
	printer.Stdout.Infof(
		"sent %d packets (%d bytes), %d failed, over %s\n",
		stats.PktsSent, stats.BytesSent, stats.Failed, stats.EndTime.Sub(stats.StartTime),
	)

	if err != nil {
		var exitErr util.ExitError
		if replayErr, ok := err.(*replay.ReplayError); ok {
			exitErr = util.ExitError{ExitCode: exitCodeForKind(replayErr.Kind), Err: replayErr}
		} else {
			exitErr = util.ExitError{ExitCode: 1, Err: err}
		}
		return exitErr
	}
	return nil
}

// exitCodeForKind picks the process exit code for a failed replay from the
// ReplayError's kind: 2 for a configuration error, 1 for any other kind.
func exitCodeForKind(kind replay.ErrKind) int {
	switch kind {
	case replay.ErrConfiguration:
		return 2
	default:
		return 1
	}
}

func configure(ctx *replay.Context, files []string) error {
	for _, f := range files {
		if err := ctx.AddPcapFile(f); err != nil {
			return err
		}
	}

	if intf1Flag == "" {
		return errors.New("--intf1 is required")
	}
	if err := ctx.SetInterface(true, intf1Flag); err != nil {
		return err
	}
	if intf2Flag != "" {
		if err := ctx.SetInterface(false, intf2Flag); err != nil {
			return err
		}
	}

	mode, err := parseSpeedMode(speedModeFlag)
	if err != nil {
		return err
	}
	if err := ctx.SetSpeedMode(mode); err != nil {
		return err
	}
	if err := ctx.SetSpeedSpeed(speedValueFlag); err != nil {
		return err
	}
	if err := ctx.SetSpeedPPSMulti(ppsMultiFlag); err != nil {
		return err
	}

	if err := ctx.SetLoop(loopFlag); err != nil {
		return err
	}
	if err := ctx.SetSleepAccel(sleepAccelFlag); err != nil {
		return err
	}
	if err := ctx.SetUsePktHdrLen(usePktHdrLenFlag); err != nil {
		return err
	}
	if err := ctx.SetMTU(mtuFlag); err != nil {
		return err
	}
	if err := ctx.SetLimitSend(limitSendFlag); err != nil {
		return err
	}
	if err := ctx.SetFileCache(fileCacheFlag); err != nil {
		return err
	}

	accurate, err := parseAccurate(accurateFlag)
	if err != nil {
		return err
	}
	if err := ctx.SetAccurate(accurate); err != nil {
		return err
	}

	if tcpprepCacheFlag != "" {
		if err := ctx.SetTcpprepCache(tcpprepCacheFlag); err != nil {
			return err
		}
	}

	return nil
}

func parseSpeedMode(s string) (replay.SpeedMode, error) {
	switch s {
	case "multiplier":
		return replay.SpeedMultiplier, nil
	case "mbps":
		return replay.SpeedMbps, nil
	case "packetrate":
		return replay.SpeedPacketRate, nil
	case "topspeed":
		return replay.SpeedTopSpeed, nil
	case "oneatatime":
		return replay.SpeedOneAtATime, nil
	default:
		return 0, errors.Errorf("unknown --speed-mode %q", s)
	}
}

func parseAccurate(s string) (replay.SleepBackendKind, error) {
	switch s {
	case "gettimeofday":
		return replay.AccurateGetTimeOfDay, nil
	case "nanosleep":
		return replay.AccurateNanoSleep, nil
	case "select":
		return replay.AccurateSelect, nil
	case "rdtsc":
		return replay.AccurateRdtsc, nil
	case "ioport":
		return replay.AccurateIoPort, nil
	case "abstime":
		return replay.AccurateAbsTime, nil
	default:
		return 0, errors.Errorf("unknown --accurate %q", s)
	}
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'f', -1, 32)
}
