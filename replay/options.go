package replay

// MaxFiles bounds the number of sources a single context may replay.
const MaxFiles = 1024

// SpeedMode selects one of the timing controller's five pacing models.
type SpeedMode int

const (
	SpeedMultiplier SpeedMode = iota
	SpeedMbps
	SpeedPacketRate
	SpeedTopSpeed
	SpeedOneAtATime
)

// SleepBackendKind selects one of the six sleep-backend variants.
type SleepBackendKind int

const (
	AccurateGetTimeOfDay SleepBackendKind = iota
	AccurateNanoSleep
	AccurateSelect
	AccurateRdtsc
	AccurateIoPort
	AccurateAbsTime
)

// SourceKind distinguishes the three packet-source variants.
type SourceKind int

const (
	SourceFilename SourceKind = iota
	SourceFD
	SourceCache
)

// SourceSpec describes one configured replay source in declaration order.
type SourceSpec struct {
	Kind     SourceKind
	Filename string // SourceFilename
	FD       int    // SourceFD
}

// SpeedSpec configures the timing controller.
type SpeedSpec struct {
	Mode     SpeedMode
	Value    float32 // Multiplier factor, Mbit/s rate, or PacketRate packets/sec, per Mode
	PPSMulti int32   // PacketRate burst size; ≥1

	// ManualCallback gates each packet in SpeedOneAtATime mode; the next
	// packet is sent only after it returns.
	ManualCallback func()
}

// Options is the configuration record mutated only through the setters
// below until Replay is entered.
type Options struct {
	Loop         uint32
	SleepAccelUs int32
	UsePktHdrLen bool
	MTU          uint32
	LimitSend    int64 // -1 disables; kept signed so "unset" and "zero" are distinguishable.
	EnableCache  bool
	Accurate     SleepBackendKind
	Speed        SpeedSpec
	Sources      []SourceSpec
	Intf1Name    string
	Intf2Name    string
	RoutingCache *RoutingCache
	Comment      string
}

func defaultOptions() Options {
	return Options{
		Loop:      1,
		LimitSend: -1,
		Accurate:  AccurateSelect,
		Speed:     SpeedSpec{Mode: SpeedMultiplier, Value: 1.0, PPSMulti: 1},
	}
}

// setInterface assigns the primary or secondary egress name. Link-layer
// consistency across the two egresses (invariant 2) is enforced at open
// time in Context.SetInterface, since it requires the live handle's dlt().
func (o *Options) setInterface(primary bool, name string) {
	if primary {
		o.Intf1Name = name
	} else {
		o.Intf2Name = name
	}
}

func (o *Options) addSource(spec SourceSpec) error {
	if len(o.Sources) >= MaxFiles {
		return configErrorf("source count exceeds MAX_FILES (%d)", MaxFiles)
	}
	o.Sources = append(o.Sources, spec)
	return nil
}
