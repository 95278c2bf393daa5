// Package boundary implements §4.D: deciding when to cut a buffered speech
// span for ASR, from recent ConditionedFrame energies and VAD output.
package boundary

// Type is the boundary decision for the current frame.
type Type int

const (
	None Type = iota
	Soft
	Hard
	SentenceEnd
)

func (t Type) String() string {
	switch t {
	case Soft:
		return "Soft"
	case Hard:
		return "Hard"
	case SentenceEnd:
		return "SentenceEnd"
	default:
		return "None"
	}
}

// Config mirrors the teacher's BoundaryConfig defaults from §4.D.
type Config struct {
	SilenceThreshold        float32
	SoftBoundaryMs          int64
	HardBoundaryMs          int64
	MaxChunks               int
	MinSpeechDurationMs     int64
	EnergyVarianceThreshold float32
	MaxBufferMs             int64
	ChunkMs                 int64
}

func DefaultConfig() Config {
	return Config{
		SilenceThreshold:        0.015,
		SoftBoundaryMs:          400,
		HardBoundaryMs:          800,
		MaxChunks:               50,
		MinSpeechDurationMs:     2000,
		EnergyVarianceThreshold: 0.05,
		MaxBufferMs:             15000,
		ChunkMs:                 100,
	}
}

// chunk is one energy sample in the rolling history.
type chunk struct {
	energy    float32
	timestamp int64 // ms, absolute
}

// Detector maintains consecutive-speech/silence counters and the energy
// history window used by the boundary rules.
type Detector struct {
	cfg Config

	history              []chunk
	speechPatternBuffer  []float32
	consecutiveSilence   int
	consecutiveSpeech    int
	lastHardBoundaryMs   int64
	haveLastHardBoundary bool
}

func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Process ingests one chunk's energy level and absolute timestamp (ms),
// returning the boundary decision for this point in the stream.
func (d *Detector) Process(energy float32, timestampMs int64) Type {
	d.history = append(d.history, chunk{energy: energy, timestamp: timestampMs})
	if len(d.history) > d.cfg.MaxChunks {
		d.history = d.history[len(d.history)-d.cfg.MaxChunks:]
	}

	isSpeech := energy > d.cfg.SilenceThreshold
	if isSpeech {
		d.consecutiveSpeech++
		d.consecutiveSilence = 0
		d.speechPatternBuffer = append(d.speechPatternBuffer, energy)
		if len(d.speechPatternBuffer) > 20 {
			d.speechPatternBuffer = d.speechPatternBuffer[1:]
		}
	} else {
		d.consecutiveSilence++
		d.consecutiveSpeech = 0
	}

	return d.detectBoundary(timestampMs)
}

func (d *Detector) detectBoundary(timestampMs int64) Type {
	if d.totalSpeechDurationMs() < d.cfg.MinSpeechDurationMs {
		return None
	}

	silenceDurationMs := int64(d.consecutiveSilence) * d.cfg.ChunkMs

	if silenceDurationMs >= d.cfg.HardBoundaryMs {
		if d.validateHardBoundary() {
			d.lastHardBoundaryMs = timestampMs
			d.haveLastHardBoundary = true
			return Hard
		}
	}

	if silenceDurationMs >= d.cfg.SoftBoundaryMs {
		if d.validateSoftBoundary(timestampMs) {
			return Soft
		}
	}

	if d.detectSentenceEndingPattern() {
		return SentenceEnd
	}

	return None
}

// validateHardBoundary requires a clear energy drop from the recent speech
// mean, or a dense run of below-threshold frames in the last 8.
func (d *Detector) validateHardBoundary() bool {
	if len(d.speechPatternBuffer) < 5 {
		return false
	}

	if recent, ok := lastN(d.history, 10); ok && len(recent) > 0 {
		var sum float32
		for _, e := range d.speechPatternBuffer {
			sum += e
		}
		avg := sum / float32(len(d.speechPatternBuffer))
		if recent[0].energy < avg*0.2 {
			return true
		}
	}

	last8, _ := lastN(d.history, 8)
	silentCount := 0
	for _, c := range last8 {
		if c.energy <= d.cfg.SilenceThreshold {
			silentCount++
		}
	}
	return silentCount >= 6
}

// validateSoftBoundary rate-limits against a recent Hard boundary and
// requires the recent energy variance to sit in the "natural speech" band.
func (d *Detector) validateSoftBoundary(timestampMs int64) bool {
	if d.haveLastHardBoundary && timestampMs-d.lastHardBoundaryMs < 1000 {
		return false
	}
	return d.hasNaturalSpeechPattern()
}

func (d *Detector) hasNaturalSpeechPattern() bool {
	recent, ok := lastN(d.history, 10)
	if !ok {
		return false
	}
	var sum float32
	for _, c := range recent {
		sum += c.energy
	}
	mean := sum / float32(len(recent))

	var variance float32
	for _, c := range recent {
		d := c.energy - mean
		variance += d * d
	}
	variance /= float32(len(recent))

	return variance >= d.cfg.EnergyVarianceThreshold && variance <= 0.5
}

// detectSentenceEndingPattern looks for a monotonically descending energy
// run across at least 7 of the last 10 speech-pattern samples.
func (d *Detector) detectSentenceEndingPattern() bool {
	if len(d.speechPatternBuffer) < 10 {
		return false
	}
	n := len(d.speechPatternBuffer)
	recent := d.speechPatternBuffer[n-10:]

	descending := 0
	for i := 0; i < len(recent)-1; i++ {
		if recent[i] > recent[i+1] {
			descending++
		}
	}
	return descending >= 7
}

func (d *Detector) totalSpeechDurationMs() int64 {
	count := int64(0)
	for _, c := range d.history {
		if c.energy > d.cfg.SilenceThreshold {
			count++
		}
	}
	return count * d.cfg.ChunkMs
}

// ShouldContinueBuffering reports whether the orchestrator should keep
// accumulating audio before forcing a flush to ASR.
func (d *Detector) ShouldContinueBuffering(currentBufferMs int64) bool {
	if currentBufferMs < d.cfg.MinSpeechDurationMs {
		return true
	}
	if d.consecutiveSpeech > 0 && d.consecutiveSilence < 3 {
		return true
	}
	if currentBufferMs < d.cfg.MaxBufferMs {
		if len(d.history) == 0 {
			return true
		}
		last := d.history[len(d.history)-1]
		recent := d.detectBoundary(last.timestamp)
		return recent == None || recent == Soft
	}
	return false
}

// Reset clears all state for a new utterance/session.
func (d *Detector) Reset() {
	d.history = nil
	d.speechPatternBuffer = nil
	d.consecutiveSilence = 0
	d.consecutiveSpeech = 0
	d.haveLastHardBoundary = false
}

// Stats reports (consecutiveSpeech, consecutiveSilence, avgEnergy) for
// diagnostics/telemetry.
func (d *Detector) Stats() (int, int, float32) {
	var avg float32
	if len(d.history) > 0 {
		var sum float32
		for _, c := range d.history {
			sum += c.energy
		}
		avg = sum / float32(len(d.history))
	}
	return d.consecutiveSpeech, d.consecutiveSilence, avg
}

func lastN(chunks []chunk, n int) ([]chunk, bool) {
	if len(chunks) == 0 {
		return nil, false
	}
	if n > len(chunks) {
		n = len(chunks)
	}
	start := len(chunks) - n
	out := make([]chunk, n)
	for i := 0; i < n; i++ {
		out[i] = chunks[start+n-1-i]
	}
	return out, true
}
