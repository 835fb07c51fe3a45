// Package biometrics accumulates live session samples per channel and turns
// them into the averages stored with a session record.
package biometrics

import (
	"math"
	"sync"

	"clinic-session-service/internal/models"
)

type Channel string

const (
	HeartRate      Channel = "heart_rate"
	SpeechNoise    Channel = "speech_noise_db"
	MovementLevel  Channel = "movement_level"
	FacialStress   Channel = "facial_stress_score"
	ECGVariability Channel = "ecg_variability"
)

// Neutral values used when a channel received no samples at all.
const (
	DefaultHeartRate      = 75.0
	DefaultSpeechNoise    = 40.0
	DefaultECGVariability = 50.0
	DefaultMovementLevel  = 0.0
	DefaultFacialStress   = 0.0
	DefaultBodyTemp       = 36.5
)

var defaults = map[Channel]float64{
	HeartRate:      DefaultHeartRate,
	SpeechNoise:    DefaultSpeechNoise,
	MovementLevel:  DefaultMovementLevel,
	FacialStress:   DefaultFacialStress,
	ECGVariability: DefaultECGVariability,
}

// Sample is one reading from the live monitor.
type Sample struct {
	HeartRate     float64 `json:"heartRate"`
	SpeechNoise   float64 `json:"speechNoise"`
	MovementLevel float64 `json:"movementLevel"`
	FacialStress  float64 `json:"facialStress"`
}

type Demographics struct {
	Age      int    `json:"age"`
	Gender   string `json:"gender"`
	Province string `json:"province"`
}

// Aggregator is safe for concurrent use.
type Aggregator struct {
	mu      sync.Mutex
	samples map[Channel][]float64
}

func New() *Aggregator {
	return &Aggregator{samples: make(map[Channel][]float64, len(defaults))}
}

func (a *Aggregator) Ingest(s Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if s.HeartRate > 0 {
		a.samples[HeartRate] = append(a.samples[HeartRate], s.HeartRate)
		a.samples[ECGVariability] = append(a.samples[ECGVariability], math.Max(0, 120-s.HeartRate))
	}

	if s.SpeechNoise > 0 {
		a.samples[SpeechNoise] = append(a.samples[SpeechNoise], s.SpeechNoise)
	}

	a.samples[MovementLevel] = append(a.samples[MovementLevel], s.MovementLevel)
	a.samples[FacialStress] = append(a.samples[FacialStress], s.FacialStress)
}

// Average is the arithmetic mean over the whole session, 0 when empty.
func (a *Aggregator) Average(ch Channel) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	avg, _ := mean(a.samples[ch])
	return avg
}

// Counts reports how many samples each channel holds.
func (a *Aggregator) Counts() map[Channel]int {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[Channel]int, len(defaults))
	for ch := range defaults {
		out[ch] = len(a.samples[ch])
	}

	return out
}

// Averages rounds every channel mean to one decimal. Only a channel with no
// samples falls back to its neutral value; a real mean of 0 is kept.
func (a *Aggregator) Averages(recordedTemp *float64, d Demographics) models.SessionAverages {
	a.mu.Lock()
	defer a.mu.Unlock()

	bodyTemp := DefaultBodyTemp
	if recordedTemp != nil {
		bodyTemp = *recordedTemp
	}

	return models.SessionAverages{
		HeartRate:         a.channelAverage(HeartRate),
		BodyTemp:          round1(bodyTemp),
		SpeechNoiseDB:     a.channelAverage(SpeechNoise),
		MovementLevel:     a.channelAverage(MovementLevel),
		ECGVariability:    a.channelAverage(ECGVariability),
		FacialStressScore: a.channelAverage(FacialStress),
		Age:               d.Age,
		Gender:            d.Gender,
		Province:          d.Province,
	}
}

func (a *Aggregator) channelAverage(ch Channel) float64 {
	avg, ok := mean(a.samples[ch])
	if !ok {
		return defaults[ch]
	}

	return round1(avg)
}

func mean(xs []float64) (float64, bool) {
	if len(xs) == 0 {
		return 0, false
	}

	var sum float64
	for _, x := range xs {
		sum += x
	}

	return sum / float64(len(xs)), true
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
