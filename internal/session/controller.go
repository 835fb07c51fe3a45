// Package session runs the live clinical encounter for one appointment:
// temperature capture, the monitored session and its finalization.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"clinic-session-service/internal/biometrics"
	"clinic-session-service/internal/hardware"
	"clinic-session-service/internal/inference"
	"clinic-session-service/internal/models"
	"clinic-session-service/pkg/response"
	"clinic-session-service/pkg/sl"
)

type Phase string

const (
	PhaseTempRecord Phase = "TEMP_RECORD"
	PhaseSession    Phase = "SESSION"
	PhaseEnding     Phase = "ENDING"
)

type Bridge interface {
	State(ctx context.Context) (hardware.State, error)
	Connected(ctx context.Context) (bool, error)
	SelectPort(ctx context.Context, port string) (hardware.Selection, error)
}

type Predictor interface {
	Predict(ctx context.Context, features models.SessionAverages) (inference.Prediction, error)
}

type Committer interface {
	CommitWithRetry(ctx context.Context, rec models.SessionRecord) (*models.SessionRecord, error)
}

type Snapshot struct {
	AppointmentID string                     `json:"appointmentId"`
	Phase         Phase                      `json:"phase"`
	Label         string                     `json:"label,omitempty"`
	Port          string                     `json:"port,omitempty"`
	Connected     bool                       `json:"connected"`
	LiveTemp      *float64                   `json:"liveTemp"`
	RecordedTemp  *float64                   `json:"recordedTemp"`
	Demographics  biometrics.Demographics    `json:"demographics"`
	Duration      int                        `json:"duration"`
	Samples       map[biometrics.Channel]int `json:"samples"`
	Saved         bool                       `json:"saved"`
}

// Outcome is what End produced. Record is nil when Saved is false.
type Outcome struct {
	Record     *models.SessionRecord `json:"record,omitempty"`
	Prediction inference.Prediction  `json:"prediction"`
	Saved      bool                  `json:"saved"`
}

type Controller struct {
	log           *slog.Logger
	appointmentID string

	bridge    Bridge
	predictor Predictor
	committer Committer
	agg       *biometrics.Aggregator

	pollInterval time.Duration
	tick         time.Duration

	mu           sync.Mutex
	phase        Phase
	port         string
	connected    bool
	liveTemp     *float64
	recordedTemp *float64
	demographics biometrics.Demographics
	duration     int
	pending      *models.SessionRecord
	prediction   inference.Prediction
	saved        bool

	// stopped is set once the session is abandoned or saved; no phase
	// goroutine may start after that.
	stopped  bool
	released bool

	// stop cancels the goroutine of the current phase (poller or ticker).
	stop context.CancelFunc
	wg   sync.WaitGroup

	endMu     sync.Mutex
	onRelease func()
}

func newController(log *slog.Logger, appointmentID string, m *Manager) *Controller {
	return &Controller{
		log:           log.With(slog.String("appointment_id", appointmentID)),
		appointmentID: appointmentID,
		bridge:        m.bridge,
		predictor:     m.predictor,
		committer:     m.committer,
		agg:           biometrics.New(),
		pollInterval:  m.opts.PollInterval,
		tick:          m.opts.Tick,
		phase:         PhaseTempRecord,
	}
}

func (c *Controller) AppointmentID() string {
	return c.appointmentID
}

// begin starts the live temperature poller of the TEMP_RECORD phase.
func (c *Controller) begin() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startLocked(c.poll)
}

func (c *Controller) startLocked(loop func(ctx context.Context)) {
	if c.stopped {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.stop = cancel
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		loop(ctx)
	}()
}

// halt stops the running phase goroutine and waits for it. Must be called
// without c.mu held.
func (c *Controller) halt() {
	c.mu.Lock()
	stop := c.stop
	c.stop = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	c.wg.Wait()
}

func (c *Controller) poll(ctx context.Context) {
	t := time.NewTicker(c.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.refresh(ctx)
		}
	}
}

func (c *Controller) refresh(ctx context.Context) {
	connected, err := c.bridge.Connected(ctx)
	if err != nil || !connected {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		return
	}

	st, err := c.bridge.State(ctx)
	if err != nil {
		c.log.Debug("temperature poll failed", sl.Err(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = true
	if err == nil && st.BodyTemp != nil && *st.BodyTemp > 0 {
		v := *st.BodyTemp
		c.liveTemp = &v
	}
}

func (c *Controller) count(ctx context.Context) {
	t := time.NewTicker(c.tick)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.mu.Lock()
			c.duration++
			c.mu.Unlock()
		}
	}
}

func (c *Controller) SelectPort(ctx context.Context, port string) (hardware.Selection, error) {
	const op = "session.Controller.SelectPort"

	if err := c.requirePhase(PhaseTempRecord); err != nil {
		return hardware.Selection{}, fmt.Errorf("%s: %w", op, err)
	}

	sel, err := c.bridge.SelectPort(ctx, port)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.connected = false
		return hardware.Selection{}, fmt.Errorf("%s: %w", op, err)
	}

	c.port = sel.Port
	c.connected = sel.Connected
	c.liveTemp = nil

	return sel, nil
}

// RecordTemperature freezes the current live reading. It is never taken
// automatically.
func (c *Controller) RecordTemperature() (float64, error) {
	const op = "session.Controller.RecordTemperature"

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseTempRecord {
		return 0, fmt.Errorf("%s: %w", op, response.ErrWrongPhase)
	}

	if !c.connected || c.liveTemp == nil {
		return 0, fmt.Errorf("%s: no live reading: %w", op, response.ErrHardwareUnavailable)
	}

	v := *c.liveTemp
	c.recordedTemp = &v

	return v, nil
}

func (c *Controller) SetDemographics(d biometrics.Demographics) error {
	const op = "session.Controller.SetDemographics"

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseTempRecord {
		return fmt.Errorf("%s: %w", op, response.ErrWrongPhase)
	}

	c.demographics = d

	return nil
}

// Start moves TEMP_RECORD to SESSION. The bridge is asked live whether it is
// connected; the cached poll result is not trusted.
func (c *Controller) Start(ctx context.Context) error {
	const op = "session.Controller.Start"

	if err := c.checkGate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	connected, err := c.bridge.Connected(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !connected {
		return fmt.Errorf("%s: bridge not connected: %w", op, response.ErrHardwareUnavailable)
	}

	c.halt()

	c.mu.Lock()
	defer c.mu.Unlock()

	// state may have moved while the bridge was queried
	if err := c.checkGateLocked(); err != nil {
		if c.phase == PhaseTempRecord {
			c.startLocked(c.poll)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	c.phase = PhaseSession
	c.connected = true
	c.startLocked(c.count)

	c.log.Info("session started",
		slog.Float64("recorded_temp", *c.recordedTemp),
		slog.Int("age", c.demographics.Age),
	)

	return nil
}

func (c *Controller) checkGate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.checkGateLocked()
}

func (c *Controller) checkGateLocked() error {
	if c.stopped || c.phase != PhaseTempRecord {
		return response.ErrWrongPhase
	}

	d := c.demographics
	if c.recordedTemp == nil || d.Age <= 0 || d.Gender == "" || d.Province == "" {
		return response.ErrPhaseGate
	}

	return nil
}

func (c *Controller) Ingest(s biometrics.Sample) error {
	const op = "session.Controller.Ingest"

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseSession {
		return fmt.Errorf("%s: %w", op, response.ErrWrongPhase)
	}

	c.agg.Ingest(s)

	return nil
}

// End closes the session, asks the model for a prediction and commits the
// record. A model failure degrades the prediction to Unknown; a commit
// failure leaves the session in ENDING with Saved=false so End can be called
// again to retry the save.
func (c *Controller) End(ctx context.Context, prescription *string) (Outcome, error) {
	const op = "session.Controller.End"

	c.endMu.Lock()
	defer c.endMu.Unlock()

	c.mu.Lock()
	switch {
	case c.phase == PhaseSession:
		c.phase = PhaseEnding
	case c.phase == PhaseEnding && !c.saved && c.pending != nil:
		c.mu.Unlock()
		return c.commit(ctx, op)
	case c.phase == PhaseEnding && c.saved:
		out := Outcome{Record: c.pending, Prediction: c.prediction, Saved: true}
		c.mu.Unlock()
		return out, nil
	default:
		c.mu.Unlock()
		return Outcome{}, fmt.Errorf("%s: %w", op, response.ErrWrongPhase)
	}
	c.mu.Unlock()

	c.halt()

	c.mu.Lock()
	recordedTemp := c.recordedTemp
	demographics := c.demographics
	duration := c.duration
	c.mu.Unlock()

	averages := c.agg.Averages(recordedTemp, demographics)

	prediction, err := c.predictor.Predict(ctx, averages)
	if err != nil {
		c.log.Warn("inference unavailable, recording Unknown", sl.Err(err))
		prediction = inference.Unknown()
	}

	rec := &models.SessionRecord{
		AppointmentID: c.appointmentID,
		Duration:      duration,
		RecordedTemp:  recordedTemp,
		Prescription:  prescription,
		Prediction:    prediction.Prediction,
		Probability:   prediction.Probability,
		Confidence:    prediction.Confidence,
		Averages:      averages,
	}

	c.mu.Lock()
	c.pending = rec
	c.prediction = prediction
	c.mu.Unlock()

	return c.commit(ctx, op)
}

func (c *Controller) commit(ctx context.Context, op string) (Outcome, error) {
	c.mu.Lock()
	rec := *c.pending
	prediction := c.prediction
	c.mu.Unlock()

	// the record must not be lost because the caller went away
	saved, err := c.committer.CommitWithRetry(context.WithoutCancel(ctx), rec)
	if err != nil {
		c.log.Error("session record not saved", sl.Err(err))

		if !errors.Is(err, response.ErrNotSaved) {
			err = fmt.Errorf("%w: %v", response.ErrNotSaved, err)
		}

		return Outcome{Prediction: prediction, Saved: false}, fmt.Errorf("%s: %w", op, err)
	}

	c.mu.Lock()
	c.pending = saved
	c.saved = true
	c.mu.Unlock()

	c.release()

	c.log.Info("session ended",
		slog.String("prediction", saved.Prediction),
		slog.Int("duration", saved.Duration),
	)

	return Outcome{Record: saved, Prediction: prediction, Saved: true}, nil
}

// Abandon stops the session without persisting anything.
func (c *Controller) Abandon() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	c.halt()

	c.mu.Lock()
	wasSaved := c.saved
	c.mu.Unlock()

	if !wasSaved {
		c.log.Info("session abandoned")
	}

	c.release()
}

func (c *Controller) release() {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.released = true
	onRelease := c.onRelease
	c.mu.Unlock()

	if onRelease != nil {
		onRelease()
	}
}

func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		AppointmentID: c.appointmentID,
		Phase:         c.phase,
		Port:          c.port,
		Connected:     c.connected,
		LiveTemp:      copyFloat(c.liveTemp),
		RecordedTemp:  copyFloat(c.recordedTemp),
		Demographics:  c.demographics,
		Duration:      c.duration,
		Samples:       c.agg.Counts(),
		Saved:         c.saved,
	}

	if c.phase == PhaseSession {
		s.Label = models.InProgressLabel
	}

	return s
}

func (c *Controller) requirePhase(p Phase) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != p {
		return response.ErrWrongPhase
	}

	return nil
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}

	cp := *v
	return &cp
}
