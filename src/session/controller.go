package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"signal-desk/src/engine"
	"signal-desk/src/entitlement"
	"signal-desk/src/logger"
	"signal-desk/src/models"
)

// -----------------------------------------------------------------------------
// Controller drives the single interactive session through its cycle:
// idle -> instrument-selected -> timeframe-selected -> analyzing -> result,
// then back to idle for the next round. Every transition is validated; the
// analysis step runs on timers that a Back cancels.
// -----------------------------------------------------------------------------

type State string

const (
	StateIdle               State = "idle"
	StateInstrumentSelected State = "instrument-selected"
	StateTimeframeSelected  State = "timeframe-selected"
	StateAnalyzing          State = "analyzing"
	StateResult             State = "result"
)

var (
	ErrQuotaExceeded     = errors.New("signal quota exceeded")
	ErrUnknownInstrument = errors.New("unknown instrument")
	ErrUnknownTimeframe  = errors.New("unknown timeframe")
	ErrNoResult          = errors.New("no signal to rate")
)

// -----------------------------------------------------------------------------

// MView is the serializable snapshot served to clients.
type MView struct {
	State         State           `json:"state"`
	Instrument    string          `json:"instrument,omitempty"`
	Timeframe     string          `json:"timeframe,omitempty"`
	Signal        *models.MSignal `json:"signal,omitempty"`
	FeedbackGiven bool            `json:"feedbackGiven"`
	Remaining     int             `json:"remaining"`
}

// -----------------------------------------------------------------------------

type Controller struct {
	Config       *models.MConfig
	Entitlements *entitlement.Store
	Engine       *engine.SignalEngine
	Logger       *logger.Logger

	mu            sync.Mutex
	state         State
	instrument    string
	timeframe     string
	current       *models.MSignal
	feedbackGiven bool

	// Direction bias, owned by the session: the previous signal and the
	// outcome the user rated it with. Consumed by the next creation and
	// forfeited on any return to idle; never reconstructed from history.
	lastSignal   *models.MSignal
	lastFeedback models.MSignalStatus

	// generation invalidates pending timer callbacks after a Back or reset.
	generation    int
	analysisTimer *time.Timer
	revealTimer   *time.Timer
}

// -----------------------------------------------------------------------------

func NewController(cfg *models.MConfig, ent *entitlement.Store, eng *engine.SignalEngine, log *logger.Logger) *Controller {
	return &Controller{
		Config:       cfg,
		Entitlements: ent,
		Engine:       eng,
		Logger:       log,
		state:        StateIdle,
	}
}

// -----------------------------------------------------------------------------

// SelectInstrument starts a round. The quota is checked but not consumed;
// consumption happens only when the analysis completes.
func (c *Controller) SelectInstrument(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle && c.state != StateInstrumentSelected {
		return c.transitionError("select instrument")
	}

	if !c.Entitlements.HasQuota() {
		return ErrQuotaExceeded
	}

	found := false
	for _, inst := range c.Config.Instruments {
		if inst.ID == id {
			found = true
			break
		}
	}
	if !found {
		return ErrUnknownInstrument
	}

	c.instrument = id
	c.state = StateInstrumentSelected
	return nil
}

// -----------------------------------------------------------------------------

// SelectTimeframe picks the horizon for the selected instrument.
func (c *Controller) SelectTimeframe(tf string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateInstrumentSelected && c.state != StateTimeframeSelected {
		return c.transitionError("select timeframe")
	}

	found := false
	for _, known := range c.Config.Timeframes {
		if known == tf {
			found = true
			break
		}
	}
	if !found {
		return ErrUnknownTimeframe
	}

	c.timeframe = tf
	c.state = StateTimeframeSelected
	return nil
}

// -----------------------------------------------------------------------------

// StartAnalysis kicks off the timed analysis phase. The quota is consumed and
// the signal produced when the analysis timer fires, not here, so a Back
// during the phase costs nothing.
func (c *Controller) StartAnalysis() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateTimeframeSelected {
		return c.transitionError("start analysis")
	}
	if !c.Entitlements.HasQuota() {
		return ErrQuotaExceeded
	}

	c.scheduleAnalysisLocked()
	return nil
}

// scheduleAnalysisLocked enters the analyzing state and arms the timer.
func (c *Controller) scheduleAnalysisLocked() {
	c.state = StateAnalyzing
	c.generation++
	gen := c.generation

	analysis := time.Duration(c.Config.Session.AnalysisSeconds) * time.Second
	c.analysisTimer = time.AfterFunc(analysis, func() { c.completeAnalysis(gen) })
}

// -----------------------------------------------------------------------------

// completeAnalysis runs when the analysis window elapses. Consume-then-create
// happens in one critical section, so concurrent completions can never mint a
// signal past the quota.
func (c *Controller) completeAnalysis(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.state != StateAnalyzing {
		return
	}

	if !c.Entitlements.TryConsume() {
		c.Logger.Info("Quota denied at analysis completion, returning to idle")
		c.resetLocked()
		return
	}

	signal := c.Engine.CreateSignal(c.instrumentName(), c.timeframe, c.lastSignal, c.lastFeedback)
	c.current = &signal
	c.feedbackGiven = false

	// The bias is single-use: it applied to this creation and is gone until
	// the user rates the new signal.
	c.lastSignal = &signal
	c.lastFeedback = ""

	reveal := time.Duration(c.Config.Session.RevealDelayMillis) * time.Millisecond
	c.revealTimer = time.AfterFunc(reveal, func() { c.reveal(gen) })
}

func (c *Controller) reveal(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.state != StateAnalyzing {
		return
	}
	c.state = StateResult
}

// -----------------------------------------------------------------------------

// Feedback records the outcome of the revealed signal. A round may be rated
// more than once; the last write wins, both in the history and as the bias
// for the next creation.
func (c *Controller) Feedback(outcome models.MSignalStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateResult || c.current == nil {
		return ErrNoResult
	}

	updated, err := c.Engine.RecordFeedback(c.current.ID, outcome)
	if err != nil {
		return err
	}

	c.current = &updated
	c.lastSignal = &updated
	c.lastFeedback = outcome
	c.feedbackGiven = true
	return nil
}

// -----------------------------------------------------------------------------

// NewCycle closes the round and, quota permitting, re-enters the analysis
// phase directly with the same instrument and timeframe. Only a quota denial
// routes back to idle.
func (c *Controller) NewCycle() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateResult {
		return c.transitionError("start new cycle")
	}

	if !c.Entitlements.HasQuota() {
		c.resetLocked()
		return ErrQuotaExceeded
	}

	c.current = nil
	c.feedbackGiven = false
	c.scheduleAnalysisLocked()
	return nil
}

// -----------------------------------------------------------------------------

// Back abandons the round and returns to idle from any stage. Backing out of
// an analysis cancels its timers before any quota is spent, and any recorded
// direction bias is forfeited with the round.
func (c *Controller) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateIdle {
		return c.transitionError("go back")
	}

	c.resetLocked()
	return nil
}

// -----------------------------------------------------------------------------

// View returns the client-facing snapshot of the session.
func (c *Controller) View() MView {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := MView{
		State:         c.state,
		Instrument:    c.instrument,
		Timeframe:     c.timeframe,
		FeedbackGiven: c.feedbackGiven,
		Remaining:     c.Entitlements.Remaining(),
	}
	if c.current != nil && c.state == StateResult {
		cp := *c.current
		view.Signal = &cp
	}
	return view
}

// -----------------------------------------------------------------------------

func (c *Controller) resetLocked() {
	c.cancelTimersLocked()
	c.state = StateIdle
	c.instrument = ""
	c.timeframe = ""
	c.current = nil
	c.feedbackGiven = false
	c.lastSignal = nil
	c.lastFeedback = ""
}

func (c *Controller) cancelTimersLocked() {
	c.generation++
	if c.analysisTimer != nil {
		c.analysisTimer.Stop()
		c.analysisTimer = nil
	}
	if c.revealTimer != nil {
		c.revealTimer.Stop()
		c.revealTimer = nil
	}
}

// instrumentName resolves the selected catalog id to its display name.
func (c *Controller) instrumentName() string {
	for _, inst := range c.Config.Instruments {
		if inst.ID == c.instrument {
			return inst.Name
		}
	}
	return c.instrument
}

func (c *Controller) transitionError(action string) error {
	return fmt.Errorf("cannot %s from state %s", action, c.state)
}
