package engine

import (
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"signal-desk/src/interfaces"
	"signal-desk/src/logger"
	"signal-desk/src/models"
)

// -----------------------------------------------------------------------------
// SignalEngine produces directional calls and adapts them to user feedback.
// The direction policy is a function of the bias the caller passes in: a
// failed call flips, a confirmed call repeats, anything else is a fresh coin
// toss. The engine itself holds no bias; history is display and persistence
// only.
// -----------------------------------------------------------------------------

// Confidence bounds, inclusive.
const (
	probabilityFloor = 85
	probabilityCeil  = 96
)

var ErrSignalNotFound = errors.New("signal not found")

// -----------------------------------------------------------------------------

type SignalEngine struct {
	Logger *logger.Logger
	Now    func() time.Time

	mu      sync.Mutex
	history []models.MSignal // newest first
	disk    interfaces.IStateStore
}

// -----------------------------------------------------------------------------

func NewSignalEngine(disk interfaces.IStateStore, log *logger.Logger) *SignalEngine {
	return &SignalEngine{
		Logger: log,
		Now:    time.Now,
		disk:   disk,
	}
}

// -----------------------------------------------------------------------------

// Load restores the persisted signal history, newest first. The restored
// entries feed the history view only and never seed a direction bias.
// Fails soft.
func (e *SignalEngine) Load() {
	e.mu.Lock()
	defer e.mu.Unlock()

	signals, err := e.disk.LoadSignals()
	if err != nil {
		e.Logger.Warning("Signal history load failed, starting empty: %v", err)
		return
	}
	e.history = signals
}

// -----------------------------------------------------------------------------

// newSignalID builds a short uppercase reference like INF-7F3A21C9.
func newSignalID() string {
	fragment := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return "INF-" + fragment
}

// -----------------------------------------------------------------------------

// CreateSignal produces a new pending signal for the pair and prepends it to
// the history. The direction bias is an explicit input: prev is the caller's
// previous signal and prevFeedback the outcome the caller recorded for it.
// The caller owns that marker and decides when directional memory is
// forfeited; nothing here is ever inferred from stored history.
func (e *SignalEngine) CreateSignal(instrument, timeframe string, prev *models.MSignal, prevFeedback models.MSignalStatus) models.MSignal {
	e.mu.Lock()
	defer e.mu.Unlock()

	var direction models.MDirection
	switch {
	case prev != nil && prevFeedback == models.StatusFailed:
		direction = prev.Direction.Opposite()
	case prev != nil && prevFeedback == models.StatusConfirmed:
		direction = prev.Direction
	default:
		if rand.Intn(2) == 0 {
			direction = models.DirectionBuy
		} else {
			direction = models.DirectionSell
		}
	}

	signal := models.MSignal{
		ID:          newSignalID(),
		Instrument:  instrument,
		Timeframe:   timeframe,
		Direction:   direction,
		Probability: probabilityFloor + rand.Intn(probabilityCeil-probabilityFloor+1),
		Timestamp:   e.Now().UnixMilli(),
		Status:      models.StatusPending,
	}

	e.history = append([]models.MSignal{signal}, e.history...)
	e.persistLocked(signal)

	e.Logger.Info("Signal %s: %s %s @ %d%%", signal.ID, signal.Direction, instrument, signal.Probability)
	return signal
}

// -----------------------------------------------------------------------------

// RecordFeedback marks a signal's outcome. The updated entry keeps its place
// in the history so the next CreateSignal sees it.
func (e *SignalEngine) RecordFeedback(id string, outcome models.MSignalStatus) (models.MSignal, error) {
	if outcome != models.StatusConfirmed && outcome != models.StatusFailed {
		return models.MSignal{}, errors.New("outcome must be CONFIRMED or FAILED")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.history {
		if e.history[i].ID == id {
			e.history[i].Status = outcome
			e.persistLocked(e.history[i])
			return e.history[i], nil
		}
	}
	return models.MSignal{}, ErrSignalNotFound
}

// -----------------------------------------------------------------------------

// History returns a copy of the signal history, newest first.
func (e *SignalEngine) History() []models.MSignal {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.MSignal, len(e.history))
	copy(out, e.history)
	return out
}

// -----------------------------------------------------------------------------

func (e *SignalEngine) persistLocked(signal models.MSignal) {
	if err := e.disk.SaveSignal(signal); err != nil {
		e.Logger.Warning("Signal persist failed for %s: %v", signal.ID, err)
	}
}
