package ml

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrConfiguration marks an invalid topology or initialisation request.
	// It is fatal: callers should abort rather than retry.
	ErrConfiguration = errors.New("configuration error")

	// ErrPrecondition marks a call made with buffers or lengths that do not
	// fit the engine (short buffers, T > maxSeqLen, delta before activate).
	ErrPrecondition = errors.New("precondition violation")

	// ErrNumericInstability is returned together with a cost when the cost or
	// gradient contains NaN or Inf. Training loops may skip the minibatch.
	ErrNumericInstability = errors.New("numeric instability")
)

var logger = logrus.New()

// SetLogger replaces the package logger. A nil logger is ignored.
func SetLogger(l *logrus.Logger) {
	if l != nil {
		logger = l
	}
}

// Logger returns the package logger.
func Logger() *logrus.Logger {
	return logger
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func preconditionErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

// checkFinite reports ErrNumericInstability if cost or any gradient entry is
// NaN or infinite. The caller still receives the cost.
func checkFinite(model string, cost float64, grad []float64) error {
	if !floats.HasNaN(grad) && !isInf(grad) && !isBad(cost) {
		return nil
	}
	logger.WithFields(logrus.Fields{
		"model": model,
		"cost":  cost,
	}).Warn("non-finite cost or gradient")
	return fmt.Errorf("%w: %s produced non-finite cost or gradient", ErrNumericInstability, model)
}

func isBad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func isInf(xs []float64) bool {
	for _, v := range xs {
		if math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
