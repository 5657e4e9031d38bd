package solver

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Penalty selects the spatial regulariser.
type Penalty int

const (
	// SmoothLasso is the Graph-Net penalty: L1 plus the squared norm of the
	// spatial gradient.
	SmoothLasso Penalty = iota
	// TVL1 is the exact total-variation plus L1 penalty.
	TVL1
)

func (p Penalty) String() string {
	switch p {
	case SmoothLasso:
		return "smooth-lasso"
	case TVL1:
		return "tv-l1"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Penalty) MarshalText() ([]byte, error) {
	if p != SmoothLasso && p != TVL1 {
		return nil, errors.Wrapf(ErrUnknownKind, "penalty %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Penalty) UnmarshalText(text []byte) error {
	v, err := ParsePenalty(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePenalty accepts "smooth-lasso" (alias "graph-net") and "tv-l1",
// case-insensitively.
func ParsePenalty(s string) (Penalty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "smooth-lasso", "smooth_lasso", "graph-net", "graphnet":
		return SmoothLasso, nil
	case "tv-l1", "tvl1", "tv_l1":
		return TVL1, nil
	}
	return 0, errors.Wrapf(ErrUnknownKind, "penalty %q", s)
}

// Loss selects the data-fit term.
type Loss int

const (
	// MSE is the squared error 0.5*||y - Xw||^2.
	MSE Loss = iota
	// Logistic is the logistic loss with an explicit intercept.
	Logistic
)

func (l Loss) String() string {
	switch l {
	case MSE:
		return "mse"
	case Logistic:
		return "logistic"
	default:
		return "unknown"
	}
}

// lipschitzMargin is the factor applied to the Lipschitz bound of the
// smooth part before it sets the solver stepsize.
func (l Loss) lipschitzMargin() float64 {
	if l == Logistic {
		return 1.1
	}
	return 1.05
}

// MarshalText implements encoding.TextMarshaler.
func (l Loss) MarshalText() ([]byte, error) {
	if l != MSE && l != Logistic {
		return nil, errors.Wrapf(ErrUnknownKind, "loss %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Loss) UnmarshalText(text []byte) error {
	v, err := ParseLoss(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// ParseLoss accepts "mse" and "logistic".
func ParseLoss(s string) (Loss, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mse", "squared", "squared-loss":
		return MSE, nil
	case "logistic":
		return Logistic, nil
	}
	return 0, errors.Wrapf(ErrUnknownKind, "loss %q", s)
}

// Func is the common signature of the four adapters.
type Func func(p Params) (Result, error)

// For maps a (penalty, loss) pair to its adapter.
func For(penalty Penalty, loss Loss) (Func, error) {
	switch penalty {
	case SmoothLasso:
		switch loss {
		case MSE:
			return SmoothLassoSquaredLoss, nil
		case Logistic:
			return SmoothLassoLogistic, nil
		}
	case TVL1:
		switch loss {
		case MSE:
			return TVL1SquaredLoss, nil
		case Logistic:
			return TVL1Logistic, nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownKind, "penalty %v, loss %v", penalty, loss)
}
