package index

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wizenheimer/comet"
)

// ErrUnknownMetric is returned for metric names other than cosine and l2.
var ErrUnknownMetric = errors.New("unknown distance metric")

// Metric names the distance a query is ranked by. Lower distance means more similar.
type Metric string

const (
	// Cosine is 1 - cos(a, b). Vectors are normalised once when added, so zero vectors
	// cannot be indexed under it. Range [0, 2].
	Cosine Metric = "cosine"

	// L2 is the Euclidean distance; vectors are stored as-is.
	L2 Metric = "l2"
)

// ParseMetric accepts "cosine" and "l2" (also "euclidean"), case-insensitive.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cosine":
		return Cosine, nil
	case "l2", "euclidean":
		return L2, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
}

func (m Metric) kind() (comet.DistanceKind, error) {
	switch m {
	case Cosine:
		return comet.Cosine, nil
	case L2:
		return comet.Euclidean, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, m)
}
