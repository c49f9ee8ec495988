package colorspace

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnknownMetric is returned by NewMetric for unrecognized metric names.
var ErrUnknownMetric = errors.New("unknown mixing error metric")

// Metric measures the perceptual distance between a mixed colour and its
// target. Lower is better; identical colours have distance 0.
type Metric interface {
	Distance(mixed, target Lab) float64
	Name() string
}

// Metric names accepted by NewMetric.
const (
	MetricDeltaE2000 = "DeltaE2000"
	MetricDeltaE76   = "DeltaE76"
)

// NewMetric returns the metric registered under name.
func NewMetric(name string) (Metric, error) {
	switch name {
	case MetricDeltaE2000:
		return NewDeltaE2000(), nil
	case MetricDeltaE76:
		return DeltaE76{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
}

// DeltaE76 is the Euclidean distance in Lab space (CIE76).
type DeltaE76 struct{}

func (DeltaE76) Name() string { return MetricDeltaE76 }

func (DeltaE76) Distance(mixed, target Lab) float64 {
	dl := target.L - mixed.L
	da := target.A - mixed.A
	db := target.B - mixed.B
	return math.Sqrt(dl*dl + da*da + db*db)
}

// DeltaE2000 is the CIEDE2000 colour difference (Sharma, Wu & Dalal 2005)
// with lightness, chroma and hue weighting factors. A zero factor is treated
// as 1.
type DeltaE2000 struct {
	KL, KC, KH float64
}

// NewDeltaE2000 returns CIEDE2000 with kL = kC = kH = 1.
func NewDeltaE2000() DeltaE2000 {
	return DeltaE2000{KL: 1, KC: 1, KH: 1}
}

func (DeltaE2000) Name() string { return MetricDeltaE2000 }

var pow25to7 = math.Pow(25, 7)

func (d DeltaE2000) Distance(mixed, target Lab) float64 {
	kl, kc, kh := orOne(d.KL), orOne(d.KC), orOne(d.KH)
	l1, a1, b1 := mixed.L, mixed.A, mixed.B
	l2, a2, b2 := target.L, target.A, target.B

	c1 := math.Sqrt(a1*a1 + b1*b1)
	c2 := math.Sqrt(a2*a2 + b2*b2)
	cBar7 := math.Pow((c1+c2)/2, 7)
	g := 0.5 * (1 - math.Sqrt(cBar7/(cBar7+pow25to7)))

	a1p := (1 + g) * a1
	a2p := (1 + g) * a2
	c1p := math.Sqrt(a1p*a1p + b1*b1)
	c2p := math.Sqrt(a2p*a2p + b2*b2)
	cBarP := (c1p + c2p) / 2

	h1p := hueDegrees(a1p, b1)
	h2p := hueDegrees(a2p, b2)

	dLp := l2 - l1
	dCp := c2p - c1p

	chromaProduct := c1p * c2p
	var dHp float64
	if chromaProduct != 0 {
		dh := h2p - h1p
		if dh > 180 {
			dh -= 360
		} else if dh < -180 {
			dh += 360
		}
		dHp = 2 * math.Sqrt(chromaProduct) * sinDeg(dh/2)
	}

	lBarP := (l1 + l2) / 2

	var hBarP float64
	switch {
	case chromaProduct == 0:
		hBarP = h1p + h2p
	case math.Abs(h1p-h2p) > 180 && h1p+h2p < 360:
		hBarP = (h1p + h2p + 360) / 2
	case math.Abs(h1p-h2p) > 180:
		hBarP = (h1p + h2p - 360) / 2
	default:
		hBarP = (h1p + h2p) / 2
	}

	t := 1 -
		0.17*cosDeg(hBarP-30) +
		0.24*cosDeg(2*hBarP) +
		0.32*cosDeg(3*hBarP+6) -
		0.20*cosDeg(4*hBarP-63)

	lDev := (lBarP - 50) * (lBarP - 50)
	sl := 1 + 0.015*lDev/math.Sqrt(20+lDev)
	sc := 1 + 0.045*cBarP
	sh := 1 + 0.015*cBarP*t

	dTheta := 30 * math.Exp(-math.Pow((hBarP-275)/25, 2))
	cBarP7 := math.Pow(cBarP, 7)
	rc := 2 * math.Sqrt(cBarP7/(cBarP7+pow25to7))
	rt := -sinDeg(2*dTheta) * rc

	lTerm := dLp / (kl * sl)
	cTerm := dCp / (kc * sc)
	hTerm := dHp / (kh * sh)

	return math.Sqrt(lTerm*lTerm + cTerm*cTerm + hTerm*hTerm + rt*cTerm*hTerm)
}

func hueDegrees(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 0
	}
	h := math.Atan2(b, a) * 180 / math.Pi
	if h < 0 {
		h += 360
	}
	return h
}

func sinDeg(deg float64) float64 { return math.Sin(deg * math.Pi / 180) }
func cosDeg(deg float64) float64 { return math.Cos(deg * math.Pi / 180) }

func orOne(k float64) float64 {
	if k == 0 {
		return 1
	}
	return k
}
