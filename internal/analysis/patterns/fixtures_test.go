package patterns

import (
	"math"
	"reflect"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"

	"pattern-scanner/internal/models"
)

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// build turns closes into daily candles with a 0.3 wick on both sides and
// steadily fading volume.
func build(closes []float64) []models.Candle {
	candles := make([]models.Candle, len(closes))
	for i, c := range closes {
		candles[i] = models.Candle{
			Timestamp: baseTime.AddDate(0, 0, i),
			Open:      c,
			High:      c + 0.3,
			Low:       c - 0.3,
			Close:     c,
			Volume:    int64(100000 - i*500),
		}
	}
	return candles
}

type knot struct {
	i     int
	price float64
}

// zigzag interpolates closes linearly between knots, which must start at 0
// and end at n-1.
func zigzag(n int, knots ...knot) []models.Candle {
	closes := make([]float64, n)
	for k := 1; k < len(knots); k++ {
		a, b := knots[k-1], knots[k]
		for i := a.i; i <= b.i; i++ {
			closes[i] = a.price + (b.price-a.price)*float64(i-a.i)/float64(b.i-a.i)
		}
	}
	return build(closes)
}

// doubleTopSeries is the 60-bar reference double top: peaks at 10 (130) and
// 39 (129), valley low 120 at 24, close 115 at bar 50.
func doubleTopSeries() []models.Candle {
	closes := make([]float64, 60)
	for i := 0; i <= 9; i++ {
		closes[i] = 100 + float64(i)*3
	}
	closes[10] = 129.5
	for i := 11; i <= 24; i++ {
		closes[i] = 129 - float64(i-10)*0.6
	}
	for i := 25; i <= 38; i++ {
		closes[i] = 120.6 + float64(i-24)*0.55
	}
	closes[39] = 128.5
	for i := 40; i <= 49; i++ {
		closes[i] = 128.5 - float64(i-39)*0.9
	}
	closes[50] = 115
	for i := 51; i <= 59; i++ {
		closes[i] = 115 - float64(i-50)*0.8
	}

	candles := build(closes)
	candles[10].High, candles[10].Low = 130, 129.2
	candles[24].Low = 120
	candles[39].High, candles[39].Low = 129, 128.2
	return candles
}

func doubleBottomSeries() []models.Candle {
	return zigzag(60,
		knot{0, 130}, knot{10, 100}, knot{24, 110}, knot{39, 101}, knot{59, 125})
}

func tripleTopSeries() []models.Candle {
	return zigzag(90,
		knot{0, 100}, knot{12, 130}, knot{22, 118}, knot{34, 129.5},
		knot{44, 118.5}, knot{56, 130.5}, knot{89, 100})
}

func tripleBottomSeries() []models.Candle {
	return zigzag(90,
		knot{0, 140}, knot{12, 110}, knot{22, 122}, knot{34, 110.5},
		knot{44, 121.5}, knot{56, 109.5}, knot{89, 140})
}

func headAndShouldersSeries() []models.Candle {
	return zigzag(90,
		knot{0, 100}, knot{12, 125}, knot{22, 115}, knot{34, 135},
		knot{46, 116}, knot{58, 124.5}, knot{89, 95})
}

func inverseHeadAndShouldersSeries() []models.Candle {
	return zigzag(90,
		knot{0, 140}, knot{12, 115}, knot{22, 125}, knot{34, 105},
		knot{46, 124}, knot{58, 115.5}, knot{89, 145})
}

func risingSeries(n int) []models.Candle {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return build(closes)
}

// randomWalkGen generates dated candle series from bounded daily returns.
func randomWalkGen(minLen, maxLen int) gopter.Gen {
	return gen.IntRange(minLen, maxLen).FlatMap(func(v interface{}) gopter.Gen {
		return gen.SliceOfN(v.(int), gen.Float64Range(-0.03, 0.03))
	}, reflect.TypeOf([]float64{})).Map(func(returns []float64) []models.Candle {
		closes := make([]float64, len(returns))
		price := 100.0
		for i, r := range returns {
			price *= 1 + r
			closes[i] = price
		}
		candles := build(closes)
		for i := range candles {
			// Wicks proportional to the move keep the series noisy.
			w := math.Max(0.2, math.Abs(returns[i])*closes[i])
			candles[i].High = closes[i] + w
			candles[i].Low = closes[i] - w
		}
		return candles
	})
}
