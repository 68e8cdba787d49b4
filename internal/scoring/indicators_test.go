package scoring

import (
	"testing"

	"cryptosignal/models"
)

func TestRSI(t *testing.T) {
	rising := make([]float64, 20)
	flat := make([]float64, 20)
	for i := range rising {
		rising[i] = float64(i + 1)
		flat[i] = 5
	}
	if v, ok := RSI(rising, 14); !ok || v != 100 {
		t.Fatalf("rising RSI=%v,%v want 100", v, ok)
	}
	if v, ok := RSI(flat, 14); !ok || v != 50 {
		t.Fatalf("flat RSI=%v,%v want 50", v, ok)
	}
	if _, ok := RSI(rising[:14], 14); ok {
		t.Fatalf("RSI with 14 values should need one more")
	}

	alternating := []float64{10, 11, 10, 11, 10, 11, 10, 11, 10, 11, 10, 11, 10, 11, 10}
	v, _ := RSI(alternating, 14)
	if !approx(v, 50) {
		t.Fatalf("balanced RSI=%v want 50", v)
	}
}

func TestMovingAverages(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}
	if v, ok := SMA(data, 2); !ok || v != 4.5 {
		t.Fatalf("SMA=%v want 4.5", v)
	}
	if v, ok := EMA([]float64{7, 7, 7, 7}, 3); !ok || v != 7 {
		t.Fatalf("EMA of a constant=%v want 7", v)
	}
	// seeded with SMA(1,2,3)=2, then 4*0.5+2*0.5
	if v, _ := EMA([]float64{1, 2, 3, 4}, 3); !approx(v, 3) {
		t.Fatalf("EMA=%v want 3", v)
	}
	if _, ok := EMA(data, 6); ok {
		t.Fatalf("EMA longer than data accepted")
	}
}

func TestTradeFlow(t *testing.T) {
	trades := []models.Trade{
		{Amount: 3, Side: models.SideBuy},
		{Amount: 1, Side: models.SideSell},
	}
	if v, ok := OrderFlowImbalance(trades); !ok || v != 0.5 {
		t.Fatalf("OFI=%v want 0.5", v)
	}
	if v := CumulativeVolumeDelta(trades); v != 2 {
		t.Fatalf("CVD=%v want 2", v)
	}
	if _, ok := OrderFlowImbalance(nil); ok {
		t.Fatalf("OFI without volume accepted")
	}
}

func TestKyleLambda(t *testing.T) {
	// Each trade moves the next print by one tick in its direction.
	sides := []models.Side{}
	for i := 0; i < 4; i++ {
		s := models.SideBuy
		if i%2 == 1 {
			s = models.SideSell
		}
		for j := 0; j < 5; j++ {
			sides = append(sides, s)
		}
	}
	trades := make([]models.Trade, len(sides))
	price := 100.0
	for i, s := range sides {
		trades[i] = models.Trade{Price: price, Amount: 1, Side: s}
		if s == models.SideBuy {
			price++
		} else {
			price--
		}
	}

	v, ok := KyleLambda(trades)
	if !ok || !approx(v, 1) {
		t.Fatalf("lambda=%v,%v want 1", v, ok)
	}
	if _, ok := KyleLambda(trades[:9]); ok {
		t.Fatalf("lambda from 9 trades accepted")
	}
}
