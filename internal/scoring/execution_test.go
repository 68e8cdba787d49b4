package scoring

import (
	"math"
	"testing"

	"cryptosignal/models"
)

func executionBook() models.OrderBook {
	return models.OrderBook{
		Bids: []models.Level{
			{Price: 99, Amount: 1},
			{Price: 98, Amount: 1},
			{Price: 90, Amount: 8},
		},
		Asks: []models.Level{
			{Price: 101, Amount: 5},
			{Price: 102, Amount: 5},
		},
	}
}

func TestExecutionProfileBuyCurve(t *testing.T) {
	ex := ExecutionProfile(executionBook(), 0.3, 0.5)
	if ex == nil {
		t.Fatalf("expected an execution profile")
	}
	if ex.BestBid != 99 || ex.BestAsk != 101 || ex.Mid != 100 || ex.Spread != 2 {
		t.Fatalf("unexpected top of book: %+v", ex)
	}
	if !approx(ex.SpreadPct, 2) || ex.AskLiquidity != 10 || ex.BidLiquidity != 10 {
		t.Fatalf("unexpected liquidity summary: %+v", ex)
	}
	if len(ex.Buy) != len(executionSizes) {
		t.Fatalf("buy curve has %d points want %d", len(ex.Buy), len(executionSizes))
	}

	// half the asks fill entirely at the best price
	half := ex.Buy[5]
	if half.SizePct != 50 || !approx(half.VWAP, 101) || half.Slippage != 0 || half.Levels != 1 {
		t.Fatalf("50%% point = %+v", half)
	}
	// the whole side averages 101.5
	all := ex.Buy[len(ex.Buy)-1]
	if !approx(all.VWAP, 101.5) || all.Levels != 2 || !approx(all.Cost, 1015) {
		t.Fatalf("100%% point = %+v", all)
	}
	if all.Slippage != round4((101.5/101-1)*100) {
		t.Fatalf("slippage=%v", all.Slippage)
	}
	wantBE := 101.5 * 1.003 / 0.997
	if !approx(all.BreakEven, wantBE) {
		t.Fatalf("break-even=%v want %v", all.BreakEven, wantBE)
	}
	if math.Abs(all.ProfitNeeded-0.6018) > 1e-9 {
		t.Fatalf("profit needed=%v", all.ProfitNeeded)
	}

	// the whole ask side slips 0.495%, still within the limit
	if !ex.OptimalBuy.WithinLimit || ex.OptimalBuy.SizePct != 100 {
		t.Fatalf("optimal buy = %+v", ex.OptimalBuy)
	}
}

func TestExecutionProfileSellCurveStopsAtLimit(t *testing.T) {
	ex := ExecutionProfile(executionBook(), 0.3, 0.5)

	// 10% of bids fills at 99, 20% reaches 98
	if ex.Sell[2].Slippage != 0 {
		t.Fatalf("10%% sell slippage=%v want 0", ex.Sell[2].Slippage)
	}
	if ex.Sell[3].Slippage >= -0.5 {
		t.Fatalf("20%% sell slippage=%v want below -0.5", ex.Sell[3].Slippage)
	}
	if ex.OptimalSell.SizePct != 10 || !ex.OptimalSell.WithinLimit {
		t.Fatalf("optimal sell = %+v", ex.OptimalSell)
	}
	sell := ex.Sell[0]
	want := sell.VWAP * 0.997 / 1.003
	if !approx(sell.BreakEven, want) || sell.BreakEven >= sell.VWAP {
		t.Fatalf("sell break-even=%v want %v", sell.BreakEven, want)
	}
}

func TestExecutionProfileHighSlippageReportsSmallest(t *testing.T) {
	book := models.OrderBook{
		Bids: []models.Level{{Price: 99, Amount: 1}},
		Asks: []models.Level{{Price: 100, Amount: 0.001}, {Price: 120, Amount: 10}},
	}
	ex := ExecutionProfile(book, 0.3, 0.5)
	if ex.OptimalBuy.WithinLimit {
		t.Fatalf("thin top of book must not be within the limit: %+v", ex.OptimalBuy)
	}
	if ex.OptimalBuy.SizePct != 1 {
		t.Fatalf("expected the smallest size, got %+v", ex.OptimalBuy)
	}
}

func TestExecutionProfileOneSidedBook(t *testing.T) {
	book := models.OrderBook{Asks: []models.Level{{Price: 100, Amount: 1}}}
	if ex := ExecutionProfile(book, 0.3, 0.5); ex != nil {
		t.Fatalf("one sided book produced %+v", ex)
	}
	if ex := ExecutionProfile(models.OrderBook{}, 0.3, 0.5); ex != nil {
		t.Fatalf("empty book produced %+v", ex)
	}
}

func TestScoreAttachesExecution(t *testing.T) {
	e := newEngine(t, "full")
	rec := e.Score(Input{Snapshot: sampleSnapshot(30)})
	if rec.Execution == nil {
		t.Fatalf("execution missing for a two sided book")
	}
	if rec.Execution.TakerFeePct != DefaultParams().TakerFeePct {
		t.Fatalf("fee=%v", rec.Execution.TakerFeePct)
	}
}
