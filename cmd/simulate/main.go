// Package main runs a full campaign against the in-memory stack: stub
// venue, stub oracle and memory stores, stepping a simulated clock through
// every epoch and printing what the engine did.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/holiman/uint256"

	"github.com/YaTut1901/liquid-ip-sub001/internal/campaignbin"
	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
	"github.com/YaTut1901/liquid-ip-sub001/internal/engine"
	"github.com/YaTut1901/liquid-ip-sub001/internal/poolid"
	"github.com/YaTut1901/liquid-ip-sub001/internal/storage/memory"
	"github.com/YaTut1901/liquid-ip-sub001/internal/venue/stub"
)

func main() {
	startingTime := flag.Int64("starting-time", 1_700_000_000, "Campaign start, Unix seconds")
	numEpochs := flag.Int("epochs", 3, "Number of epochs")
	epochDuration := flag.Uint("epoch-duration", 3600, "Epoch duration in seconds")
	tradesPerEpoch := flag.Int("trades-per-epoch", 2, "Trade attempts per epoch")
	amountIn := flag.Uint64("amount-in", 1_000_000, "Settlement input per trade")
	tickSpacing := flag.Int("tick-spacing", 60, "Stub venue tick spacing")
	outputJSON := flag.Bool("json", false, "Output results as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[simulate] ", log.LstdFlags)

	cfg := fixtureCampaign(*startingTime, *numEpochs, uint32(*epochDuration), int32(*tickSpacing))
	raw, err := campaignbin.Encode(cfg)
	if err != nil {
		logger.Fatalf("Encode fixture campaign: %v", err)
	}

	ctx := context.Background()
	market := stub.NewMarket(int32(*tickSpacing))
	yield := stub.NewYield()
	events := memory.NewPoolEventStore()

	hook := engine.NewHook(engine.Options{
		Campaigns: memory.NewCampaignStore(),
		States:    memory.NewPoolStateStore(),
		Events:    events,
		Market:    market,
		Yield:     yield,
		Backing:   &stub.Validator{},
		Logger:    logger,
	})

	total := cfg.TotalTokensToSell()
	poolID := poolid.Compute("LICENSE", "SETTLEMENT", *startingTime, total.Dec())
	if err := hook.InitializeState(ctx, poolID, raw); err != nil {
		logger.Fatalf("Initialize: %v", err)
	}
	logger.Printf("pool %s: %d epochs x %ds, %s tokens for sale",
		poolid.Short(poolID), *numEpochs, *epochDuration, total.Dec())

	// Step the clock through every epoch, trading partway into each.
	for e := 0; e < *numEpochs; e++ {
		epochStart := *startingTime + int64(e)*int64(*epochDuration)
		for i := 0; i < *tradesPerEpoch; i++ {
			ts := epochStart + int64(i+1)*int64(*epochDuration)/int64(*tradesPerEpoch+1)
			outcome, err := hook.Trade(ctx, poolID, domain.TradeIntent{
				Sender:    fmt.Sprintf("trader-%d", i),
				Direction: domain.DirectionBuy,
				Kind:      domain.TradeKindExactInput,
				AmountIn:  uint256.NewInt(*amountIn),
				Timestamp: ts,
			})
			if err != nil {
				logger.Fatalf("epoch %d trade %d: %v", e, i, err)
			}
			if outcome.EpochActivated != nil {
				logger.Printf("t=%d: epoch %d activated", ts, *outcome.EpochActivated)
			}
			logger.Printf("t=%d: trade in=%s out=%s", ts, outcome.AmountIn.Dec(), outcome.AmountOut.Dec())
		}
	}

	history, err := events.GetByPoolID(ctx, poolID)
	if err != nil {
		logger.Fatalf("Read history: %v", err)
	}

	if *outputJSON {
		printJSON(history)
		return
	}
	fmt.Printf("pool %s: %d history events\n", poolid.Short(poolID), len(history))
	for _, ev := range history {
		fmt.Printf("  epoch=%d %-16s tick=%d", ev.Epoch, ev.Type, ev.Tick)
		if ev.AmountIn != nil {
			fmt.Printf(" in=%s", ev.AmountIn.Dec())
		}
		if ev.AmountOut != nil {
			fmt.Printf(" out=%s", ev.AmountOut.Dec())
		}
		fmt.Println()
	}
	fmt.Printf("yield deposits: %s settlement\n", yield.Deposited(poolID, domain.AssetSettlement).Dec())
	fmt.Printf("open ranges remaining: %d\n", len(market.OpenRanges(poolID)))
}

// fixtureCampaign builds a campaign whose epochs step one spacing up the
// grid, two positions each.
func fixtureCampaign(start int64, epochs int, duration uint32, spacing int32) *domain.CampaignConfig {
	cfg := &domain.CampaignConfig{StartingTime: start}
	for e := 0; e < epochs; e++ {
		base := int32(e) * spacing
		cfg.Epochs = append(cfg.Epochs, domain.Epoch{
			DurationSeconds: duration,
			Positions: []domain.Position{
				{TickLower: base, TickUpper: base + spacing, Amount: uint256.NewInt(5_000_000)},
				{TickLower: base + spacing, TickUpper: base + 2*spacing, Amount: uint256.NewInt(3_000_000)},
			},
		})
	}
	return cfg
}

func printJSON(history []*domain.PoolEvent) {
	type eventOut struct {
		Epoch     uint16 `json:"epoch"`
		Type      string `json:"type"`
		Sender    string `json:"sender,omitempty"`
		AmountIn  string `json:"amount_in,omitempty"`
		AmountOut string `json:"amount_out,omitempty"`
		Tick      int32  `json:"tick"`
	}
	out := make([]eventOut, 0, len(history))
	for _, ev := range history {
		item := eventOut{Epoch: ev.Epoch, Type: string(ev.Type), Sender: ev.Sender, Tick: ev.Tick}
		if ev.AmountIn != nil {
			item.AmountIn = ev.AmountIn.Dec()
		}
		if ev.AmountOut != nil {
			item.AmountOut = ev.AmountOut.Dec()
		}
		out = append(out, item)
	}
	json.NewEncoder(os.Stdout).Encode(out)
}
