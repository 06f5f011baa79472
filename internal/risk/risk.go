// Package risk implements the pre-trade gate and the position keeper:
// spec.md §4.9's VWAP/realised/unrealised PnL accounting and the three-rule
// check every outgoing quote intent must clear before the order manager
// sends it. Grounded on original_source/hft/src/risk_manager.{h,cpp} and
// position_keeper.{h,cpp}.
package risk

import (
	"go.uber.org/zap"

	"github.com/richtraders/hft-core/internal/book"
	"github.com/richtraders/hft-core/internal/fixedpoint"
	"github.com/richtraders/hft-core/internal/logging"
)

// Verdict is the pre-trade gate's result for one intent.
type Verdict uint8

const (
	Allowed Verdict = iota
	BreachesQty
	BreachesPosition
	BreachesLoss
)

func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "allowed"
	case BreachesQty:
		return "breaches_qty"
	case BreachesPosition:
		return "breaches_position"
	case BreachesLoss:
		return "breaches_loss"
	default:
		return "unknown"
	}
}

// Limits bounds one symbol's pre-trade gate.
type Limits struct {
	MaxPosition fixedpoint.Qty
	MaxOrderQty fixedpoint.Qty
	MaxLoss     fixedpoint.Price // negative; a total PnL below this breaches
}

// Manager evaluates outgoing intents against Limits and the live Keeper. It
// never sends orders itself — the order manager decides what to do with a
// non-Allowed Verdict.
type Manager struct {
	limits Limits
	keeper *Keeper
	log    logging.Producer
}

// NewManager constructs a Manager gating against limits and reading
// position/PnL from keeper.
func NewManager(limits Limits, keeper *Keeper, log logging.Producer) *Manager {
	return &Manager{limits: limits, keeper: keeper, log: log}
}

// Evaluate checks an outgoing order of orderQty (signed: positive extends a
// long / reduces a short) against the three gate rules in spec.md §4.9
// order: quantity, resulting position, then cumulative loss.
func (m *Manager) Evaluate(sideValue, orderQty fixedpoint.Qty) Verdict {
	if abs64(orderQty.Raw) > m.limits.MaxOrderQty.Raw {
		m.log.Warn("risk: order qty breach", zap.Int64("order_qty", orderQty.Raw), zap.Int64("max_order_qty", m.limits.MaxOrderQty.Raw))
		return BreachesQty
	}
	resulting := sideValue.Raw + orderQty.Raw
	if abs64(resulting) > m.limits.MaxPosition.Raw {
		m.log.Warn("risk: position breach", zap.Int64("resulting_position", resulting), zap.Int64("max_position", m.limits.MaxPosition.Raw))
		return BreachesPosition
	}
	if m.limits.MaxLoss.IsValid() && m.keeper.TotalPnL().Raw < m.limits.MaxLoss.Raw {
		m.log.Warn("risk: loss breach", zap.Int64("total_pnl", m.keeper.TotalPnL().Raw), zap.Int64("max_loss", m.limits.MaxLoss.Raw))
		return BreachesLoss
	}
	return Allowed
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// PositionInfo is the per-symbol position/PnL state spec.md §3.6 describes:
// net position, per-side open VWAP, realised/unrealised PnL, cumulative
// volume, and a snapshot of the last BBO seen.
type PositionInfo struct {
	Position      fixedpoint.Qty
	OpenVWAPBuy   fixedpoint.Price
	OpenVWAPSell  fixedpoint.Price
	RealizedPnL   fixedpoint.Price
	UnrealizedPnL fixedpoint.Price
	Volume        fixedpoint.Qty
	LastBBO       book.BBO
}

// Keeper tracks PositionInfo for one symbol and implements §4.9's
// extend/reduce/flip fill accounting plus BBO-driven unrealised PnL.
// Not safe for concurrent use; owned by the response-consumer goroutine
// (fills) but read (LastBBO, TotalPnL) by the market-data goroutine when
// BBO changes — callers must serialise access the same way the book's BBO
// snapshot is serialised (by-value read of a struct the owner never
// partially writes).
type Keeper struct {
	info PositionInfo
	log  logging.Producer
}

// NewKeeper constructs a flat Keeper.
func NewKeeper(log logging.Producer) *Keeper {
	return &Keeper{
		info: PositionInfo{
			LastBBO: book.BBO{BidPrice: fixedpoint.InvalidPrice, AskPrice: fixedpoint.InvalidPrice},
		},
		log: log,
	}
}

// Info returns a by-value snapshot of the current position/PnL state.
func (k *Keeper) Info() PositionInfo { return k.info }

// TotalPnL is realised + unrealised, the invariant property 4 of spec.md §8
// checks after every event.
func (k *Keeper) TotalPnL() fixedpoint.Price {
	return k.info.RealizedPnL.Add(k.info.UnrealizedPnL)
}

// OnFill applies a fill of lastQty (always positive) at lastPrice on side
// (true = buy) to the position, per spec.md §4.9's extend/reduce/flip rules.
func (k *Keeper) OnFill(isBuy bool, lastPrice fixedpoint.Price, lastQty fixedpoint.Qty) {
	signedQty := lastQty.Raw
	if !isBuy {
		signedQty = -signedQty
	}

	prior := k.info.Position.Raw
	k.info.Volume = k.info.Volume.Add(lastQty)

	sameSignOrFromZero := prior == 0 || (prior > 0) == (signedQty > 0)

	if sameSignOrFromZero {
		k.extend(isBuy, lastPrice, lastQty)
		k.info.Position.Raw += signedQty
		k.recomputeUnrealized()
		return
	}

	// Reducing or flipping: the fill opposes the current position.
	reduceQty := lastQty.Raw
	flips := abs64(signedQty) > abs64(prior)
	if flips {
		reduceQty = abs64(prior)
	}

	k.realize(prior > 0, lastPrice, fixedpoint.QtyFromRaw(reduceQty))
	k.info.Position.Raw += signedQty

	if flips {
		residual := abs64(signedQty) - reduceQty
		k.seedVWAP(isBuy, lastPrice, fixedpoint.QtyFromRaw(residual))
	}

	if k.info.Position.Raw == 0 {
		k.info.OpenVWAPBuy = fixedpoint.InvalidPrice
		k.info.OpenVWAPSell = fixedpoint.InvalidPrice
		k.info.UnrealizedPnL = fixedpoint.PriceFromRaw(0)
		return
	}
	k.recomputeUnrealized()
}

// extend adds to the accumulating VWAP on the side the fill extends.
func (k *Keeper) extend(isBuy bool, price fixedpoint.Price, qty fixedpoint.Qty) {
	if isBuy {
		k.info.OpenVWAPBuy = blendVWAP(k.info.OpenVWAPBuy, abs64(k.info.Position.Raw), price, qty)
	} else {
		k.info.OpenVWAPSell = blendVWAP(k.info.OpenVWAPSell, abs64(k.info.Position.Raw), price, qty)
	}
}

// blendVWAP folds a new (price, qty) fill into an existing volume-weighted
// average price accumulated over priorQty units.
func blendVWAP(existing fixedpoint.Price, priorQty int64, price fixedpoint.Price, qty fixedpoint.Qty) fixedpoint.Price {
	if priorQty == 0 || !existing.IsValid() {
		return price
	}
	total := priorQty + qty.Raw
	if total == 0 {
		return price
	}
	blended := (existing.Raw*priorQty + price.Raw*qty.Raw) / total
	return fixedpoint.PriceFromRaw(blended)
}

// realize books PnL on the reduced portion of the position: the fill at
// price nets against the opposing side's VWAP, signed by the position's
// prior direction (long reducing realises price-vwap, short reducing
// realises vwap-price). The VWAP is an average price, so it is left as is
// for the remaining open quantity.
func (k *Keeper) realize(wasLong bool, price fixedpoint.Price, reduceQty fixedpoint.Qty) {
	var vwap fixedpoint.Price
	if wasLong {
		vwap = k.info.OpenVWAPBuy
	} else {
		vwap = k.info.OpenVWAPSell
	}
	if !vwap.IsValid() {
		return
	}

	sign := int64(1)
	if !wasLong {
		sign = -1
	}
	delta := fixedpoint.PriceFromRaw(reduceQty.Raw * (price.Raw - vwap.Raw) * sign)
	k.info.RealizedPnL = k.info.RealizedPnL.Add(delta)

	// VWAP itself doesn't change on a reduce — only the remaining qty
	// shrinks; the VWAP stays accurate for the remaining open quantity.
}

// seedVWAP is called only on a position flip: the residual quantity beyond
// what closed the old position opens a fresh position on the other side,
// seeded at the fill price.
func (k *Keeper) seedVWAP(isBuy bool, price fixedpoint.Price, residual fixedpoint.Qty) {
	if residual.Raw <= 0 {
		return
	}
	if isBuy {
		k.info.OpenVWAPBuy = price
		k.info.OpenVWAPSell = fixedpoint.InvalidPrice
	} else {
		k.info.OpenVWAPSell = price
		k.info.OpenVWAPBuy = fixedpoint.InvalidPrice
	}
}

// OnBBOUpdate recomputes unrealised PnL against the new mid whenever
// position is non-zero, per spec.md §4.9.
func (k *Keeper) OnBBOUpdate(bbo book.BBO) {
	k.info.LastBBO = bbo
	if k.info.Position.Raw == 0 {
		return
	}
	k.recomputeUnrealized()
}

func (k *Keeper) recomputeUnrealized() {
	bbo := k.info.LastBBO
	if !bbo.BidPrice.IsValid() || !bbo.AskPrice.IsValid() {
		return
	}
	mid := (bbo.BidPrice.Raw + bbo.AskPrice.Raw) / 2

	pos := k.info.Position.Raw
	if pos > 0 {
		if !k.info.OpenVWAPBuy.IsValid() {
			return
		}
		k.info.UnrealizedPnL = fixedpoint.PriceFromRaw(pos * (mid - k.info.OpenVWAPBuy.Raw))
		return
	}
	if !k.info.OpenVWAPSell.IsValid() {
		return
	}
	k.info.UnrealizedPnL = fixedpoint.PriceFromRaw(-pos * (k.info.OpenVWAPSell.Raw - mid))
}
