package pricing

import (
	"math"
	"math/big"
	"strconv"

	"github.com/ClipFinance/intents-solver/common/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultMarkupPct is the market-maker markup applied to every quote.
const DefaultMarkupPct = 0.005

// Quote is the priced result of a conversion.
type Quote struct {
	AmountOut string
	Rate      float64
}

// Pricer turns raw input amounts into marked-up raw output amounts using
// the resolver's USD prices.
type Pricer struct {
	resolver  *RateResolver
	markupPct float64
	logger    *logrus.Logger
}

// NewPricer creates a pricer. A non-positive markup falls back to
// DefaultMarkupPct.
func NewPricer(resolver *RateResolver, markupPct float64, logger *logrus.Logger) *Pricer {
	if markupPct <= 0 {
		markupPct = DefaultMarkupPct
	}
	return &Pricer{
		resolver:  resolver,
		markupPct: markupPct,
		logger:    logger,
	}
}

// MarkupPct returns the configured markup fraction.
func (p *Pricer) MarkupPct() float64 {
	return p.markupPct
}

// CalculateQuote prices amount raw units of the origin asset in the
// destination asset, after subtracting the markup. The returned amount is
// in the destination token's smallest unit, floored. Fails when either
// side cannot be priced.
func (p *Pricer) CalculateQuote(originAsset, destinationAsset, amount string) (*Quote, error) {
	originToken := types.ExtractTokenAddress(originAsset)
	destToken := types.ExtractTokenAddress(destinationAsset)

	originPrice, ok := p.resolver.GetTokenPriceUsd(originToken)
	if !ok {
		return nil, errors.Errorf("no price for origin token %s", originToken)
	}
	destPrice, ok := p.resolver.GetTokenPriceUsd(destToken)
	if !ok {
		return nil, errors.Errorf("no price for destination token %s", destToken)
	}

	rawAmount, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid amount %q", amount)
	}

	originDecimals := p.resolver.TokenDecimals(originToken)
	destDecimals := p.resolver.TokenDecimals(destToken)

	amountIn := rawAmount / math.Pow10(originDecimals)
	usdValue := amountIn * originPrice
	usdAfterMarkup := usdValue * (1 - p.markupPct)
	amountOutHuman := usdAfterMarkup / destPrice

	amountOut := formatRawAmount(amountOutHuman * math.Pow10(destDecimals))
	rate := destPrice / originPrice

	p.logger.WithFields(logrus.Fields{
		"originToken": originToken,
		"destToken":   destToken,
		"amountIn":    amountIn,
		"usdValue":    usdValue,
		"amountOut":   amountOut,
		"rate":        rate,
	}).Info("Quote priced")

	return &Quote{AmountOut: amountOut, Rate: rate}, nil
}

// formatRawAmount floors x and renders it as a full decimal integer
// string. big.Float avoids the exponent notation strconv produces for
// large raw amounts.
func formatRawAmount(x float64) string {
	floored := math.Floor(x)
	if floored <= 0 || math.IsNaN(floored) || math.IsInf(floored, 0) {
		return "0"
	}
	return new(big.Float).SetFloat64(floored).Text('f', 0)
}
