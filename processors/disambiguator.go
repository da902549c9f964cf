package processors

import (
	"log/slog"
	"math/rand/v2"

	"github.com/shopspring/decimal"

	"github.com/brpix/pix-processor/models"
)

// The settled amount is what actually shows up in the payer's bank email, so
// two concurrently open charges for the same nominal amount must not settle
// identically. Offsets exclude zero.
var disambiguationOffsets = []decimal.Decimal{
	decimal.New(1, -2),
	decimal.New(2, -2),
	decimal.New(3, -2),
	decimal.New(-1, -2),
	decimal.New(-2, -2),
}

var minimumAmount = decimal.New(1, -2)

type AmountDisambiguator struct {
	flagger models.OffsetFlagger
	logger  *slog.Logger
	shuffle func(n int) []int
}

// NewAmountDisambiguator builds the disambiguator. The flagger is optional;
// without it offset choice is purely random.
func NewAmountDisambiguator(flagger models.OffsetFlagger) *AmountDisambiguator {
	logger := slog.Default()
	logger = logger.With("component", "disambiguator")

	return &AmountDisambiguator{
		flagger: flagger,
		logger:  logger,
		shuffle: rand.Perm,
	}
}

// Disambiguate perturbs the requested amount by one of the fixed offsets,
// clamped strictly positive, and flags the chosen settled amount as in use.
// Offsets whose settled amount is already flagged are avoided when possible;
// this is a collision heuristic, not a guarantee.
func (d *AmountDisambiguator) Disambiguate(amount decimal.Decimal) decimal.Decimal {
	order := d.shuffle(len(disambiguationOffsets))
	settled := d.apply(amount, order[0])

	if d.flagger == nil {
		return settled
	}

	for _, index := range order {
		candidate := d.apply(amount, index)

		flagged, err := d.flagger.AmountFlagged(candidate.StringFixed(2))
		if err != nil {
			// Degrade to random choice rather than blocking issuance.
			d.logger.Error("offset store unavailable", slog.String("error", err.Error()))
			return settled
		}

		if !flagged {
			settled = candidate
			break
		}
	}

	if err := d.flagger.FlagAmount(settled.StringFixed(2)); err != nil {
		d.logger.Error("failed to flag settled amount", slog.String("error", err.Error()))
	}

	return settled
}

func (d *AmountDisambiguator) apply(amount decimal.Decimal, index int) decimal.Decimal {
	settled := amount.Add(disambiguationOffsets[index]).Round(2)
	if settled.LessThan(minimumAmount) {
		settled = minimumAmount
	}

	return settled
}
