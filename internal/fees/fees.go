// Package fees computes the itemized fee breakdown for permit and
// certificate requests. All amounts are int64 centavos; 850.00 pesos is
// represented as 85000. The tariff table is fixed by municipal ordinance
// and never depends on external state, so quoting is a pure function.
package fees

import (
	"errors"
	"fmt"
)

// Request and sub-type discriminators accepted by Quote. These mirror the
// permit package's variant and sub-type constants; fees keeps its own copies
// so it stays a leaf package.
const (
	KindDeathRegistration = "death_registration"
	KindBurialPermit      = "burial_permit"
	KindCremationPermit   = "cremation_permit"
	KindExhumationPermit  = "exhumation_permit"
	KindDeathCertificate  = "death_certificate"

	RegistrationRegular = "REGULAR"
	RegistrationDelayed = "DELAYED"

	BurialTypeGround = "BURIAL"
	BurialTypeNiche  = "NICHE"

	NicheChild = "CHILD"
	NicheAdult = "ADULT"
)

// Tariff amounts in centavos.
const (
	RegularRegistrationFee = 5000   // 50.00
	DelayedRegistrationFee = 15000  // 150.00
	BurialBaseFee          = 10000  // 100.00
	NicheChildFee          = 75000  // 750.00
	NicheAdultFee          = 150000 // 1500.00
	CremationFee           = 10000  // 100.00
	ExhumationFee          = 10000  // 100.00
	CertificateCopyFee     = 5000   // 50.00 per copy
)

// Quote validation errors.
var (
	ErrUnknownKind    = errors.New("unknown request kind")
	ErrUnknownSubtype = errors.New("unknown sub-type for request kind")
	ErrInvalidNiche   = errors.New("niche type must be CHILD or ADULT")
)

// LineItem is one named component of a fee breakdown.
type LineItem struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

// Breakdown is the itemized result of a quote. Total always equals Base plus
// the sum of AddOns; callers freeze the breakdown on the entity at
// submission time and may recompute it later to verify nothing drifted.
type Breakdown struct {
	Base   int64      `json:"base"`
	AddOns []LineItem `json:"add_ons,omitempty"`
	Total  int64      `json:"total"`
}

// Input carries the sub-type fields that influence the fee for a request.
// Unused fields are ignored for kinds they do not apply to.
type Input struct {
	Kind             string
	RegistrationType string // REGULAR or DELAYED (death registration)
	BurialType       string // BURIAL or NICHE (burial permit)
	NicheType        string // CHILD or ADULT (burial permit, NICHE only)
	Copies           int    // death certificate; values < 1 are treated as 1
}

// Quote computes the fee breakdown for the given request.
func Quote(in Input) (Breakdown, error) {
	switch in.Kind {
	case KindDeathRegistration:
		switch in.RegistrationType {
		case RegistrationRegular, "":
			return breakdown(RegularRegistrationFee), nil
		case RegistrationDelayed:
			return breakdown(DelayedRegistrationFee), nil
		default:
			return Breakdown{}, fmt.Errorf("%w: registration type %q", ErrUnknownSubtype, in.RegistrationType)
		}

	case KindBurialPermit:
		b := breakdown(BurialBaseFee)
		if in.BurialType == BurialTypeNiche {
			var nicheFee int64
			switch in.NicheType {
			case NicheChild:
				nicheFee = NicheChildFee
			case NicheAdult:
				nicheFee = NicheAdultFee
			default:
				return Breakdown{}, ErrInvalidNiche
			}
			b.AddOns = append(b.AddOns, LineItem{Label: "niche fee", Amount: nicheFee})
			b.Total += nicheFee
		}
		return b, nil

	case KindCremationPermit:
		return breakdown(CremationFee), nil

	case KindExhumationPermit:
		return breakdown(ExhumationFee), nil

	case KindDeathCertificate:
		copies := in.Copies
		if copies < 1 {
			copies = 1
		}
		b := breakdown(CertificateCopyFee)
		if copies > 1 {
			extra := CertificateCopyFee * int64(copies-1)
			b.AddOns = append(b.AddOns, LineItem{Label: "additional copies fee", Amount: extra})
			b.Total += extra
		}
		return b, nil
	}
	return Breakdown{}, fmt.Errorf("%w: %q", ErrUnknownKind, in.Kind)
}

func breakdown(base int64) Breakdown {
	return Breakdown{Base: base, Total: base}
}

// Recompute returns whether the frozen breakdown still matches an
// independent quote of the same sub-type fields. Used as an invariant check
// before confirming payment.
func Recompute(in Input, frozen Breakdown) (bool, error) {
	fresh, err := Quote(in)
	if err != nil {
		return false, err
	}
	return fresh.Total == frozen.Total && fresh.Total == sum(frozen), nil
}

func sum(b Breakdown) int64 {
	total := b.Base
	for _, a := range b.AddOns {
		total += a.Amount
	}
	return total
}

// FormatPeso renders centavos as a fixed two-decimal peso string for
// receipts and order-of-payment slips. Display only.
func FormatPeso(centavos int64) string {
	sign := ""
	if centavos < 0 {
		sign = "-"
		centavos = -centavos
	}
	return fmt.Sprintf("%s₱%d.%02d", sign, centavos/100, centavos%100)
}
