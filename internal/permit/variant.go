package permit

import (
	"fmt"

	"github.com/baliwag-egov/civreg/internal/fees"
)

// Variant is one of the five request types sharing the lifecycle.
type Variant string

const (
	VariantDeathRegistration Variant = "death_registration"
	VariantBurialPermit      Variant = "burial_permit"
	VariantCremationPermit   Variant = "cremation_permit"
	VariantExhumationPermit  Variant = "exhumation_permit"
	VariantDeathCertificate  Variant = "death_certificate"
)

// ParseVariant maps a URL path segment to a Variant.
func ParseVariant(s string) (Variant, error) {
	v := Variant(s)
	if _, ok := variants[v]; !ok {
		return "", fmt.Errorf("unknown request variant %q", s)
	}
	return v, nil
}

// Variants lists every supported variant in a stable order.
func Variants() []Variant {
	return []Variant{
		VariantDeathRegistration,
		VariantBurialPermit,
		VariantCremationPermit,
		VariantExhumationPermit,
		VariantDeathCertificate,
	}
}

// Document roles referenced by the requirement tables.
const (
	DocDeathCertificate    = "deathCertificate"
	DocValidID             = "validId"
	DocAffidavitDelayed    = "affidavitOfDelayedRegistration"
	DocBarangayCert        = "barangayCertification"
	DocFuneralContract     = "funeralContract"
	DocAffidavitTwoPersons = "affidavitOfTwoDisinterestedPersons"
	DocNextOfKinConsent    = "nextOfKinConsent"
)

// VariantConfig is the per-variant policy table: which documents a
// submission must carry, how the fee is derived from the subtype, the
// order-of-payment code prefix, and whether a negative verification outcome
// is terminal or opens a correction round.
type VariantConfig struct {
	// RequiredDocuments returns the document roles a submission with the
	// given subtype must include.
	RequiredDocuments func(sub Subtype) []string

	// FeeInput maps the subtype onto the fee calculator's input.
	FeeInput func(sub Subtype) fees.Input

	// ORPrefix starts every order-of-payment code for this variant.
	ORPrefix string

	// RejectTerminal marks variants with no correction path: a negative
	// verification lands in REJECTED instead of RETURNED_FOR_CORRECTION.
	RejectTerminal bool
}

var variants = map[Variant]VariantConfig{
	VariantDeathRegistration: {
		RequiredDocuments: func(sub Subtype) []string {
			docs := []string{DocDeathCertificate, DocValidID}
			if sub.RegistrationType == fees.RegistrationDelayed {
				docs = append(docs,
					DocAffidavitDelayed,
					DocBarangayCert,
					DocFuneralContract,
					DocAffidavitTwoPersons,
				)
			}
			return docs
		},
		FeeInput: func(sub Subtype) fees.Input {
			return fees.Input{Kind: fees.KindDeathRegistration, RegistrationType: sub.RegistrationType}
		},
		ORPrefix: "OR",
	},
	VariantBurialPermit: {
		RequiredDocuments: func(Subtype) []string {
			return []string{DocDeathCertificate, DocValidID}
		},
		FeeInput: func(sub Subtype) fees.Input {
			return fees.Input{Kind: fees.KindBurialPermit, BurialType: sub.BurialType, NicheType: sub.NicheType}
		},
		ORPrefix: "OR-BP",
	},
	VariantCremationPermit: {
		RequiredDocuments: func(Subtype) []string {
			return []string{DocDeathCertificate, DocValidID, DocNextOfKinConsent}
		},
		FeeInput: func(Subtype) fees.Input {
			return fees.Input{Kind: fees.KindCremationPermit}
		},
		ORPrefix:       "CRM",
		RejectTerminal: true,
	},
	VariantExhumationPermit: {
		RequiredDocuments: func(Subtype) []string {
			return []string{DocDeathCertificate, DocValidID, DocNextOfKinConsent}
		},
		FeeInput: func(Subtype) fees.Input {
			return fees.Input{Kind: fees.KindExhumationPermit}
		},
		ORPrefix: "EXH",
	},
	VariantDeathCertificate: {
		RequiredDocuments: func(Subtype) []string {
			return []string{DocValidID}
		},
		FeeInput: func(sub Subtype) fees.Input {
			return fees.Input{Kind: fees.KindDeathCertificate, Copies: sub.Copies}
		},
		ORPrefix: "OR",
	},
}

// Config returns the policy table entry for a variant.
func Config(v Variant) (VariantConfig, error) {
	cfg, ok := variants[v]
	if !ok {
		return VariantConfig{}, fmt.Errorf("unknown request variant %q", v)
	}
	return cfg, nil
}

// missingDocuments returns the required roles absent from docs, in
// requirement order.
func missingDocuments(cfg VariantConfig, sub Subtype, docs map[string]string) []string {
	var missing []string
	for _, role := range cfg.RequiredDocuments(sub) {
		if docs[role] == "" {
			missing = append(missing, role)
		}
	}
	return missing
}
