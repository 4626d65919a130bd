// Package rates loads retailer price cards from a yaml file and serves
// them to the billing layer.
package rates

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	tariff "meterbill/internal/tariff/domain"
)

type rateCard struct {
	Retailer      string  `yaml:"retailer"`
	FinancialYear int     `yaml:"financial_year"`
	Split         string  `yaml:"split"`
	GeneralSupply float64 `yaml:"general_supply"`
	GeneralUsage  float64 `yaml:"general_usage"`
	TOUSupply     float64 `yaml:"tou_supply"`
	TOUPeak       float64 `yaml:"tou_peak"`
	TOUShoulder   float64 `yaml:"tou_shoulder"`
	TOUOffPeak    float64 `yaml:"tou_offpeak"`
	DemandSupply  float64 `yaml:"demand_supply"`
	DemandUsage   float64 `yaml:"demand_usage"`
	DemandPeak    float64 `yaml:"demand_peak"`
	DemandOffPeak float64 `yaml:"demand_offpeak"`
}

type ratesFile struct {
	Rates []rateCard `yaml:"rates"`
}

type key struct {
	retailer string
	year     int
}

// Store is an in-memory tariff.RateStore keyed by retailer and the year
// a financial year starts.
type Store struct {
	cards map[key]tariff.Rates
}

// NewStore builds a store from already-parsed cards.
func NewStore(cards []tariff.Rates) *Store {
	s := &Store{cards: make(map[key]tariff.Rates, len(cards))}
	for _, c := range cards {
		s.cards[key{c.Retailer, c.FinancialYear}] = c
	}
	return s
}

// LoadFile reads a yaml rates file into a Store.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f ratesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("rates: parse %s: %w", path, err)
	}

	cards := make([]tariff.Rates, 0, len(f.Rates))
	for _, c := range f.Rates {
		split, err := parseSplit(c.Split)
		if err != nil {
			return nil, fmt.Errorf("rates: retailer %q: %w", c.Retailer, err)
		}
		cards = append(cards, tariff.Rates{
			Retailer:      c.Retailer,
			FinancialYear: c.FinancialYear,
			Split:         split,
			GeneralSupply: c.GeneralSupply,
			GeneralUsage:  c.GeneralUsage,
			TOUSupply:     c.TOUSupply,
			TOUPeak:       c.TOUPeak,
			TOUShoulder:   c.TOUShoulder,
			TOUOffPeak:    c.TOUOffPeak,
			DemandSupply:  c.DemandSupply,
			DemandUsage:   c.DemandUsage,
			DemandPeak:    c.DemandPeak,
			DemandOffPeak: c.DemandOffPeak,
		})
	}
	return NewStore(cards), nil
}

// Rates resolves one retailer's card for a financial year.
func (s *Store) Rates(_ context.Context, retailer string, financialYear int) (tariff.Rates, error) {
	r, ok := s.cards[key{retailer, financialYear}]
	if !ok {
		return tariff.Rates{}, fmt.Errorf("%w: no rates for %q in FY%d", tariff.ErrUnknownTariff, retailer, financialYear)
	}
	return r, nil
}

// Retailers lists retailers with at least one card, sorted.
func (s *Store) Retailers() []string {
	seen := make(map[string]struct{})
	var out []string
	for k := range s.cards {
		if _, ok := seen[k.retailer]; ok {
			continue
		}
		seen[k.retailer] = struct{}{}
		out = append(out, k.retailer)
	}
	sort.Strings(out)
	return out
}

func parseSplit(s string) (tariff.Split, error) {
	switch s {
	case "", "regional":
		return tariff.SplitRegional, nil
	case "seq":
		return tariff.SplitSEQ, nil
	default:
		return 0, fmt.Errorf("unknown split %q", s)
	}
}
