package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"payguard/internal/money"
)

// ParseDocument decodes and validates a policy document. All USD literals
// are converted to base units here so evaluation never parses numbers.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse policy document: %w", err)
	}
	if err := doc.compile(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadFile reads and parses a policy document from disk.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParseDocument(data)
}

func (d *Document) compile() error {
	seen := make(map[string]struct{}, len(d.PolicyGroups))
	for i := range d.PolicyGroups {
		g := &d.PolicyGroups[i]
		if strings.TrimSpace(g.Name) == "" {
			return fmt.Errorf("policy group %d: name is required", i)
		}
		if _, dup := seen[g.Name]; dup {
			return fmt.Errorf("policy group %q: duplicate name", g.Name)
		}
		seen[g.Name] = struct{}{}

		if err := compileLimitSet(g.OutgoingLimits); err != nil {
			return fmt.Errorf("policy group %q: outgoingLimits: %w", g.Name, err)
		}
		if err := compileLimitSet(g.IncomingLimits); err != nil {
			return fmt.Errorf("policy group %q: incomingLimits: %w", g.Name, err)
		}

		if rl := g.RateLimits; rl != nil {
			if rl.MaxPayments < 0 {
				return fmt.Errorf("policy group %q: rateLimits.maxPayments cannot be negative", g.Name)
			}
			if rl.WindowMs < 0 {
				return fmt.Errorf("policy group %q: rateLimits.windowMs cannot be negative", g.Name)
			}
		}

		for _, list := range [][]string{g.AllowedRecipients, g.BlockedRecipients, g.AllowedSenders, g.BlockedSenders} {
			for _, entry := range list {
				if strings.TrimSpace(entry) == "" {
					return fmt.Errorf("policy group %q: empty allow/block list entry", g.Name)
				}
			}
		}
	}
	return nil
}

func compileLimitSet(ls *LimitSet) error {
	if ls == nil {
		return nil
	}
	if err := compileLimit(ls.Global, "global"); err != nil {
		return err
	}
	for _, scoped := range []struct {
		name   string
		limits map[string]*Limit
	}{
		{"perSender", ls.PerSender},
		{"perTarget", ls.PerTarget},
		{"perEndpoint", ls.PerEndpoint},
	} {
		for key, limit := range scoped.limits {
			if strings.TrimSpace(key) == "" {
				return fmt.Errorf("%s: empty scope key", scoped.name)
			}
			if err := compileLimit(limit, scoped.name+"["+key+"]"); err != nil {
				return err
			}
		}
	}
	return nil
}

func compileLimit(l *Limit, where string) error {
	if l == nil {
		return nil
	}
	if l.WindowMs < 0 {
		return fmt.Errorf("%s: windowMs cannot be negative", where)
	}

	var err error
	if l.MaxPaymentUSD != "" {
		if l.maxPayment, err = money.ParseUSD(l.MaxPaymentUSD.String()); err != nil {
			return fmt.Errorf("%s: maxPaymentUsd: %w", where, err)
		}
	}
	if l.MaxTotalUSD != "" {
		if l.maxTotal, err = money.ParseUSD(l.MaxTotalUSD.String()); err != nil {
			return fmt.Errorf("%s: maxTotalUsd: %w", where, err)
		}
	}
	return nil
}
