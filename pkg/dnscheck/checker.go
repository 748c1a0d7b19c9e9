// Package dnscheck probes a domain's live NS delegation so operators can
// see when a nameserver change has landed. Probes are best-effort and
// advisory; callers must not fail a workflow on a probe error.
package dnscheck

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// defaultResolvers are probed in order; the first clean answer wins.
var defaultResolvers = []string{
	"1.1.1.1:53",
	"8.8.8.8:53",
}

const queryTimeout = 5 * time.Second

// Result is one propagation probe. Expected and Propagated are only set
// when the caller supplied the delegation it is waiting for.
type Result struct {
	Domain      string   `json:"domain"`
	Nameservers []string `json:"nameservers"`
	Expected    []string `json:"expected,omitempty"`
	Propagated  *bool    `json:"propagated,omitempty"`
}

// Checker runs NS queries against public recursive resolvers.
type Checker struct {
	client    *dns.Client
	resolvers []string
}

// New builds a checker. With no arguments it probes Cloudflare's and
// Google's public resolvers.
func New(resolvers ...string) *Checker {
	if len(resolvers) == 0 {
		resolvers = defaultResolvers
	}
	return &Checker{
		client:    &dns.Client{Timeout: queryTimeout},
		resolvers: resolvers,
	}
}

// Lookup returns the domain's current NS set, normalized and sorted.
// Resolvers are tried in order; only when all of them fail does Lookup
// return an error.
func (c *Checker) Lookup(ctx context.Context, domain string) ([]string, error) {
	domain = Normalize(domain)
	if domain == "" {
		return nil, fmt.Errorf("domain is required")
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeNS)
	msg.RecursionDesired = true

	var lastErr error
	for _, resolver := range c.resolvers {
		in, _, err := c.client.ExchangeContext(ctx, msg, resolver)
		if err != nil {
			lastErr = err
			continue
		}
		if in.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("resolver %s answered %s", resolver, dns.RcodeToString[in.Rcode])
			continue
		}
		return nameserversFrom(in), nil
	}
	return nil, fmt.Errorf("failed to resolve NS for %s: %w", domain, lastErr)
}

// Check probes the domain and, when expected nameservers are given,
// reports whether the live delegation matches them exactly.
func (c *Checker) Check(ctx context.Context, domain string, expected []string) (*Result, error) {
	current, err := c.Lookup(ctx, domain)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Domain:      Normalize(domain),
		Nameservers: current,
	}
	if len(expected) > 0 {
		result.Expected = NormalizeSet(expected)
		propagated := Matches(current, result.Expected)
		result.Propagated = &propagated
	}
	return result, nil
}

// Normalize canonicalizes one nameserver or domain name: lowercase,
// trimmed, no trailing dot.
func Normalize(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
}

// NormalizeSet normalizes, dedupes and sorts a nameserver list.
func NormalizeSet(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, name := range list {
		normalized := Normalize(name)
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	sort.Strings(out)
	return out
}

// Matches reports whether the live NS set equals the expected one. A mixed
// set (old and new delegation both present) does not count as propagated.
func Matches(current, expected []string) bool {
	cur := NormalizeSet(current)
	exp := NormalizeSet(expected)
	if len(cur) != len(exp) || len(exp) == 0 {
		return false
	}
	for i := range cur {
		if cur[i] != exp[i] {
			return false
		}
	}
	return true
}

func nameserversFrom(in *dns.Msg) []string {
	var out []string
	for _, rr := range in.Answer {
		if ns, ok := rr.(*dns.NS); ok {
			out = append(out, Normalize(ns.Ns))
		}
	}
	sort.Strings(out)
	return out
}
