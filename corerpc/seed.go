package corerpc

import (
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// SeedResolver resolves Core RPC endpoints from a TXT authority record, the
// client-side counterpart of the teacher's seed DNS authority convention
// (ops/seeds/tools/dnsstub serves the same TXT shape for peer discovery).
// The TXT payload is a comma-separated list of "host:port" endpoints.
type SeedResolver struct {
	// Nameserver is the resolver to query, e.g. "127.0.0.1:8053". Required:
	// ResolveEndpoints returns an error when it is empty.
	Nameserver string
	Timeout    time.Duration
}

// ResolveEndpoints queries fqdn's TXT record and parses it into a list of
// Core RPC endpoints.
func (r SeedResolver) ResolveEndpoints(fqdn string) ([]string, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	nameserver := r.Nameserver
	if nameserver == "" {
		return nil, fmt.Errorf("corerpc: seed resolver requires an explicit nameserver")
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(fqdn), dns.TypeTXT)

	client := &dns.Client{Timeout: timeout}
	resp, _, err := client.Exchange(msg, nameserver)
	if err != nil {
		return nil, fmt.Errorf("corerpc: seed lookup %s: %w", fqdn, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("corerpc: seed lookup %s: rcode %d", fqdn, resp.Rcode)
	}

	var endpoints []string
	for _, rr := range resp.Answer {
		txt, ok := rr.(*dns.TXT)
		if !ok {
			continue
		}
		for _, field := range txt.Txt {
			for _, ep := range strings.Split(field, ",") {
				ep = strings.TrimSpace(ep)
				if ep != "" {
					endpoints = append(endpoints, ep)
				}
			}
		}
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("corerpc: no endpoints found for %s", fqdn)
	}
	return endpoints, nil
}
