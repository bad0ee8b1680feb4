// Package dns resolves signaling server hostnames, falling back to
// well-known public resolvers when the system resolver fails.
package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// publicResolvers are queried directly when the local lookup fails.
var publicResolvers = []string{
	"1.1.1.1",        // Cloudflare
	"8.8.8.8",        // Google
	"9.9.9.9",        // Quad9
	"208.67.222.222", // Cisco OpenDNS
}

// Lookup resolves a hostname to a single IP address, preferring IPv4.
// The system resolver is tried first; on failure the public resolvers are
// raced and the first answer wins.
func Lookup(host string) (string, error) {
	if ip, err := systemLookup(host); err == nil {
		return ip, nil
	}
	return raceLookup(host)
}

func systemLookup(host string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ips, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	return pick(ips)
}

// pick prefers an IPv4 address; plenty of home NATs still break IPv6.
func pick(ips []string) (string, error) {
	if len(ips) == 0 {
		return "", errors.New("no addresses found")
	}
	for _, ip := range ips {
		if net.ParseIP(ip).To4() != nil {
			return ip, nil
		}
	}
	return ips[0], nil
}

func raceLookup(host string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	results := make(chan string, len(publicResolvers))
	for _, server := range publicResolvers {
		go func(server string) {
			r := &net.Resolver{
				PreferGo: true,
				Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
					d := net.Dialer{Timeout: 2 * time.Second}
					return d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
				},
			}
			ips, err := r.LookupHost(ctx, host)
			if err != nil {
				return
			}
			if ip, err := pick(ips); err == nil {
				select {
				case results <- ip:
				default:
				}
			}
		}(server)
	}

	select {
	case ip := <-results:
		return ip, nil
	case <-ctx.Done():
		return "", fmt.Errorf("all resolvers failed for %s", host)
	}
}
