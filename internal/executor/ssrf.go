package executor

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/harshitdeora/task-schedular-sub000/internal/errs"
)

// blockedCIDRs is the literal SSRF guard list from spec §6.
var blockedCIDRs = mustParseCIDRs(
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(fmt.Sprintf("invalid SSRF guard CIDR %q: %v", c, err))
		}
		nets = append(nets, n)
	}
	return nets
}

// checkSSRF validates that target's scheme is http/https and that its host
// does not resolve into a blocked range, per spec §4.2/§6.
func checkSSRF(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return errs.New(errs.KindValidation, fmt.Sprintf("invalid URL: %v", err), err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errs.New(errs.KindValidation, fmt.Sprintf("unsupported URL scheme %q", u.Scheme), nil)
	}

	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return errs.New(errs.KindSSRFBlocked, "target host is localhost", nil)
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		// Already a literal IP, or resolution itself failed; fall back to
		// parsing the hostname directly.
		if ip := net.ParseIP(host); ip != nil {
			ips = []net.IP{ip}
		} else {
			return errs.New(errs.KindInfraTransient, fmt.Sprintf("failed to resolve host %q: %v", host, err), err)
		}
	}

	for _, ip := range ips {
		if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			return errs.New(errs.KindSSRFBlocked, fmt.Sprintf("target resolves to blocked address %s", ip), nil)
		}
		for _, n := range blockedCIDRs {
			if n.Contains(ip) {
				return errs.New(errs.KindSSRFBlocked, fmt.Sprintf("target resolves to blocked range %s", n), nil)
			}
		}
	}
	return nil
}
