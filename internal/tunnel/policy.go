package tunnel

import "strings"

// hostPolicy 是隧道目标主机白名单，空列表表示放行全部。
type hostPolicy struct {
	exact    map[string]struct{}
	suffixes []string
}

func newHostPolicy(hosts []string) hostPolicy {
	p := hostPolicy{exact: make(map[string]struct{}, len(hosts))}
	for _, host := range hosts {
		host = strings.ToLower(strings.TrimSpace(host))
		switch {
		case host == "":
		case strings.HasPrefix(host, "*."):
			p.suffixes = append(p.suffixes, host[1:])
		default:
			p.exact[host] = struct{}{}
		}
	}
	return p
}

func (p hostPolicy) open() bool {
	return len(p.exact) == 0 && len(p.suffixes) == 0
}

// permits 判断 host（不含端口）是否允许作为转发目标。
func (p hostPolicy) permits(host string) bool {
	if p.open() {
		return true
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if _, ok := p.exact[host]; ok {
		return true
	}
	for _, suffix := range p.suffixes {
		if strings.HasSuffix(host, suffix) && len(host) > len(suffix) {
			return true
		}
	}
	return false
}
