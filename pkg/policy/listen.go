package policy

import (
	"github.com/TaIos/mod-tls/pkg/config"
)

// serverEnabled decides whether TLS is active for a vhost. A vhost
// without addresses answers on every listener; an address with a
// wildcard host matches listeners by port; otherwise host and port must
// match exactly. The reverse also holds with a wildcard listener.
func serverEnabled(listeners []string, v *config.VHostConfig) bool {
	if len(v.Addresses) == 0 {
		return len(listeners) > 0
	}
	for _, l := range listeners {
		lh, lp, err := config.SplitListenAddr(l)
		if err != nil {
			continue
		}
		for _, a := range v.Addresses {
			ah, ap, err := config.SplitListenAddr(a)
			if err != nil {
				continue
			}
			if lp != ap {
				continue
			}
			if lh == ah || lh == "" || ah == "" {
				return true
			}
		}
	}
	return false
}
