package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	AuthCodesIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oauth2_auth_codes_issued_total",
		Help: "Total number of authorization codes issued.",
	})
	TokensIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth2_tokens_issued_total",
		Help: "Total number of tokens issued, by grant type.",
	}, []string{"grant_type"})
	TokensRefreshedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oauth2_tokens_refreshed_total",
		Help: "Total number of tokens refreshed.",
	})
	TokensRevokedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oauth2_tokens_revoked_total",
		Help: "Total number of tokens revoked.",
	})
	DevicePollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth2_device_polls_total",
		Help: "Total number of device-code polls, by outcome.",
	}, []string{"outcome"})
)

// Register registers the engine's metrics with the given registerer. It
// should be called once at application startup; the counters still count when
// registration is skipped (tests).
func Register(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	for _, c := range []prometheus.Collector{
		AuthCodesIssuedTotal,
		TokensIssuedTotal,
		TokensRefreshedTotal,
		TokensRevokedTotal,
		DevicePollsTotal,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("failed to register metric")
		}
	}
}
