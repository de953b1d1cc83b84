package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "grocerylist"

var (
	// ShareTokensIssued 成功创建的分享 token 数
	ShareTokensIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "share",
		Name:      "tokens_issued_total",
		Help:      "Number of share tokens issued.",
	})

	// ShareJoins 加入结果: joined / already_member / invalid / guest_denied / auth_required / error
	ShareJoins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "share",
		Name:      "joins_total",
		Help:      "Share token redemptions by result.",
	}, []string{"result"})

	// ShareTokensDeactivated 失效原因: expired / exhausted / revoked / cleanup
	ShareTokensDeactivated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "share",
		Name:      "tokens_deactivated_total",
		Help:      "Share tokens deactivated by reason.",
	}, []string{"reason"})

	// AllowListMissingList 加入时清单文档不存在的次数
	AllowListMissingList = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "share",
		Name:      "allow_list_missing_list_total",
		Help:      "Redemptions whose target list no longer exists.",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})
)

// Handler 暴露 /metrics
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
