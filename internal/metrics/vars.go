package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	DecisionCycles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hydra_decision_cycles_total",
		Help: "Number of completed decision cycles",
	})

	DecisionsEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hydra_decisions_emitted_total",
		Help: "Number of consolidated decisions that cleared consensus",
	})

	AdmissionVerdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hydra_admission_verdicts_total",
		Help: "Admission verdicts by outcome",
	}, []string{"verdict"})

	LimitBreaches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hydra_limit_breaches_total",
		Help: "Risk limit breaches by dimension",
	}, []string{"dimension"})

	ComplianceViolations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hydra_compliance_violations_total",
		Help: "Number of compliance violations recorded",
	})

	DroppedNotifications = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hydra_dropped_notifications_total",
		Help: "Number of alert notifications dropped after retry",
	})

	PortfolioLeverage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hydra_portfolio_leverage",
		Help: "Current portfolio gross leverage",
	})

	PortfolioVaR95 = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hydra_portfolio_var95",
		Help: "Current portfolio daily VaR at 95% confidence",
	})
)

func init() {
	prometheus.MustRegister(
		DecisionCycles,
		DecisionsEmitted,
		AdmissionVerdicts,
		LimitBreaches,
		ComplianceViolations,
		DroppedNotifications,
		PortfolioLeverage,
		PortfolioVaR95,
	)
}
