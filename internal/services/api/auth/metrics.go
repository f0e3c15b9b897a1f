package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_login_total",
		Help: "Login attempts by method and outcome.",
	}, []string{"method", "outcome"})
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_refresh_total",
		Help: "Refresh token rotations by outcome.",
	}, []string{"outcome"})
	registerTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_register_total",
		Help: "Registrations by role and outcome.",
	}, []string{"role", "outcome"})
	gateRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_gate_rejected_total",
		Help: "Requests rejected by the authorization gate.",
	}, []string{"reason"})
)
