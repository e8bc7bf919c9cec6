package main

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// triggerService reports whether eager provisioning is possible, i.e. whether
// at least one provider is registered.
const triggerService = "jeeves.Trigger"

func createHealthServer() (*grpc.Server, *health.Server) {
	s := grpc.NewServer()
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)
	return s, h
}

func updateHealth(h *health.Server, providers int) {
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	if providers > 0 {
		h.SetServingStatus(triggerService, healthpb.HealthCheckResponse_SERVING)
	} else {
		h.SetServingStatus(triggerService, healthpb.HealthCheckResponse_NOT_SERVING)
	}
}
