package storage

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

type instrumented struct {
	next Storage
	ops  *prometheus.CounterVec
}

// Instrument counts operations on s by op and result (ok, miss, error).
func Instrument(s Storage, reg prometheus.Registerer) Storage {
	ops := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Durable storage operations",
		},
		[]string{"op", "result"},
	)
	reg.MustRegister(ops)
	return &instrumented{next: s, ops: ops}
}

func (s *instrumented) observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.ops.WithLabelValues(op, result).Inc()
}

func (s *instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, ok, err := s.next.Get(ctx, key)
	if err == nil && !ok {
		s.ops.WithLabelValues("get", "miss").Inc()
		return b, ok, err
	}
	s.observe("get", err)
	return b, ok, err
}

func (s *instrumented) Set(ctx context.Context, key string, value []byte) error {
	err := s.next.Set(ctx, key, value)
	s.observe("set", err)
	return err
}

func (s *instrumented) Delete(ctx context.Context, key string) error {
	err := s.next.Delete(ctx, key)
	s.observe("delete", err)
	return err
}

func (s *instrumented) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}
