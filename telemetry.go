// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fmq

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "code.hybscloud.com/fmq"

// telemetry carries the logger and instruments of one queue handle.
// Instruments only fire on rare paths (overflow, corruption, blocking).
type telemetry struct {
	log   *slog.Logger
	attrs metric.MeasurementOption

	overflows        metric.Int64Counter
	corruptions      metric.Int64Counter
	blockingWaits    metric.Int64Counter
	blockingTimeouts metric.Int64Counter
}

func newTelemetry(log *slog.Logger, mp metric.MeterProvider, flavor Flavor) *telemetry {
	if log == nil {
		log = slog.Default()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	t := &telemetry{
		log:   log.With("component", "fmq", "flavor", flavor.String()),
		attrs: metric.WithAttributes(attribute.String("fmq.flavor", flavor.String())),
	}

	// On error the returned instrument is a usable no-op.
	var err error
	if t.overflows, err = meter.Int64Counter("fmq.overflows",
		metric.WithDescription("Reads voided because the writer lapped the reader."),
	); err != nil {
		otel.Handle(err)
	}
	if t.corruptions, err = meter.Int64Counter("fmq.corruptions",
		metric.WithDescription("Misaligned read or write pointers detected."),
	); err != nil {
		otel.Handle(err)
	}
	if t.blockingWaits, err = meter.Int64Counter("fmq.blocking.waits",
		metric.WithDescription("Notifier waits performed by blocking reads and writes."),
	); err != nil {
		otel.Handle(err)
	}
	if t.blockingTimeouts, err = meter.Int64Counter("fmq.blocking.timeouts",
		metric.WithDescription("Blocking reads and writes that timed out."),
	); err != nil {
		otel.Handle(err)
	}
	return t
}

func (t *telemetry) overflow(op string, writePtr, readPtr uint64) {
	t.overflows.Add(context.Background(), 1, t.attrs)
	t.log.Debug("reader overrun, resynchronizing",
		"op", op, "write_ptr", writePtr, "read_ptr", readPtr)
}

func (t *telemetry) corrupted(which string, ptr uint64, quantum uint64) {
	t.corruptions.Add(context.Background(), 1, t.attrs)
	t.log.Error("queue pointer misaligned",
		"pointer", which, "value", ptr, "quantum", quantum)
}

func (t *telemetry) blockingWait() {
	t.blockingWaits.Add(context.Background(), 1, t.attrs)
}

func (t *telemetry) blockingTimeout(op string) {
	t.blockingTimeouts.Add(context.Background(), 1, t.attrs)
	t.log.Debug("blocking call timed out", "op", op)
}

func (t *telemetry) notifierFailed(op string, err error) {
	t.log.Error("notifier failed", "op", op, "err", err)
}
