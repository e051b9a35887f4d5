// Copyright 2026 The Authgrid Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/authgrid/authgrid/internal/event"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter records authorization domain metrics. It subscribes to the
// change bus, so every grant, revocation, delegation and cascade is
// counted without the services themselves touching instrumentation.
type Meter struct {
	changes     metric.Int64Counter
	cascadeSize metric.Int64Histogram
}

// New creates the domain instruments on the global meter provider.
// When disabled, the instruments bind to a noop meter and recording
// costs nothing.
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	name := serviceName
	if !cfg.Enabled {
		name = "noop"
	}
	meter := otel.Meter(name)

	changes, err := meter.Int64Counter(
		"authgrid.changes",
		metric.WithDescription("Authorization state changes by action"),
	)
	if err != nil {
		return nil, fmt.Errorf("create changes counter: %w", err)
	}

	cascadeSize, err := meter.Int64Histogram(
		"authgrid.cascade.revoked_rows",
		metric.WithDescription("Rows closed per cascading revocation"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cascade histogram: %w", err)
	}

	return &Meter{changes: changes, cascadeSize: cascadeSize}, nil
}

// OnChange implements event.Subscriber.
func (m *Meter) OnChange(ctx context.Context, c event.Change) {
	m.changes.Add(ctx, 1, metric.WithAttributes(attribute.String("action", c.Action)))

	if c.Action != event.ActionCascadingRevocation {
		return
	}
	n, err := strconv.ParseInt(c.Context["revokedCount"], 10, 64)
	if err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("entity_type", c.Context["entityType"]))
	m.cascadeSize.Record(ctx, n, attrs)
}
