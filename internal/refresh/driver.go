package refresh

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Handler is the callback invoked when the refresh schedule fires.
type Handler func()

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Driver fires periodic refresh cycles from a cron expression. It only
// triggers; the queue and orchestrator do the work.
type Driver struct {
	schedule string
	handler  Handler
	cron     *cron.Cron
}

// NewDriver creates a Driver that calls handler on the given cron
// schedule. An empty schedule disables the driver.
func NewDriver(schedule string, handler Handler) *Driver {
	return &Driver{
		schedule: schedule,
		handler:  handler,
		cron:     cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers the schedule and starts the cron ticker.
func (d *Driver) Start() error {
	if d.schedule == "" {
		slog.Info("refresh schedule empty, periodic refresh disabled")
		return nil
	}

	_, err := d.cron.AddFunc(d.schedule, func() {
		slog.Info("scheduled refresh firing", "schedule", d.schedule)
		d.handler()
	})
	if err != nil {
		return err
	}

	d.cron.Start()
	slog.Info("scheduled periodic refresh", "schedule", d.schedule)
	return nil
}

// Reload stops the existing cron, swaps in the new schedule, and calls
// Start again.
func (d *Driver) Reload(schedule string) error {
	d.cron.Stop()
	d.cron = cron.New(cron.WithParser(cronParser))
	d.schedule = schedule
	return d.Start()
}

// Stop stops the cron ticker.
func (d *Driver) Stop() {
	d.cron.Stop()
}
