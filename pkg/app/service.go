package app

import (
	"context"
	"fmt"

	"github.com/kardianos/service"
)

// ServiceName is the name registered with the OS service manager.
const ServiceName = "idrsched"

// program adapts the supervisor to service.Interface.
type program struct {
	params RunParams
	rt     *Runtime
	done   chan error
}

// Compile-time interface check.
var _ service.Interface = (*program)(nil)

// Start implements service.Interface. It must not block.
func (p *program) Start(_ service.Service) error {
	rt, err := Build(context.Background(), p.params)
	if err != nil {
		return err
	}
	p.rt = rt
	p.done = make(chan error, 1)
	go func() { p.done <- rt.Supervisor.Run(context.Background()) }()
	return nil
}

// Stop implements service.Interface.
func (p *program) Stop(_ service.Service) error {
	if p.rt == nil {
		return nil
	}
	p.rt.Supervisor.Stop()
	err := <-p.done
	p.rt.Close(context.Background())
	return err
}

// NewService wraps params for the OS service manager. args are the
// command line the installed service is started with.
func NewService(params RunParams, args []string) (service.Service, error) {
	svc, err := service.New(&program{params: params}, &service.Config{
		Name:        ServiceName,
		DisplayName: "IDR subscription scheduler",
		Description: "Keeps replication subscriptions running on their cron schedules.",
		Arguments:   args,
	})
	if err != nil {
		return nil, fmt.Errorf("app: creating service: %w", err)
	}
	return svc, nil
}

// ControlActions are the actions accepted by Control.
var ControlActions = service.ControlAction[:]

// Control runs one service-manager action (install, uninstall, start, stop, restart).
func Control(svc service.Service, action string) error {
	if err := service.Control(svc, action); err != nil {
		return fmt.Errorf("app: service %s: %w", action, err)
	}
	return nil
}
