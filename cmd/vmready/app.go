package main

import (
	"context"
	"fmt"
	"time"

	"github.com/carverauto/vmready/pkg/api"
	"github.com/carverauto/vmready/pkg/detect"
	"github.com/carverauto/vmready/pkg/hostload"
	"github.com/carverauto/vmready/pkg/idle"
	"github.com/carverauto/vmready/pkg/lifecycle"
	"github.com/carverauto/vmready/pkg/logger"
	"github.com/carverauto/vmready/pkg/orchestrator"
	"github.com/carverauto/vmready/pkg/poller"
	"github.com/carverauto/vmready/pkg/readiness"
	"github.com/carverauto/vmready/pkg/registry"
	"github.com/carverauto/vmready/pkg/scan"
	"github.com/carverauto/vmready/pkg/vmware"
)

// app owns the long-lived services.
type app struct {
	orch     *orchestrator.Orchestrator
	poller   *poller.Poller
	watchdog *idle.Watchdog
	server   *api.Server
	log      logger.Logger
}

func newApp(cfg *Config, root *logger.Impl) (*app, error) {
	log := root.Named("main")

	inventory, err := cfg.VMware.Inventory(root.Named("discovery"))
	if err != nil {
		return nil, fmt.Errorf("discovering VMs under %s: %w", cfg.VMware.VMRoot, err)
	}

	if len(inventory) == 0 {
		log.Warn().Str("vm_root", cfg.VMware.VMRoot).Msg("No VMs found, nothing to manage until aliases are configured")
	}

	reg := registry.New(root.Named("registry"))
	reg.Load(inventory)

	creds := vmware.NewStaticCredentials(cfg.VMware.Guest)
	driver := vmware.NewDriver(&cfg.VMware, creds, root.Named("vmware"))

	detection := cfg.Poller.Detection

	strategy, err := detect.New(detection.Strategy, detect.Deps{
		Exec:    driver,
		Ports:   scan.NewTCPChecker(root.Named("scan")),
		RDPPort: detection.RDPPort,
		Logger:  root.Named("detect"),
	})
	if err != nil {
		return nil, err
	}

	prober := readiness.NewProber(
		scan.NewICMPPinger(root.Named("scan")),
		strategy,
		time.Duration(cfg.Poller.PingTimeout),
		root.Named("readiness"),
	)

	p := poller.New(&cfg.Poller, reg, prober, hostload.NewSampler(root.Named("hostload")), nil, root.Named("poller"))

	durations, err := orchestrator.NewDurations(cfg.Orchestrator.DurationsFile, root.Named("durations"))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", cfg.Orchestrator.DurationsFile, err)
	}

	orch, err := orchestrator.New(&cfg.Orchestrator, orchestrator.Deps{
		Registry:    reg,
		Hypervisor:  driver,
		Notifier:    p,
		Guest:       driver,
		Credentials: creds,
		Durations:   durations,
		Strategy:    detection.Strategy,
		RDPPort:     detection.RDPPort,
		Logger:      root.Named("orchestrator"),
	})
	if err != nil {
		return nil, err
	}

	a := &app{orch: orch, poller: p, log: log}

	apiDeps := api.Deps{
		Registry:     reg,
		Orchestrator: orch,
		Scheduler:    p,
		Logger:       root.Named("api"),
	}

	if cfg.Idle.Enabled {
		a.watchdog = idle.New(&cfg.Idle, idle.Deps{
			Registry:   reg,
			Hypervisor: driver,
			Sessions:   detect.NewSessionDetector(driver, detection.RDPPort, root.Named("session")),
			CPU:        p,
			Memory:     hostload.ReadMemory,
			Logger:     root.Named("idle"),
		})
		apiDeps.Watchdog = a.watchdog
	}

	a.server = api.NewServer(&cfg.API, apiDeps)

	log.Info().
		Int("vms", len(inventory)).
		Str("strategy", string(prober.Strategy())).
		Bool("idle_watchdog", cfg.Idle.Enabled).
		Str("listen_addr", cfg.API.ListenAddr).
		Msg("vmready wired")

	return a, nil
}

func (a *app) services() []lifecycle.Service {
	svcs := []lifecycle.Service{a.poller}

	if a.watchdog != nil {
		svcs = append(svcs, a.watchdog)
	}

	return append(svcs, a.server)
}

// close abandons in-flight reverts. Their VMs keep whatever phase they reached.
func (a *app) close(ctx context.Context) {
	done := make(chan struct{})

	go func() {
		_ = a.orch.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn().Msg("Timed out waiting for revert flows to stop")
	}
}
