package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"robot-service/internal/actuator"
	"robot-service/internal/ai"
	"robot-service/internal/arbiter"
	"robot-service/internal/config"
	"robot-service/internal/core"
	"robot-service/internal/hardware"
	"robot-service/internal/logger"
	"robot-service/internal/messaging"
	"robot-service/internal/navigation"
	"robot-service/internal/safety"
	"robot-service/internal/sensors"
)

func main() {
	// Service log level
	var serviceLogLevel int
	flag.IntVar(&serviceLogLevel, "log", 3, "Service log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")

	var simulate bool
	flag.BoolVar(&simulate, "sim", false, "Run against simulated hardware instead of GPIO")

	flag.Parse()

	// Create standard logger with appropriate format
	var stdLogger *log.Logger
	if os.Getenv("INVOCATION_ID") != "" {
		// Running under systemd, use minimal format
		stdLogger = log.New(os.Stdout, "", 0)
	} else {
		// Running interactively, use timestamps
		stdLogger = log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds|log.Lmsgprefix)
	}

	// Create leveled logger
	l := logger.NewLogger(stdLogger, logger.LogLevel(serviceLogLevel))

	l.Infof("Starting robot service...")

	cfg, err := config.Load()
	if err != nil {
		l.Fatalf("Failed to load configuration: %v", err)
	}

	var (
		reader  hardware.SensorReader
		driver  hardware.MotorDriver
		lamp    hardware.StatusLamp
		cleanup func()
	)
	if simulate {
		l.Infof("Running with simulated hardware")
		sim := hardware.NewSimulator(l)
		reader, driver, lamp = sim, sim, sim
		cleanup = func() {}
	} else {
		gpio := hardware.NewGpioHardware(l)
		if err := gpio.Initialize(); err != nil {
			l.Fatalf("Failed to initialize hardware: %v", err)
		}
		reader, driver, lamp = gpio, gpio, gpio
		cleanup = gpio.Cleanup
	}
	defer cleanup()

	hub := sensors.New(reader, l, cfg.SensorPollInterval, cfg.SensorFreshness, cfg.DegradedThreshold)
	gateway := actuator.New(driver, l, cfg.MaxSpeed, cfg.TurnSpeed)
	arb := arbiter.New(l, cfg.StopGrace)
	nav := navigation.New(l, cfg.ObstacleClearance, cfg.MaxSpeed, cfg.TurnSpeed,
		cfg.TurnCooldown, cfg.BackoffDuration, cfg.StuckLimit, cfg.StuckWindow)
	monitor := safety.New(safety.Thresholds{
		EmergencyClearance: cfg.EmergencyClearance,
		GasWarn:            cfg.GasWarn,
		GasCritical:        cfg.GasCritical,
		TempWarn:           cfg.TempWarn,
		TempCritical:       cfg.TempCritical,
		HumidityWarn:       cfg.HumidityWarn,
		HumidityCritical:   cfg.HumidityCritical,
	}, gateway, l)

	backends := []ai.Backend{
		ai.NewOllamaBackend(cfg.OllamaURL, cfg.OllamaModel, cfg.SystemPrompt),
	}
	if cfg.OpenAIKey != "" {
		backends = append(backends,
			ai.NewOpenAIBackend(cfg.OpenAIKey, cfg.OpenAIModel, cfg.SystemPrompt))
	} else {
		l.Infof("No OpenAI key configured, running with local backend only")
	}
	router := ai.NewRouter(l, cfg.BackendTimeout, cfg.BackendCooldown, backends...)

	redis := messaging.NewRedisClient(cfg.RedisHost, cfg.RedisPort, l, messaging.Callbacks{})

	system := core.NewRobotSystem(cfg, l, hub, gateway, arb, nav, monitor, router, redis, lamp)
	if err := system.Start(context.Background()); err != nil {
		l.Fatalf("Failed to start system: %v", err)
	}

	l.Infof("System started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	l.Infof("Received signal %v, shutting down...", sig)
	system.Shutdown()
	if err := system.Wait(); err != nil {
		l.Warnf("Control loops exited with error: %v", err)
	}
	l.Infof("Shutdown complete")
}
