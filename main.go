/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/anima-fx/engine"
	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/testbed"
)

func main() {
	configPath := flag.String("config", "assets/config/engine.toml", "engine configuration file")
	device := flag.String("device", "", "overrides the configured device (headless, vulkan, webgpu)")
	frames := flag.Uint64("frames", 0, "stop after this many frames, 0 runs until quit")
	flag.Parse()

	config, err := engine.LoadEngineConfig(*configPath)
	if err != nil {
		core.LogFatal("failed to load %s: %s", *configPath, err)
	}
	if *device != "" {
		config.Renderer.Device = *device
	}
	if *frames > 0 {
		config.Application.MaxFrames = *frames
	}

	tb, err := testbed.NewTestGame(config)
	if err != nil {
		panic(err)
	}

	engine, err := engine.New(tb.Game)
	if err != nil {
		panic(err)
	}

	if err := engine.Initialize(); err != nil {
		panic(err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// the loop owns the device, so a signal only stops it
	go func() {
		<-sigCh
		engine.Quit()
	}()

	// run engine
	if err := engine.Run(); err != nil {
		core.LogError(err.Error())
	}
	if err := engine.Shutdown(); err != nil {
		core.LogError(err.Error())
		os.Exit(1)
	}
}
