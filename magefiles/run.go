//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the testbed with the configured device.
func (Run) Engine() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run engine...")
	if _, err := executeCmd("go", withArgs("run", ".", "-config", "assets/config/engine.toml"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the testbed on the CPU device for a few frames, no window needed.
func (Run) Headless() error {
	fmt.Println("Run engine headless...")
	_, err := executeCmd("go", withArgs("run", ".", "-device", "headless", "-frames", "120"), withStream())
	return err
}
