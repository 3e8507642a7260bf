//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/naga"
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

const shaderDir = "assets/shaders"

// Compiles every WGSL shader to SPIR-V with naga and writes the .spv next to it.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the engine binary.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", "bin/anima-fx", "."), withStream())
	return err
}

func buildShaders() error {
	sources, err := filepath.Glob(filepath.Join(shaderDir, "*.wgsl"))
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no shaders found under %s", shaderDir)
	}
	var failed []string
	for _, src := range sources {
		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		spirv, err := naga.Compile(string(data))
		if err != nil {
			fmt.Printf("%s: %s\n", src, err)
			failed = append(failed, filepath.Base(src))
			continue
		}
		out := strings.TrimSuffix(src, ".wgsl") + ".spv"
		if err := os.WriteFile(out, spirv, 0o644); err != nil {
			return err
		}
		if mg.Verbose() {
			fmt.Printf("%s -> %s (%d bytes)\n", src, out, len(spirv))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d shaders failed to compile: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

type Test mg.Namespace

// Runs every test; they render on the headless device.
func (Test) All() error {
	return goTest("./...")
}

// Runs the renderer tests only.
func (Test) Renderer() error {
	return goTest("./engine/renderer/...")
}
